package valueobject

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// IsOutdated сообщает, что установленная версия старше последней известной.
// Одинаковые строки не устаревшие. Пустая последняя версия означает, что
// сравнивать не с чем. Если версии нельзя сравнить однозначно,
// установка считается устаревшей.
func IsOutdated(installed, latest string) bool {
	installed = strings.TrimSpace(installed)
	latest = strings.TrimSpace(latest)

	if latest == "" || installed == latest {
		return false
	}

	iv, lv := canonicalSemver(installed), canonicalSemver(latest)
	if semver.IsValid(iv) && semver.IsValid(lv) {
		return semver.Compare(iv, lv) < 0
	}

	if cmp, ok := compareNumericDotted(installed, latest); ok {
		return cmp < 0
	}

	return true
}

func canonicalSemver(v string) string {
	if v == "" {
		return v
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// compareNumericDotted сравнивает версии вида 1.2.3.4, которые semver не принимает
func compareNumericDotted(a, b string) (int, bool) {
	as, ok := parseDotted(a)
	if !ok {
		return 0, false
	}
	bs, ok := parseDotted(b)
	if !ok {
		return 0, false
	}

	for i := 0; i < len(as) || i < len(bs); i++ {
		var x, y int
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
	}
	return 0, true
}

func parseDotted(v string) ([]int, bool) {
	v = strings.TrimPrefix(v, "v")
	if v == "" {
		return nil, false
	}
	parts := strings.Split(v, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		// "01" и "+1" не сравниваются однозначно с "1"
		if !isPlainNumber(p) {
			return nil, false
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func isPlainNumber(p string) bool {
	if p == "" || (len(p) > 1 && p[0] == '0') {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < '0' || p[i] > '9' {
			return false
		}
	}
	return true
}
