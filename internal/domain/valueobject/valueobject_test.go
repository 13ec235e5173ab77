package valueobject

import (
	"testing"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
)

func TestGroupByValidate(t *testing.T) {
	for _, g := range AllGroupBy() {
		if err := g.Validate(); err != nil {
			t.Fatalf("group_by %q must be valid: %v", g, err)
		}
	}
	if err := GroupBy("week").Validate(); err == nil {
		t.Fatalf("expected error for unknown group_by")
	}
}

func TestNewSampleClampsNegativeInputs(t *testing.T) {
	s := NewSample(-10, -1.5, -3, -1)
	if s.LoadTimeMs() != 0 || s.MemoryMB() != 0 || s.DBQueries() != 0 || s.ErrorCount() != 0 {
		t.Fatalf("expected all fields clamped to zero, got %s", s)
	}
}

func TestWindowCutoffInclusive(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	w, err := NewWindow(7)
	if err != nil {
		t.Fatalf("NewWindow returned error: %v", err)
	}

	cutoff := w.Cutoff(now)
	if !cutoff.Equal(time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected cutoff %v", cutoff)
	}
	if !w.Includes(cutoff, now) {
		t.Fatalf("cutoff itself must be included")
	}
	if w.Includes(cutoff.Add(-time.Nanosecond), now) {
		t.Fatalf("moment before cutoff must be excluded")
	}
}

func TestNewWindowRejectsNonPositive(t *testing.T) {
	for _, days := range []int{0, -1} {
		if _, err := NewWindow(days); err == nil {
			t.Fatalf("expected error for %d days", days)
		}
	}
}

func TestNewScopeRequiresUser(t *testing.T) {
	if _, err := NewScope("  ", "site-1"); err == nil {
		t.Fatalf("expected malformed scope error")
	}

	s, err := NewScope("user-1", "")
	if err != nil {
		t.Fatalf("NewScope returned error: %v", err)
	}
	if s.HasSite() {
		t.Fatalf("scope without site must not report HasSite")
	}
	if got := s.WithSite("site-9").Key(); got != "user-1:site-9" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestGradeFor(t *testing.T) {
	cases := []struct {
		score float64
		want  Grade
	}{
		{4.0, GradeExcellent},
		{3.5, GradeExcellent},
		{3.4, GradeGood},
		{2.5, GradeGood},
		{1.5, GradeFair},
		{1.4, GradePoor},
		{0, GradePoor},
	}
	for _, tc := range cases {
		if got := GradeFor(tc.score); got != tc.want {
			t.Errorf("GradeFor(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestParseReportFormat(t *testing.T) {
	f, err := ParseReportFormat(" CSV ")
	if err != nil || f != ReportCSV {
		t.Fatalf("expected csv, got %q (%v)", f, err)
	}
	if _, err := ParseReportFormat("xml"); err == nil {
		t.Fatalf("expected error for xml")
	}
}

func TestPeriod(t *testing.T) {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	window := DefaultWindow().Period(now)
	if !window.Contains(window.From()) || !window.Contains(window.To()) {
		t.Fatalf("bounds must be inclusive")
	}
	if window.Contains(now.Add(time.Second)) {
		t.Fatalf("moment after end must be excluded")
	}

	if _, err := NewPeriod(now, now.Add(-time.Hour)); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid error for reversed bounds, got %v", err)
	}

	open, err := NewPeriod(time.Time{}, now)
	if err != nil {
		t.Fatalf("NewPeriod returned error: %v", err)
	}
	if open.IsOpen() {
		t.Fatalf("period with upper bound is not open")
	}
	if !open.Contains(now.AddDate(-10, 0, 0)) {
		t.Fatalf("open lower bound must accept old moments")
	}
}
