package valueobject

import (
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
)

// Period отрезок времени с необязательными границами.
// Нулевая граница означает, что с этой стороны отрезок открыт.
type Period struct {
	from time.Time
	to   time.Time
}

// NewPeriod приводит границы к UTC и проверяет порядок
func NewPeriod(from, to time.Time) (Period, error) {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return Period{}, apperr.Invalid("from must be less than or equal to to")
	}
	return Period{from: from.UTC(), to: to.UTC()}, nil
}

func (p Period) From() time.Time { return p.from }
func (p Period) To() time.Time   { return p.to }

// IsOpen сообщает, что ни одна граница не задана
func (p Period) IsOpen() bool {
	return p.from.IsZero() && p.to.IsZero()
}

// Contains проверяет попадание момента в отрезок, границы включительно
func (p Period) Contains(t time.Time) bool {
	if !p.from.IsZero() && t.Before(p.from) {
		return false
	}
	if !p.to.IsZero() && t.After(p.to) {
		return false
	}
	return true
}
