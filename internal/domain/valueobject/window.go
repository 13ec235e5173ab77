package valueobject

import (
	"errors"
	"time"
)

// DefaultWindowDays окно по умолчанию для рейтингов и рекомендаций
const DefaultWindowDays = 7

// Window представляет скользящее окно агрегации в днях (Value Object)
type Window struct {
	days int
}

// NewWindow создает Window с валидацией
func NewWindow(days int) (Window, error) {
	if days <= 0 {
		return Window{}, errors.New("window_days must be positive")
	}
	return Window{days: days}, nil
}

// DefaultWindow возвращает семидневное окно
func DefaultWindow() Window {
	return Window{days: DefaultWindowDays}
}

// Days возвращает длину окна в днях
func (w Window) Days() int {
	return w.days
}

// IsZero сообщает, что окно не инициализировано
func (w Window) IsZero() bool {
	return w.days <= 0
}

// Cutoff возвращает нижнюю границу окна (включительно) относительно now
func (w Window) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(w.days) * 24 * time.Hour)
}

// Period возвращает окно как отрезок [cutoff, now]
func (w Window) Period(now time.Time) Period {
	return Period{from: w.Cutoff(now).UTC(), to: now.UTC()}
}

// Includes проверяет, попадает ли момент замера в окно
func (w Window) Includes(measuredAt, now time.Time) bool {
	return !measuredAt.Before(w.Cutoff(now))
}
