package service

import (
	"fmt"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
)

// DefaultClockSkew допустимое опережение часов сайта относительно сервера
const DefaultClockSkew = 5 * time.Minute

// MeasurementValidator проверяет входящие замеры перед записью (Domain Service)
type MeasurementValidator struct {
	clockSkew time.Duration
}

// NewMeasurementValidator создает новый MeasurementValidator
func NewMeasurementValidator(clockSkew time.Duration) *MeasurementValidator {
	if clockSkew < 0 {
		clockSkew = 0
	}
	return &MeasurementValidator{clockSkew: clockSkew}
}

// Validate выполняет полную валидацию замера.
// Отрицательные показатели не проверяются: они приводятся к нулю в valueobject.Sample.
func (v *MeasurementValidator) Validate(m *entity.Measurement, inst *entity.Installation, now time.Time) error {
	if m == nil {
		return apperr.Invalid("measurement cannot be nil")
	}

	if inst == nil {
		return apperr.NotFound(fmt.Sprintf("installation %s", m.InstallationID()))
	}

	if m.InstallationID() != inst.ID() {
		return apperr.Invalid("measurement belongs to installation %s, got %s", m.InstallationID(), inst.ID())
	}

	// Проверка, что замер не из будущего
	if m.MeasuredAt().After(now.Add(v.clockSkew)) {
		return apperr.Invalid("measured_at cannot be in the future")
	}

	if m.Score() < 0 || m.Score() > MaxScore {
		return apperr.Invalid("score %.1f is out of range", m.Score())
	}

	return nil
}

// ValidateBatch валидирует группу замеров и возвращает ошибки по индексам
func (v *MeasurementValidator) ValidateBatch(
	measurements []*entity.Measurement,
	installations map[string]*entity.Installation,
	now time.Time,
) map[int]error {
	errs := make(map[int]error)
	for i, m := range measurements {
		var inst *entity.Installation
		if m != nil {
			inst = installations[m.InstallationID()]
		}
		if err := v.Validate(m, inst, now); err != nil {
			errs[i] = err
		}
	}
	return errs
}
