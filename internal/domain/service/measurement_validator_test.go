package service

import (
	"errors"
	"testing"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
)

func TestMeasurementValidator(t *testing.T) {
	v := NewMeasurementValidator(time.Minute)
	inst := installation("inst-1", "site-1", "plugin-a", testNow.AddDate(0, -1, 0))
	insts := installationMap(inst)

	ok := measurement("inst-1", 500, 10, testNow.Add(-time.Hour))
	future := measurement("inst-1", 500, 10, testNow.Add(time.Hour))
	orphan := measurement("ghost", 500, 10, testNow)

	errs := v.ValidateBatch([]*entity.Measurement{ok, future, orphan, nil}, insts, testNow)

	if _, bad := errs[0]; bad {
		t.Fatalf("valid measurement rejected: %v", errs[0])
	}
	if !errors.Is(errs[1], apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for future measurement, got %v", errs[1])
	}
	if !errors.Is(errs[2], apperr.ErrNotFound) {
		t.Fatalf("expected not found for unknown installation, got %v", errs[2])
	}
	if !errors.Is(errs[3], apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for nil measurement, got %v", errs[3])
	}
}

func TestMeasurementValidatorAllowsClockSkew(t *testing.T) {
	v := NewMeasurementValidator(5 * time.Minute)
	inst := installation("inst-1", "site-1", "plugin-a", testNow.AddDate(0, -1, 0))

	m := measurement("inst-1", 500, 10, testNow.Add(2*time.Minute))
	if err := v.Validate(m, inst, testNow); err != nil {
		t.Fatalf("measurement within skew rejected: %v", err)
	}
}
