package entity

import (
	"testing"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

func TestInstallationDeactivateOnce(t *testing.T) {
	inst, err := NewInstallation("inst-1", "site-1", "plugin-1", "1.0.0", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewInstallation returned error: %v", err)
	}
	if !inst.IsActive() || inst.IsDeactivated() {
		t.Fatalf("new installation must be active")
	}

	first := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	inst.Deactivate(first)
	inst.Deactivate(first.Add(24 * time.Hour))

	if inst.IsActive() {
		t.Fatalf("deactivated installation must not be active")
	}
	if !inst.DeactivationDate().Equal(first) {
		t.Fatalf("deactivation date must not be overwritten, got %v", inst.DeactivationDate())
	}
}

func TestNewMeasurementValidation(t *testing.T) {
	sample := valueobject.NewSample(500, 20, 5, 0)
	now := time.Now()

	if _, err := NewMeasurement("", sample, 4, now); err == nil {
		t.Fatalf("expected error for empty installation")
	}
	if _, err := NewMeasurement("inst-1", sample, 4.5, now); err == nil {
		t.Fatalf("expected error for score above 4")
	}
	m, err := NewMeasurement("inst-1", sample, 4, now)
	if err != nil {
		t.Fatalf("NewMeasurement returned error: %v", err)
	}
	if m.ID() == "" || m.Sample() != sample {
		t.Fatalf("unexpected measurement %+v", m)
	}
}
