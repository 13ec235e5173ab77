package service

import (
	"testing"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
)

func TestCompareBoundaryBelongsToAfter(t *testing.T) {
	installedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	inst := installation("inst-1", "site-1", "plugin-a", installedAt)

	ms := []*entity.Measurement{
		measurement("inst-1", 1000, 20, installedAt.Add(-48*time.Hour)),
		measurement("inst-1", 1000, 20, installedAt.Add(-time.Microsecond)),
		measurement("inst-1", 1500, 30, installedAt),
		measurement("inst-1", 1500, 30, installedAt.Add(24*time.Hour)),
	}

	got := NewImpactAnalyzer().Compare(inst, ms)
	if got.BeforeSamples != 2 || got.AfterSamples != 2 {
		t.Fatalf("expected 2/2 split, got %d/%d", got.BeforeSamples, got.AfterSamples)
	}
	if got.LoadTimeDelta == nil || *got.LoadTimeDelta != 500 {
		t.Fatalf("unexpected load delta %v", got.LoadTimeDelta)
	}
	if got.MemoryDelta == nil || *got.MemoryDelta != 10 {
		t.Fatalf("unexpected memory delta %v", got.MemoryDelta)
	}
	if got.ImpactPercentage != 50 {
		t.Fatalf("expected 50%%, got %v", got.ImpactPercentage)
	}
}

func TestCompareWithoutBeforeSamples(t *testing.T) {
	installedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	inst := installation("inst-1", "site-1", "plugin-a", installedAt)

	got := NewImpactAnalyzer().Compare(inst, []*entity.Measurement{
		measurement("inst-1", 1500, 30, installedAt.Add(time.Hour)),
	})

	if got.AvgLoadTimeBefore != nil || got.LoadTimeDelta != nil || got.MemoryDelta != nil {
		t.Fatalf("deltas must be absent without before samples: %+v", got)
	}
	if got.AvgLoadTimeAfter == nil || *got.AvgLoadTimeAfter != 1500 {
		t.Fatalf("unexpected after average %v", got.AvgLoadTimeAfter)
	}
	if got.ImpactPercentage != 0 {
		t.Fatalf("impact percentage must fall back to 0, got %v", got.ImpactPercentage)
	}
}

func TestCompareZeroBeforeLoadTime(t *testing.T) {
	installedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	inst := installation("inst-1", "site-1", "plugin-a", installedAt)

	got := NewImpactAnalyzer().Compare(inst, []*entity.Measurement{
		measurement("inst-1", 0, 10, installedAt.Add(-time.Hour)),
		measurement("inst-1", 800, 10, installedAt.Add(time.Hour)),
	})
	if got.LoadTimeDelta == nil || *got.LoadTimeDelta != 800 {
		t.Fatalf("unexpected load delta %v", got.LoadTimeDelta)
	}
	if got.ImpactPercentage != 0 {
		t.Fatalf("expected 0 percentage for zero baseline, got %v", got.ImpactPercentage)
	}
}

func TestCompareDeactivatedHasNoAfterSet(t *testing.T) {
	installedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	deactivatedAt := installedAt.Add(72 * time.Hour)
	inst := entity.ReconstructInstallation("inst-1", "site-1", "plugin-a", "1.0", false, installedAt, &deactivatedAt)

	got := NewImpactAnalyzer().Compare(inst, []*entity.Measurement{
		measurement("inst-1", 1000, 10, installedAt.Add(-time.Hour)),
		measurement("inst-1", 3000, 10, installedAt.Add(time.Hour)),
	})
	if got.AfterSamples != 0 || got.LoadTimeDelta != nil {
		t.Fatalf("deactivated installation must have empty after set: %+v", got)
	}
}

func TestLatestInstallation(t *testing.T) {
	older := installation("old", "site-1", "plugin-a", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := installation("new", "site-1", "plugin-a", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	if got := LatestInstallation([]*entity.Installation{older, newer, nil}); got.ID() != "new" {
		t.Fatalf("expected newest installation, got %s", got.ID())
	}
	if LatestInstallation(nil) != nil {
		t.Fatalf("expected nil for empty input")
	}
}
