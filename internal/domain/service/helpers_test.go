package service

import (
	"fmt"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

var seq int

func measurement(instID string, load, mem float64, at time.Time) *entity.Measurement {
	seq++
	sample := valueobject.NewSample(load, mem, 5, 0)
	score := NewPerformanceScorer().Score(sample)
	return entity.ReconstructMeasurement(fmt.Sprintf("m-%d", seq), instID, sample, score, at, at)
}

func installation(id, siteID, pluginID string, installedAt time.Time) *entity.Installation {
	return entity.ReconstructInstallation(id, siteID, pluginID, "1.0.0", true, installedAt, nil)
}

func installationMap(items ...*entity.Installation) map[string]*entity.Installation {
	out := make(map[string]*entity.Installation, len(items))
	for _, inst := range items {
		out[inst.ID()] = inst
	}
	return out
}

func pluginAggregate(pluginID string, score, memory float64, samples int) AggregateWindow {
	return AggregateWindow{
		GroupBy:     valueobject.GroupByPlugin,
		GroupKey:    pluginID,
		WindowDays:  7,
		AvgScore:    score,
		AvgMemoryMB: memory,
		SampleCount: samples,
	}
}
