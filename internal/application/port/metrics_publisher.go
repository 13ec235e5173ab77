package port

import (
	"context"
	"time"
)

// MeasurementPoint is an ingested measurement enriched with the dimensions
// external observability platforms need.
type MeasurementPoint struct {
	SiteID     string
	PluginSlug string
	LoadTimeMs float64
	MemoryMB   float64
	DBQueries  int
	ErrorCount int
	Score      float64
	MeasuredAt time.Time
}

// MetricsPublisher defines the interface for publishing measurement metrics to external observability platforms.
type MetricsPublisher interface {
	// PublishBatch publishes multiple measurements in a single operation.
	// Implementations should handle batching constraints (e.g., CloudWatch's 1000 metrics/request limit).
	PublishBatch(ctx context.Context, points []MeasurementPoint) error

	// Flush forces immediate publication of any buffered metrics.
	// Should be called during graceful shutdown to prevent data loss.
	Flush(ctx context.Context) error
}
