package port

import (
	"context"
)

// Event subjects published by the application layer
const (
	SubjectMeasurementsIngested = "plugin_monitor.measurements.ingested"
	SubjectAlertRaised          = "plugin_monitor.alerts.raised"
	SubjectAlertTransitioned    = "plugin_monitor.alerts.transitioned"
	SubjectReportExported       = "plugin_monitor.reports.exported"
)

// EventPublisher defines the interface for publishing events to a message broker
type EventPublisher interface {
	// PublishEvent publishes an event to the specified subject
	PublishEvent(ctx context.Context, subject string, event interface{}) error

	// Close closes the connection to the message broker
	Close() error
}
