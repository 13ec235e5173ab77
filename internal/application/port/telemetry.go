package port

// Telemetry records application-level counters.
// Implemented by the Prometheus adapter; a nil Telemetry disables recording.
type Telemetry interface {
	MeasurementsIngested(count int)
	MeasurementsRejected(count int)
	AlertRaised(severity string)
	AlertTransition(transition string, changed bool)
	CacheLookup(name string, hit bool)
}
