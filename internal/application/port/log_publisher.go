package port

import (
	"context"
	"time"
)

// LogLevel is the upper-case level name shipped with every entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogEntry is one logger call: message plus its key/value pairs.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Fields    map[string]interface{}
}

// LogPublisher receives a copy of every entry written by pkg/logger.
// Publish must not block the caller on network I/O; Flush drains what is buffered.
type LogPublisher interface {
	Publish(ctx context.Context, entry LogEntry) error
	Flush(ctx context.Context) error
}
