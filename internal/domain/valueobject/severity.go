package valueobject

import "errors"

// Severity представляет уровень важности алерта (Value Object)
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Validate проверяет валидность уровня
func (s Severity) Validate() error {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return nil
	default:
		return errors.New("invalid severity")
	}
}

func (s Severity) String() string {
	return string(s)
}

// AllSeverities возвращает уровни от низшего к высшему
func AllSeverities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// AlertType представляет тип алерта (Value Object)
type AlertType string

const (
	AlertTypePerformance AlertType = "performance"
	AlertTypeSecurity    AlertType = "security"
	AlertTypeInfo        AlertType = "info"
)

// Validate проверяет валидность типа алерта
func (t AlertType) Validate() error {
	switch t {
	case AlertTypePerformance, AlertTypeSecurity, AlertTypeInfo:
		return nil
	default:
		return errors.New("invalid alert type")
	}
}

func (t AlertType) String() string {
	return string(t)
}
