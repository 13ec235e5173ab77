package valueobject

// Priority приоритет рекомендации
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Severity переводит приоритет рекомендации в уровень алерта
func (p Priority) Severity() Severity {
	switch p {
	case PriorityHigh:
		return SeverityHigh
	case PriorityMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// RecommendationType тип рекомендации
type RecommendationType string

const (
	RecommendationPerformance RecommendationType = "performance"
	RecommendationMemory      RecommendationType = "memory"
	RecommendationUpdates     RecommendationType = "updates"
)

// AlertType возвращает тип алерта, который порождает рекомендация
func (t RecommendationType) AlertType() AlertType {
	if t == RecommendationUpdates {
		return AlertTypeInfo
	}
	return AlertTypePerformance
}
