package dto

import (
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
)

// IngestMeasurementCommand входящий замер от коллектора сайта
type IngestMeasurementCommand struct {
	InstallationID string    `json:"installation_id" validate:"required,max=64"`
	LoadTimeMs     float64   `json:"load_time_ms" validate:"gte=0,whole"`
	MemoryMB       float64   `json:"memory_mb" validate:"gte=0"`
	DBQueries      int       `json:"db_queries" validate:"gte=0"`
	ErrorCount     int       `json:"error_count" validate:"gte=0"`
	MeasuredAt     time.Time `json:"timestamp" validate:"required"`
}

// IngestBatchCommand пакет замеров
type IngestBatchCommand struct {
	Measurements []IngestMeasurementCommand `json:"measurements" validate:"required,min=1,dive"`
}

// RejectedMeasurementDTO описывает отклоненный замер
type RejectedMeasurementDTO struct {
	Index          int    `json:"index"`
	InstallationID string `json:"installation_id"`
	Reason         string `json:"reason"`
}

// IngestResultDTO результат приема пакета замеров
type IngestResultDTO struct {
	Accepted     int                      `json:"accepted"`
	Rejected     []RejectedMeasurementDTO `json:"rejected"`
	AlertsRaised int                      `json:"alerts_raised"`
	IngestedAt   time.Time                `json:"ingested_at"`
}

// MeasurementDTO представляет замер для передачи между слоями
type MeasurementDTO struct {
	ID             string    `json:"id"`
	InstallationID string    `json:"installation_id"`
	LoadTimeMs     float64   `json:"load_time_ms"`
	MemoryMB       float64   `json:"memory_mb"`
	DBQueries      int       `json:"db_queries"`
	ErrorCount     int       `json:"error_count"`
	Score          float64   `json:"score"`
	MeasuredAt     time.Time `json:"timestamp"`
}

// FromMeasurement конвертирует Domain Entity в DTO
func FromMeasurement(m *entity.Measurement) *MeasurementDTO {
	s := m.Sample()
	return &MeasurementDTO{
		ID:             m.ID(),
		InstallationID: m.InstallationID(),
		LoadTimeMs:     s.LoadTimeMs(),
		MemoryMB:       s.MemoryMB(),
		DBQueries:      s.DBQueries(),
		ErrorCount:     s.ErrorCount(),
		Score:          m.Score(),
		MeasuredAt:     m.MeasuredAt(),
	}
}
