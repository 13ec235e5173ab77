package entity

import (
	"errors"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/google/uuid"
)

// Measurement представляет один замер работы плагина на сайте (Aggregate Root)
// Иммутабельна после записи: новые замеры только дополняют историю
type Measurement struct {
	id             string
	installationID string
	sample         valueobject.Sample
	score          float64
	measuredAt     time.Time
	createdAt      time.Time
}

// NewMeasurement создает новый замер (Factory Method)
// Балл вычисляется до записи, см. service.PerformanceScorer
func NewMeasurement(
	installationID string,
	sample valueobject.Sample,
	score float64,
	measuredAt time.Time,
) (*Measurement, error) {
	if installationID == "" {
		return nil, errors.New("installation_id is required")
	}

	if measuredAt.IsZero() {
		return nil, errors.New("measured_at cannot be zero")
	}

	if score < 0 || score > 4 {
		return nil, errors.New("score must be within [0, 4]")
	}

	return &Measurement{
		id:             uuid.New().String(),
		installationID: installationID,
		sample:         sample,
		score:          score,
		measuredAt:     measuredAt.UTC(),
		createdAt:      time.Now().UTC(),
	}, nil
}

// ReconstructMeasurement восстанавливает замер из хранилища (для Repository)
func ReconstructMeasurement(
	id string,
	installationID string,
	sample valueobject.Sample,
	score float64,
	measuredAt, createdAt time.Time,
) *Measurement {
	return &Measurement{
		id:             id,
		installationID: installationID,
		sample:         sample,
		score:          score,
		measuredAt:     measuredAt,
		createdAt:      createdAt,
	}
}

// ID возвращает идентификатор замера
func (m *Measurement) ID() string {
	return m.id
}

// InstallationID возвращает идентификатор установки плагина
func (m *Measurement) InstallationID() string {
	return m.installationID
}

// Sample возвращает сырые показатели замера
func (m *Measurement) Sample() valueobject.Sample {
	return m.sample
}

// Score возвращает балл производительности в диапазоне [0, 4]
func (m *Measurement) Score() float64 {
	return m.score
}

// MeasuredAt возвращает время замера
func (m *Measurement) MeasuredAt() time.Time {
	return m.measuredAt
}

// CreatedAt возвращает время создания записи
func (m *Measurement) CreatedAt() time.Time {
	return m.createdAt
}
