package repository

import (
	"context"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

// MeasurementRepository определяет интерфейс для работы с хранилищем замеров (Port)
// Реализация будет в Infrastructure слое. Замеры только добавляются.
type MeasurementRepository interface {
	// SaveBatch сохраняет несколько замеров одной транзакцией
	SaveBatch(ctx context.Context, measurements []*entity.Measurement) error

	// FindInScope находит замеры установок в области с measured_at >= since
	FindInScope(ctx context.Context, scope valueobject.Scope, since time.Time) ([]*entity.Measurement, error)

	// FindByInstallation находит все замеры одной установки
	FindByInstallation(ctx context.Context, installationID string) ([]*entity.Measurement, error)

	// FindLatestInScope находит последние замеры в области, новые первыми
	FindLatestInScope(ctx context.Context, scope valueobject.Scope, limit int) ([]*entity.Measurement, error)
}
