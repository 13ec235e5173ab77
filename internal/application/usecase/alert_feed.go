package usecase

import (
	"context"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/repository"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

// DefaultFeedLookback окно ленты для первого опроса без курсора
const DefaultFeedLookback = time.Minute

// AlertFeedUseCase отдает новые алерты для поллинга дашборда
type AlertFeedUseCase struct {
	alerts   repository.AlertRepository
	lookback time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

// NewAlertFeedUseCase создает новый use case
func NewAlertFeedUseCase(alerts repository.AlertRepository, lookback time.Duration, logger *logger.Logger) *AlertFeedUseCase {
	if lookback <= 0 {
		lookback = DefaultFeedLookback
	}
	return &AlertFeedUseCase{
		alerts:   alerts,
		lookback: lookback,
		logger:   logger,
		now:      time.Now,
	}
}

// Since возвращает алерты области с triggered_at строго позже курсора, новые первыми.
// Следующий курсор берется из прочитанных алертов, а не из часов сервера,
// поэтому алерт, записанный во время запроса, попадет в следующий ответ.
// Если новых алертов нет, курсор возвращается без изменений.
func (uc *AlertFeedUseCase) Since(ctx context.Context, scope valueobject.Scope, cursor time.Time) (*dto.AlertFeedDTO, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	if cursor.IsZero() {
		cursor = uc.now().Add(-uc.lookback)
	}
	cursor = cursor.UTC()

	alerts, err := uc.alerts.FindTriggeredAfter(ctx, scope, cursor)
	if err != nil {
		uc.logger.Error("Failed to read alert feed", err, "scope", scope.Key())
		return nil, err
	}

	next := cursor
	for _, a := range alerts {
		if a.TriggeredAt().After(next) {
			next = a.TriggeredAt()
		}
	}

	return &dto.AlertFeedDTO{
		Alerts: dto.ToAlertDTOs(alerts),
		Count:  len(alerts),
		Cursor: next,
	}, nil
}
