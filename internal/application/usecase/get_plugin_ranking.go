package usecase

import (
	"context"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/repository"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/service"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

// Виды рейтинга
const (
	RankingTop  = "top"
	RankingPoor = "poor"
)

// DefaultRankingLimit размер рейтинга по умолчанию
const DefaultRankingLimit = 5

// GetPluginRankingUseCase строит рейтинги плагинов по активным установкам за 7 дней
type GetPluginRankingUseCase struct {
	measurements repository.MeasurementRepository
	catalog      Catalog
	aggregator   *service.PerformanceAggregator
	ranker       *service.PluginRanker
	cache        port.Cache
	telemetry    port.Telemetry
	logger       *logger.Logger
	now          func() time.Time
}

// NewGetPluginRankingUseCase создает новый use case; cache может быть nil
func NewGetPluginRankingUseCase(
	measurements repository.MeasurementRepository,
	catalog Catalog,
	aggregator *service.PerformanceAggregator,
	ranker *service.PluginRanker,
	cache port.Cache,
	telemetry port.Telemetry,
	logger *logger.Logger,
) *GetPluginRankingUseCase {
	return &GetPluginRankingUseCase{
		measurements: measurements,
		catalog:      catalog,
		aggregator:   aggregator,
		ranker:       ranker,
		cache:        cache,
		telemetry:    telemetry,
		logger:       logger,
		now:          time.Now,
	}
}

// Top возвращает лучшие плагины области
func (uc *GetPluginRankingUseCase) Top(ctx context.Context, scope valueobject.Scope, limit int) (*dto.PluginRankingDTO, error) {
	return uc.execute(ctx, scope, RankingTop, limit)
}

// Poor возвращает худшие плагины области
func (uc *GetPluginRankingUseCase) Poor(ctx context.Context, scope valueobject.Scope, limit int) (*dto.PluginRankingDTO, error) {
	return uc.execute(ctx, scope, RankingPoor, limit)
}

func (uc *GetPluginRankingUseCase) execute(
	ctx context.Context,
	scope valueobject.Scope,
	kind string,
	limit int,
) (*dto.PluginRankingDTO, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, apperr.Invalid("limit must be positive")
	}

	key := cacheKey(scope, "ranking", kind, limit)
	return cachedRead(ctx, uc.cache, uc.telemetry, uc.logger, "ranking", key,
		func(ctx context.Context) (*dto.PluginRankingDTO, error) {
			return uc.rank(ctx, scope, kind, limit)
		})
}

func (uc *GetPluginRankingUseCase) rank(
	ctx context.Context,
	scope valueobject.Scope,
	kind string,
	limit int,
) (*dto.PluginRankingDTO, error) {
	window := valueobject.DefaultWindow()
	now := uc.now()

	snap, err := loadSnapshot(ctx, uc.catalog, uc.measurements, scope, window, now, true)
	if err != nil {
		uc.logger.Error("Failed to load measurements for ranking", err, "scope", scope.Key())
		return nil, err
	}

	aggs, err := uc.aggregator.Aggregate(snap.measurements, snap.installations, window, valueobject.GroupByPlugin, now)
	if err != nil {
		return nil, err
	}

	var ranked []service.AggregateWindow
	if kind == RankingPoor {
		ranked, err = uc.ranker.Poor(aggs, limit)
	} else {
		ranked, err = uc.ranker.Top(aggs, limit)
	}
	if err != nil {
		return nil, err
	}

	return &dto.PluginRankingDTO{
		Kind:       kind,
		WindowDays: window.Days(),
		Plugins:    dto.NewPluginRankDTOs(ranked, snap.plugins),
	}, nil
}
