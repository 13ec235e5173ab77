package usecase

import (
	"context"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/repository"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/service"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

// GetRecommendationsUseCase строит рекомендации по плагинам области за 7 дней
type GetRecommendationsUseCase struct {
	measurements repository.MeasurementRepository
	catalog      Catalog
	aggregator   *service.PerformanceAggregator
	engine       *service.RecommendationEngine
	cache        port.Cache
	telemetry    port.Telemetry
	logger       *logger.Logger
	now          func() time.Time
}

// NewGetRecommendationsUseCase создает новый use case; cache может быть nil
func NewGetRecommendationsUseCase(
	measurements repository.MeasurementRepository,
	catalog Catalog,
	aggregator *service.PerformanceAggregator,
	engine *service.RecommendationEngine,
	cache port.Cache,
	telemetry port.Telemetry,
	logger *logger.Logger,
) *GetRecommendationsUseCase {
	return &GetRecommendationsUseCase{
		measurements: measurements,
		catalog:      catalog,
		aggregator:   aggregator,
		engine:       engine,
		cache:        cache,
		telemetry:    telemetry,
		logger:       logger,
		now:          time.Now,
	}
}

// Execute возвращает рекомендации в порядке performance, memory, updates
func (uc *GetRecommendationsUseCase) Execute(ctx context.Context, scope valueobject.Scope) ([]dto.RecommendationDTO, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	key := cacheKey(scope, "recommendations")
	return cachedRead(ctx, uc.cache, uc.telemetry, uc.logger, "recommendations", key,
		func(ctx context.Context) ([]dto.RecommendationDTO, error) {
			recs, err := uc.Recommend(ctx, scope)
			if err != nil {
				return nil, err
			}
			return dto.FromRecommendations(recs), nil
		})
}

// Recommend возвращает доменные рекомендации без кеша (используется советником)
func (uc *GetRecommendationsUseCase) Recommend(ctx context.Context, scope valueobject.Scope) ([]service.Recommendation, error) {
	window := valueobject.DefaultWindow()
	now := uc.now()

	snap, err := loadSnapshot(ctx, uc.catalog, uc.measurements, scope, window, now, false)
	if err != nil {
		uc.logger.Error("Failed to load data for recommendations", err, "scope", scope.Key())
		return nil, err
	}

	aggs, err := uc.aggregator.Aggregate(snap.measurements, snap.installations, window, valueobject.GroupByPlugin, now)
	if err != nil {
		return nil, err
	}

	return uc.engine.Recommend(service.RecommendationInput{
		PluginAggregates: aggs,
		Plugins:          snap.plugins,
		Installations:    snap.installationList(),
	}), nil
}
