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

// AggregateQuery параметры запроса агрегатов
type AggregateQuery struct {
	Scope      valueobject.Scope
	WindowDays int
	GroupBy    valueobject.GroupBy
}

// GetPerformanceAggregatesUseCase возвращает агрегаты замеров за окно с кешированием
type GetPerformanceAggregatesUseCase struct {
	measurements repository.MeasurementRepository
	catalog      Catalog
	aggregator   *service.PerformanceAggregator
	cache        port.Cache
	telemetry    port.Telemetry
	logger       *logger.Logger
	now          func() time.Time
}

// NewGetPerformanceAggregatesUseCase создает новый use case; cache может быть nil
func NewGetPerformanceAggregatesUseCase(
	measurements repository.MeasurementRepository,
	catalog Catalog,
	aggregator *service.PerformanceAggregator,
	cache port.Cache,
	telemetry port.Telemetry,
	logger *logger.Logger,
) *GetPerformanceAggregatesUseCase {
	return &GetPerformanceAggregatesUseCase{
		measurements: measurements,
		catalog:      catalog,
		aggregator:   aggregator,
		cache:        cache,
		telemetry:    telemetry,
		logger:       logger,
		now:          time.Now,
	}
}

// Execute выполняет агрегацию замеров области
func (uc *GetPerformanceAggregatesUseCase) Execute(ctx context.Context, query AggregateQuery) (*dto.AggregatesDTO, error) {
	if err := query.Scope.Validate(); err != nil {
		return nil, err
	}
	window, err := valueobject.NewWindow(query.WindowDays)
	if err != nil {
		return nil, apperr.Invalid("%v", err)
	}
	if query.GroupBy == "" {
		query.GroupBy = valueobject.GroupByPlugin
	}
	if err := query.GroupBy.Validate(); err != nil {
		return nil, apperr.Invalid("%v", err)
	}

	key := cacheKey(query.Scope, "aggregates", query.GroupBy, window.Days())
	return cachedRead(ctx, uc.cache, uc.telemetry, uc.logger, "aggregates", key,
		func(ctx context.Context) (*dto.AggregatesDTO, error) {
			return uc.aggregate(ctx, query.Scope, window, query.GroupBy)
		})
}

func (uc *GetPerformanceAggregatesUseCase) aggregate(
	ctx context.Context,
	scope valueobject.Scope,
	window valueobject.Window,
	groupBy valueobject.GroupBy,
) (*dto.AggregatesDTO, error) {
	now := uc.now()
	snap, err := loadSnapshot(ctx, uc.catalog, uc.measurements, scope, window, now, false)
	if err != nil {
		uc.logger.Error("Failed to load measurements for aggregation", err, "scope", scope.Key())
		return nil, err
	}

	groups, err := uc.aggregator.Aggregate(snap.measurements, snap.installations, window, groupBy, now)
	if err != nil {
		return nil, err
	}

	labels, err := uc.labels(ctx, scope, groupBy, snap)
	if err != nil {
		return nil, err
	}

	out := &dto.AggregatesDTO{
		GroupBy:    groupBy.String(),
		WindowDays: window.Days(),
		Groups:     make([]dto.AggregateWindowDTO, 0, len(groups)),
	}
	for _, g := range groups {
		out.Groups = append(out.Groups, dto.FromAggregate(g, labels[g.GroupKey]))
	}

	uc.logger.Debug("Aggregated measurements",
		"scope", scope.Key(),
		"group_by", groupBy.String(),
		"groups", len(out.Groups),
		"samples", len(snap.measurements),
	)

	return out, nil
}

// labels подбирает читаемые подписи групп: имя плагина или сайта
func (uc *GetPerformanceAggregatesUseCase) labels(
	ctx context.Context,
	scope valueobject.Scope,
	groupBy valueobject.GroupBy,
	snap *scopeSnapshot,
) (map[string]string, error) {
	labels := make(map[string]string)
	switch groupBy {
	case valueobject.GroupByPlugin:
		for id, p := range snap.plugins {
			labels[id] = p.DisplayName()
		}
	case valueobject.GroupBySite:
		sites, err := uc.catalog.Sites.FindInScope(ctx, scope)
		if err != nil {
			return nil, err
		}
		for _, s := range sites {
			labels[s.ID()] = s.Name()
		}
	}
	return labels, nil
}
