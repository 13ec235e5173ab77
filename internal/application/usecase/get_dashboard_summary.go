package usecase

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/repository"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/service"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

// RecentAlertsLimit число последних алертов в сводке
const RecentAlertsLimit = 10

// GetDashboardSummaryUseCase собирает сводку дашборда пользователя
type GetDashboardSummaryUseCase struct {
	measurements repository.MeasurementRepository
	alerts       repository.AlertRepository
	catalog      Catalog
	aggregator   *service.PerformanceAggregator
	scorer       *service.PerformanceScorer
	logger       *logger.Logger
	now          func() time.Time
}

// NewGetDashboardSummaryUseCase создает новый use case
func NewGetDashboardSummaryUseCase(
	measurements repository.MeasurementRepository,
	alerts repository.AlertRepository,
	catalog Catalog,
	aggregator *service.PerformanceAggregator,
	scorer *service.PerformanceScorer,
	logger *logger.Logger,
) *GetDashboardSummaryUseCase {
	return &GetDashboardSummaryUseCase{
		measurements: measurements,
		alerts:       alerts,
		catalog:      catalog,
		aggregator:   aggregator,
		scorer:       scorer,
		logger:       logger,
		now:          time.Now,
	}
}

// Execute возвращает сводку: сайты, активные плагины, алерты и средние за 7 дней.
// Средние отсутствуют (nil), если в окне нет замеров.
func (uc *GetDashboardSummaryUseCase) Execute(ctx context.Context, scope valueobject.Scope) (*dto.DashboardSummaryDTO, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	now := uc.now()
	window := valueobject.DefaultWindow()

	sites, err := uc.catalog.Sites.FindInScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	snap, err := loadSnapshot(ctx, uc.catalog, uc.measurements, scope, window, now, true)
	if err != nil {
		uc.logger.Error("Failed to load data for dashboard summary", err, "scope", scope.Key())
		return nil, err
	}

	bySite, err := uc.aggregator.Aggregate(snap.measurements, snap.installations, window, valueobject.GroupBySite, now)
	if err != nil {
		return nil, err
	}
	siteAggs := make(map[string]service.AggregateWindow, len(bySite))
	for _, a := range bySite {
		siteAggs[a.GroupKey] = a
	}

	pluginCounts := make(map[string]int)
	for _, inst := range snap.installations {
		pluginCounts[inst.SiteID()]++
	}

	unresolved, err := uc.alerts.CountUnresolved(ctx, scope, "")
	if err != nil {
		return nil, err
	}
	critical, err := uc.alerts.CountUnresolved(ctx, scope, valueobject.SeverityCritical)
	if err != nil {
		return nil, err
	}
	recent, err := uc.alerts.FindRecent(ctx, scope, RecentAlertsLimit)
	if err != nil {
		return nil, err
	}

	summary := &dto.DashboardSummaryDTO{
		TotalSites:       len(sites),
		ActivePlugins:    len(snap.installations),
		UnresolvedAlerts: unresolved,
		CriticalAlerts:   critical,
		Sites:            make([]dto.SiteSummaryDTO, 0, len(sites)),
		RecentAlerts:     dto.ToAlertDTOs(recent),
		GeneratedAt:      now.UTC(),
	}

	if avg, _, ok := uc.aggregator.Overall(snap.measurements, snap.installations, window, now); ok {
		summary.AvgScore = &avg
	}

	for _, s := range sites {
		row := dto.SiteSummaryDTO{
			SiteID:      s.ID(),
			Name:        s.Name(),
			URL:         s.URL(),
			PluginCount: pluginCounts[s.ID()],
			Grade:       string(valueobject.GradeUnknown),
		}
		if a, ok := siteAggs[s.ID()]; ok {
			score, mem, load := a.AvgScore, a.AvgMemoryMB, a.AvgLoadTimeMs
			last := a.LastMeasuredAt
			row.AvgScore = roundedPtr(score)
			row.AvgMemoryMB = roundedPtr(mem)
			row.AvgLoadTimeMs = roundedPtr(load)
			row.LastMeasurement = &last
			row.Grade = string(uc.scorer.Grade(score))
		}
		summary.Sites = append(summary.Sites, row)
	}

	sortSiteSummaries(summary.Sites)
	return summary, nil
}

// sortSiteSummaries сортирует сайты по убыванию балла; сайты без замеров в конце
func sortSiteSummaries(rows []dto.SiteSummaryDTO) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].AvgScore, rows[j].AvgScore
		switch {
		case a == nil && b == nil:
			return rows[i].Name < rows[j].Name
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a > *b
		default:
			return rows[i].Name < rows[j].Name
		}
	})
}

func roundedPtr(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}
