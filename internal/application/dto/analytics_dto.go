package dto

import (
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/service"
)

// AggregateWindowDTO агрегат группы за окно
type AggregateWindowDTO struct {
	GroupBy        string    `json:"group_by"`
	GroupKey       string    `json:"group_key"`
	Label          string    `json:"label"`
	WindowDays     int       `json:"window_days"`
	AvgScore       float64   `json:"avg_score"`
	AvgMemoryMB    float64   `json:"avg_memory_mb"`
	AvgLoadTimeMs  float64   `json:"avg_load_time_ms"`
	AvgDBQueries   float64   `json:"avg_db_queries"`
	SampleCount    int       `json:"sample_count"`
	SiteCount      int       `json:"site_count"`
	LastMeasuredAt time.Time `json:"last_measured_at"`
}

// FromAggregate конвертирует агрегат в DTO; label подставляется вызывающим
func FromAggregate(a service.AggregateWindow, label string) AggregateWindowDTO {
	if label == "" {
		label = a.GroupKey
	}
	return AggregateWindowDTO{
		GroupBy:        a.GroupBy.String(),
		GroupKey:       a.GroupKey,
		Label:          label,
		WindowDays:     a.WindowDays,
		AvgScore:       round2(a.AvgScore),
		AvgMemoryMB:    round2(a.AvgMemoryMB),
		AvgLoadTimeMs:  round2(a.AvgLoadTimeMs),
		AvgDBQueries:   round2(a.AvgDBQueries),
		SampleCount:    a.SampleCount,
		SiteCount:      a.SiteCount,
		LastMeasuredAt: a.LastMeasuredAt,
	}
}

// AggregatesDTO ответ на запрос агрегатов
type AggregatesDTO struct {
	GroupBy    string               `json:"group_by"`
	WindowDays int                  `json:"window_days"`
	Groups     []AggregateWindowDTO `json:"groups"`
}

// PluginRankDTO строка рейтинга плагинов
type PluginRankDTO struct {
	Rank          int     `json:"rank"`
	PluginID      string  `json:"plugin_id"`
	Slug          string  `json:"slug"`
	Name          string  `json:"name"`
	AvgScore      float64 `json:"avg_score"`
	AvgMemoryMB   float64 `json:"avg_memory_mb"`
	AvgLoadTimeMs float64 `json:"avg_load_time_ms"`
	SampleCount   int     `json:"sample_count"`
	SiteCount     int     `json:"site_count"`
}

// NewPluginRankDTOs строит рейтинг с подстановкой имен из каталога
func NewPluginRankDTOs(aggs []service.AggregateWindow, plugins map[string]*entity.Plugin) []PluginRankDTO {
	out := make([]PluginRankDTO, 0, len(aggs))
	for i, a := range aggs {
		row := PluginRankDTO{
			Rank:          i + 1,
			PluginID:      a.GroupKey,
			Name:          a.GroupKey,
			AvgScore:      round2(a.AvgScore),
			AvgMemoryMB:   round2(a.AvgMemoryMB),
			AvgLoadTimeMs: round2(a.AvgLoadTimeMs),
			SampleCount:   a.SampleCount,
			SiteCount:     a.SiteCount,
		}
		if p, ok := plugins[a.GroupKey]; ok {
			row.Slug = p.Slug()
			row.Name = p.DisplayName()
		}
		out = append(out, row)
	}
	return out
}

// PluginRankingDTO ответ рейтинга
type PluginRankingDTO struct {
	Kind       string          `json:"kind"`
	WindowDays int             `json:"window_days"`
	Plugins    []PluginRankDTO `json:"plugins"`
}

// BeforeAfterDTO сравнение показателей до и после установки плагина.
// Поля nil, если соответствующих замеров нет.
type BeforeAfterDTO struct {
	SiteID            string    `json:"site_id"`
	PluginID          string    `json:"plugin_id"`
	InstallationID    string    `json:"installation_id"`
	InstallationDate  time.Time `json:"installation_date"`
	BeforeSamples     int       `json:"before_samples"`
	AfterSamples      int       `json:"after_samples"`
	AvgLoadTimeBefore *float64  `json:"avg_load_time_before_ms"`
	AvgLoadTimeAfter  *float64  `json:"avg_load_time_after_ms"`
	AvgMemoryBefore   *float64  `json:"avg_memory_before_mb"`
	AvgMemoryAfter    *float64  `json:"avg_memory_after_mb"`
	LoadTimeDelta     *float64  `json:"load_time_delta_ms"`
	MemoryDelta       *float64  `json:"memory_delta_mb"`
	ImpactPercentage  float64   `json:"impact_percentage"`
}

// FromComparison конвертирует результат сравнения в DTO
func FromComparison(siteID, pluginID string, c service.BeforeAfterComparison) *BeforeAfterDTO {
	return &BeforeAfterDTO{
		SiteID:            siteID,
		PluginID:          pluginID,
		InstallationID:    c.InstallationID,
		InstallationDate:  c.InstallationDate,
		BeforeSamples:     c.BeforeSamples,
		AfterSamples:      c.AfterSamples,
		AvgLoadTimeBefore: round2Ptr(c.AvgLoadTimeBefore),
		AvgLoadTimeAfter:  round2Ptr(c.AvgLoadTimeAfter),
		AvgMemoryBefore:   round2Ptr(c.AvgMemoryBefore),
		AvgMemoryAfter:    round2Ptr(c.AvgMemoryAfter),
		LoadTimeDelta:     round2Ptr(c.LoadTimeDelta),
		MemoryDelta:       round2Ptr(c.MemoryDelta),
		ImpactPercentage:  round2(c.ImpactPercentage),
	}
}

// PluginFindingDTO плагин в рекомендации
type PluginFindingDTO struct {
	PluginID         string  `json:"plugin_id"`
	Slug             string  `json:"slug,omitempty"`
	Name             string  `json:"name"`
	AvgLoadTimeMs    float64 `json:"avg_load_time_ms,omitempty"`
	AvgMemoryMB      float64 `json:"avg_memory_mb,omitempty"`
	SiteID           string  `json:"site_id,omitempty"`
	InstalledVersion string  `json:"installed_version,omitempty"`
	LatestVersion    string  `json:"latest_version,omitempty"`
}

// RecommendationDTO рекомендация по оптимизации
type RecommendationDTO struct {
	Type        string             `json:"type"`
	Priority    string             `json:"priority"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Action      string             `json:"action"`
	Plugins     []PluginFindingDTO `json:"plugins"`
}

// FromRecommendations конвертирует рекомендации в DTO
func FromRecommendations(recs []service.Recommendation) []RecommendationDTO {
	out := make([]RecommendationDTO, 0, len(recs))
	for _, r := range recs {
		plugins := make([]PluginFindingDTO, 0, len(r.Plugins))
		for _, f := range r.Plugins {
			plugins = append(plugins, PluginFindingDTO{
				PluginID:         f.PluginID,
				Slug:             f.PluginSlug,
				Name:             f.PluginName,
				AvgLoadTimeMs:    round2(f.AvgLoadTimeMs),
				AvgMemoryMB:      round2(f.AvgMemoryMB),
				SiteID:           f.SiteID,
				InstalledVersion: f.InstalledVersion,
				LatestVersion:    f.LatestVersion,
			})
		}
		out = append(out, RecommendationDTO{
			Type:        string(r.Type),
			Priority:    string(r.Priority),
			Title:       r.Title,
			Description: r.Description,
			Action:      r.Action,
			Plugins:     plugins,
		})
	}
	return out
}

// SiteSummaryDTO сводка по сайту. Средние nil, если замеров в окне нет.
type SiteSummaryDTO struct {
	SiteID          string     `json:"site_id"`
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	PluginCount     int        `json:"plugin_count"`
	AvgScore        *float64   `json:"avg_score"`
	AvgMemoryMB     *float64   `json:"avg_memory_mb"`
	AvgLoadTimeMs   *float64   `json:"avg_load_time_ms"`
	LastMeasurement *time.Time `json:"last_measurement"`
	Grade           string     `json:"grade"`
}

// DashboardSummaryDTO сводка дашборда пользователя
type DashboardSummaryDTO struct {
	TotalSites       int              `json:"total_sites"`
	ActivePlugins    int              `json:"active_plugins"`
	UnresolvedAlerts int64            `json:"unresolved_alerts"`
	CriticalAlerts   int64            `json:"critical_alerts"`
	AvgScore         *float64         `json:"avg_score"`
	Sites            []SiteSummaryDTO `json:"sites"`
	RecentAlerts     []*AlertDTO      `json:"recent_alerts"`
	GeneratedAt      time.Time        `json:"generated_at"`
}
