package service

import (
	"sort"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

// Пороги правил рекомендаций
const (
	SlowLoadTimeThresholdMs = 2000.0
	HighMemoryThresholdMB   = 50.0
)

// PluginFinding плагин, попавший под правило рекомендации
type PluginFinding struct {
	PluginID         string
	PluginSlug       string
	PluginName       string
	AvgLoadTimeMs    float64
	AvgMemoryMB      float64
	SiteID           string
	InstalledVersion string
	LatestVersion    string
}

// Recommendation рекомендация по оптимизации. Не хранится, строится на каждый запрос.
type Recommendation struct {
	Type        valueobject.RecommendationType
	Priority    valueobject.Priority
	Title       string
	Description string
	Action      string
	Plugins     []PluginFinding
}

// RecommendationInput данные для правил: агрегаты по плагинам за 7 дней,
// каталог плагинов и установки в области пользователя
type RecommendationInput struct {
	PluginAggregates []AggregateWindow
	Plugins          map[string]*entity.Plugin
	Installations    []*entity.Installation
}

// RecommendationEngine применяет фиксированные правила к агрегатам (Domain Service)
type RecommendationEngine struct{}

// NewRecommendationEngine создает новый RecommendationEngine
func NewRecommendationEngine() *RecommendationEngine {
	return &RecommendationEngine{}
}

// Recommend возвращает рекомендации в фиксированном порядке: performance, memory, updates.
// Правило без совпадений не дает рекомендации.
func (e *RecommendationEngine) Recommend(in RecommendationInput) []Recommendation {
	var out []Recommendation

	if slow := e.slowPlugins(in); len(slow) > 0 {
		out = append(out, Recommendation{
			Type:        valueobject.RecommendationPerformance,
			Priority:    valueobject.PriorityHigh,
			Title:       "Optimize Slow-Loading Plugins",
			Description: "Some plugins are significantly impacting page load times.",
			Action:      "Consider replacing or optimizing these plugins",
			Plugins:     slow,
		})
	}

	if heavy := e.memoryHeavyPlugins(in); len(heavy) > 0 {
		out = append(out, Recommendation{
			Type:        valueobject.RecommendationMemory,
			Priority:    valueobject.PriorityMedium,
			Title:       "High Memory Usage Detected",
			Description: "Some plugins are using excessive memory.",
			Action:      "Monitor memory usage and consider alternatives",
			Plugins:     heavy,
		})
	}

	if outdated := e.outdatedPlugins(in); len(outdated) > 0 {
		out = append(out, Recommendation{
			Type:        valueobject.RecommendationUpdates,
			Priority:    valueobject.PriorityMedium,
			Title:       "Plugin Updates Available",
			Description: "Several plugins have updates available that may improve performance.",
			Action:      "Update plugins to their latest versions",
			Plugins:     outdated,
		})
	}

	return out
}

func (e *RecommendationEngine) slowPlugins(in RecommendationInput) []PluginFinding {
	var found []PluginFinding
	for _, agg := range in.PluginAggregates {
		if agg.GroupBy == valueobject.GroupByPlugin && agg.AvgLoadTimeMs > SlowLoadTimeThresholdMs {
			found = append(found, findingFromAggregate(agg, in.Plugins))
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].AvgLoadTimeMs != found[j].AvgLoadTimeMs {
			return found[i].AvgLoadTimeMs > found[j].AvgLoadTimeMs
		}
		return found[i].PluginID < found[j].PluginID
	})
	return found
}

func (e *RecommendationEngine) memoryHeavyPlugins(in RecommendationInput) []PluginFinding {
	var found []PluginFinding
	for _, agg := range in.PluginAggregates {
		if agg.GroupBy == valueobject.GroupByPlugin && agg.AvgMemoryMB > HighMemoryThresholdMB {
			found = append(found, findingFromAggregate(agg, in.Plugins))
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].AvgMemoryMB != found[j].AvgMemoryMB {
			return found[i].AvgMemoryMB > found[j].AvgMemoryMB
		}
		return found[i].PluginID < found[j].PluginID
	})
	return found
}

func (e *RecommendationEngine) outdatedPlugins(in RecommendationInput) []PluginFinding {
	var found []PluginFinding
	for _, inst := range in.Installations {
		if inst == nil || !inst.IsActive() {
			continue
		}
		p, ok := in.Plugins[inst.PluginID()]
		if !ok || !valueobject.IsOutdated(inst.InstalledVersion(), p.LatestVersion()) {
			continue
		}
		found = append(found, PluginFinding{
			PluginID:         p.ID(),
			PluginSlug:       p.Slug(),
			PluginName:       p.DisplayName(),
			SiteID:           inst.SiteID(),
			InstalledVersion: inst.InstalledVersion(),
			LatestVersion:    p.LatestVersion(),
		})
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].PluginName != found[j].PluginName {
			return found[i].PluginName < found[j].PluginName
		}
		return found[i].SiteID < found[j].SiteID
	})
	return found
}

func findingFromAggregate(agg AggregateWindow, plugins map[string]*entity.Plugin) PluginFinding {
	f := PluginFinding{
		PluginID:      agg.GroupKey,
		PluginName:    agg.GroupKey,
		AvgLoadTimeMs: agg.AvgLoadTimeMs,
		AvgMemoryMB:   agg.AvgMemoryMB,
	}
	if p, ok := plugins[agg.GroupKey]; ok {
		f.PluginSlug = p.Slug()
		f.PluginName = p.DisplayName()
		f.LatestVersion = p.LatestVersion()
	}
	return f
}
