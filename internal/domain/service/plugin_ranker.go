package service

import (
	"sort"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

// MinRankingSamples минимальное число замеров в окне для участия в рейтинге.
// Плагины с меньшим числом замеров не попадают ни в один список.
const MinRankingSamples = 3

// PluginRanker строит рейтинги лучших и худших плагинов (Domain Service)
type PluginRanker struct {
	minSamples int
}

// NewPluginRanker создает новый PluginRanker
func NewPluginRanker() *PluginRanker {
	return &PluginRanker{minSamples: MinRankingSamples}
}

// Top возвращает плагины по убыванию балла; при равенстве выигрывает меньшая память.
func (r *PluginRanker) Top(aggregates []AggregateWindow, limit int) ([]AggregateWindow, error) {
	return r.rank(aggregates, limit, func(a, b AggregateWindow) bool {
		if a.AvgScore != b.AvgScore {
			return a.AvgScore > b.AvgScore
		}
		if a.AvgMemoryMB != b.AvgMemoryMB {
			return a.AvgMemoryMB < b.AvgMemoryMB
		}
		return a.GroupKey < b.GroupKey
	})
}

// Poor возвращает плагины по возрастанию балла; при равенстве хуже тот, кто ест больше памяти.
func (r *PluginRanker) Poor(aggregates []AggregateWindow, limit int) ([]AggregateWindow, error) {
	return r.rank(aggregates, limit, func(a, b AggregateWindow) bool {
		if a.AvgScore != b.AvgScore {
			return a.AvgScore < b.AvgScore
		}
		if a.AvgMemoryMB != b.AvgMemoryMB {
			return a.AvgMemoryMB > b.AvgMemoryMB
		}
		return a.GroupKey < b.GroupKey
	})
}

func (r *PluginRanker) rank(
	aggregates []AggregateWindow,
	limit int,
	less func(a, b AggregateWindow) bool,
) ([]AggregateWindow, error) {
	if limit <= 0 {
		return nil, apperr.Invalid("limit must be positive")
	}

	eligible := make([]AggregateWindow, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg.GroupBy != valueobject.GroupByPlugin {
			return nil, apperr.Invalid("ranking requires plugin aggregates, got %q", agg.GroupBy)
		}
		if agg.SampleCount < r.minSamples {
			continue
		}
		eligible = append(eligible, agg)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return less(eligible[i], eligible[j])
	})

	if len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}
