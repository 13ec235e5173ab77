package service

import (
	"math"
	"sort"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

// dayLayout формат ключа группировки по дню (UTC)
const dayLayout = "2006-01-02"

// AggregateWindow агрегат замеров одной группы за окно.
// Вычисляется на лету и не хранится. Группа без замеров не создается,
// поэтому средние всегда определены.
type AggregateWindow struct {
	GroupBy        valueobject.GroupBy
	GroupKey       string
	WindowDays     int
	AvgScore       float64
	AvgMemoryMB    float64
	AvgLoadTimeMs  float64
	AvgDBQueries   float64
	SampleCount    int
	SiteCount      int
	LastMeasuredAt time.Time
}

// PerformanceAggregator агрегирует замеры по плагину, сайту или дню (Domain Service)
type PerformanceAggregator struct{}

// NewPerformanceAggregator создает новый PerformanceAggregator
func NewPerformanceAggregator() *PerformanceAggregator {
	return &PerformanceAggregator{}
}

// Aggregate группирует замеры, попавшие в окно [now - days, ...).
// installations задает область: замеры неизвестных установок пропускаются.
// Результат упорядочен по ключу группы по возрастанию (для дня это хронология).
func (a *PerformanceAggregator) Aggregate(
	measurements []*entity.Measurement,
	installations map[string]*entity.Installation,
	window valueobject.Window,
	groupBy valueobject.GroupBy,
	now time.Time,
) ([]AggregateWindow, error) {
	if window.IsZero() {
		return nil, apperr.Invalid("window_days must be positive")
	}
	if err := groupBy.Validate(); err != nil {
		return nil, apperr.Invalid("unknown group_by %q", groupBy)
	}

	groups := make(map[string]*accumulator)
	for _, m := range measurements {
		if m == nil || !window.Includes(m.MeasuredAt(), now) {
			continue
		}
		inst, ok := installations[m.InstallationID()]
		if !ok {
			continue
		}

		key := groupKey(groupBy, inst, m)
		acc, ok := groups[key]
		if !ok {
			acc = newAccumulator()
			groups[key] = acc
		}
		acc.add(m, inst.SiteID())
	}

	result := make([]AggregateWindow, 0, len(groups))
	for key, acc := range groups {
		if acc.count == 0 {
			continue
		}
		result = append(result, acc.window(groupBy, key, window.Days()))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].GroupKey < result[j].GroupKey
	})

	return result, nil
}

// Overall возвращает средний балл по всей области за окно.
// ok=false, если в окне нет ни одного замера.
func (a *PerformanceAggregator) Overall(
	measurements []*entity.Measurement,
	installations map[string]*entity.Installation,
	window valueobject.Window,
	now time.Time,
) (avg float64, samples int, ok bool) {
	acc := newAccumulator()
	for _, m := range measurements {
		if m == nil || !window.Includes(m.MeasuredAt(), now) {
			continue
		}
		inst, known := installations[m.InstallationID()]
		if !known {
			continue
		}
		acc.add(m, inst.SiteID())
	}

	if acc.count == 0 {
		return 0, 0, false
	}
	return roundTo(acc.avgScore(), 1), acc.count, true
}

func groupKey(groupBy valueobject.GroupBy, inst *entity.Installation, m *entity.Measurement) string {
	switch groupBy {
	case valueobject.GroupByPlugin:
		return inst.PluginID()
	case valueobject.GroupBySite:
		return inst.SiteID()
	default:
		return m.MeasuredAt().UTC().Format(dayLayout)
	}
}

type accumulator struct {
	count int
	// scoreTenths сумма баллов в десятых долях. Баллы хранятся с одним знаком,
	// поэтому сумма точная и равные средние дают одинаковый float64.
	scoreTenths int64
	memorySum  float64
	loadSum    float64
	queriesSum float64
	sites      map[string]struct{}
	last       time.Time
}

func newAccumulator() *accumulator {
	return &accumulator{sites: make(map[string]struct{})}
}

func (acc *accumulator) add(m *entity.Measurement, siteID string) {
	s := m.Sample()
	acc.count++
	acc.scoreTenths += int64(math.Round(m.Score() * 10))
	acc.memorySum += s.MemoryMB()
	acc.loadSum += s.LoadTimeMs()
	acc.queriesSum += float64(s.DBQueries())
	acc.sites[siteID] = struct{}{}
	if m.MeasuredAt().After(acc.last) {
		acc.last = m.MeasuredAt()
	}
}

// avgScore делит один раз, чтобы результат был ближайшим float64 к точному среднему
func (acc *accumulator) avgScore() float64 {
	return float64(acc.scoreTenths) / float64(10*acc.count)
}

func (acc *accumulator) window(groupBy valueobject.GroupBy, key string, days int) AggregateWindow {
	n := float64(acc.count)
	return AggregateWindow{
		GroupBy:        groupBy,
		GroupKey:       key,
		WindowDays:     days,
		AvgScore:       acc.avgScore(),
		AvgMemoryMB:    acc.memorySum / n,
		AvgLoadTimeMs:  acc.loadSum / n,
		AvgDBQueries:   acc.queriesSum / n,
		SampleCount:    acc.count,
		SiteCount:      len(acc.sites),
		LastMeasuredAt: acc.last,
	}
}
