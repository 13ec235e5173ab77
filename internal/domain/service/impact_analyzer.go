package service

import (
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
)

// BeforeAfterComparison сравнение средних показателей до и после даты установки плагина.
// Это простое разбиение по времени: влияние других изменений на сайте не учитывается,
// поэтому разница не доказывает, что ее вызвал плагин.
// Поля-указатели равны nil, если соответствующая выборка пуста.
type BeforeAfterComparison struct {
	InstallationID   string
	InstallationDate time.Time
	BeforeSamples    int
	AfterSamples     int

	AvgLoadTimeBefore *float64
	AvgLoadTimeAfter  *float64
	AvgMemoryBefore   *float64
	AvgMemoryAfter    *float64

	LoadTimeDelta *float64
	MemoryDelta   *float64

	// ImpactPercentage изменение времени загрузки в процентах.
	// 0, если до установки замеров нет или среднее время было нулевым.
	ImpactPercentage float64
}

// ImpactAnalyzer разбивает замеры установки на «до» и «после» (Domain Service)
type ImpactAnalyzer struct{}

// NewImpactAnalyzer создает новый ImpactAnalyzer
func NewImpactAnalyzer() *ImpactAnalyzer {
	return &ImpactAnalyzer{}
}

// Compare считает средние до installation_date (строго раньше) и после (включительно).
// Для деактивированной установки выборка «после» всегда пуста.
func (a *ImpactAnalyzer) Compare(inst *entity.Installation, measurements []*entity.Measurement) BeforeAfterComparison {
	result := BeforeAfterComparison{
		InstallationID:   inst.ID(),
		InstallationDate: inst.InstallationDate(),
	}

	var before, after meanPair
	boundary := inst.InstallationDate()
	for _, m := range measurements {
		if m == nil || m.InstallationID() != inst.ID() {
			continue
		}
		if m.MeasuredAt().Before(boundary) {
			before.add(m)
			continue
		}
		if !inst.IsDeactivated() {
			after.add(m)
		}
	}

	result.BeforeSamples = before.count
	result.AfterSamples = after.count
	result.AvgLoadTimeBefore, result.AvgMemoryBefore = before.means()
	result.AvgLoadTimeAfter, result.AvgMemoryAfter = after.means()
	result.LoadTimeDelta = delta(result.AvgLoadTimeBefore, result.AvgLoadTimeAfter)
	result.MemoryDelta = delta(result.AvgMemoryBefore, result.AvgMemoryAfter)

	if result.LoadTimeDelta != nil && *result.AvgLoadTimeBefore > 0 {
		result.ImpactPercentage = *result.LoadTimeDelta / *result.AvgLoadTimeBefore * 100
	}

	return result
}

// LatestInstallation выбирает установку с самой поздней датой из нескольких записей пары
func LatestInstallation(installations []*entity.Installation) *entity.Installation {
	var latest *entity.Installation
	for _, inst := range installations {
		if inst == nil {
			continue
		}
		if latest == nil || inst.InstallationDate().After(latest.InstallationDate()) {
			latest = inst
		}
	}
	return latest
}

type meanPair struct {
	count   int
	loadSum float64
	memSum  float64
}

func (p *meanPair) add(m *entity.Measurement) {
	p.count++
	p.loadSum += m.Sample().LoadTimeMs()
	p.memSum += m.Sample().MemoryMB()
}

func (p meanPair) means() (load, mem *float64) {
	if p.count == 0 {
		return nil, nil
	}
	l := p.loadSum / float64(p.count)
	m := p.memSum / float64(p.count)
	return &l, &m
}

func delta(before, after *float64) *float64 {
	if before == nil || after == nil {
		return nil
	}
	d := *after - *before
	return &d
}
