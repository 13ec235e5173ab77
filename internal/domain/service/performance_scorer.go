package service

import (
	"math"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

// Пороги и штрафы балла производительности
const (
	MaxScore = 4.0

	loadTimeThresholdMs = 1000.0
	loadTimeDivisor     = 2000.0
	loadTimeMaxPenalty  = 2.0

	memoryThresholdMB = 32.0
	memoryDivisor     = 64.0
	memoryMaxPenalty  = 1.0

	queryThreshold  = 10.0
	queryDivisor    = 20.0
	queryMaxPenalty = 0.5

	errorPenaltyStep = 0.1
	errorMaxPenalty  = 0.5
)

// PerformanceScorer вычисляет балл производительности замера (Domain Service)
// Чистая функция без состояния
type PerformanceScorer struct{}

// NewPerformanceScorer создает новый PerformanceScorer
func NewPerformanceScorer() *PerformanceScorer {
	return &PerformanceScorer{}
}

// Score возвращает балл в диапазоне [0, 4], округленный до одного знака.
// Штрафы независимы и суммируются.
func (s *PerformanceScorer) Score(sample valueobject.Sample) float64 {
	score := MaxScore

	if load := sample.LoadTimeMs(); load > loadTimeThresholdMs {
		score -= math.Min(loadTimeMaxPenalty, (load-loadTimeThresholdMs)/loadTimeDivisor)
	}

	if mem := sample.MemoryMB(); mem > memoryThresholdMB {
		score -= math.Min(memoryMaxPenalty, (mem-memoryThresholdMB)/memoryDivisor)
	}

	if q := float64(sample.DBQueries()); q > queryThreshold {
		score -= math.Min(queryMaxPenalty, (q-queryThreshold)/queryDivisor)
	}

	score -= math.Min(errorMaxPenalty, float64(sample.ErrorCount())*errorPenaltyStep)

	return math.Max(0, roundTo(score, 1))
}

// ScoreValues удобная обертка над Score для сырых значений
func (s *PerformanceScorer) ScoreValues(loadTimeMs, memoryMB float64, dbQueries, errorCount int) float64 {
	return s.Score(valueobject.NewSample(loadTimeMs, memoryMB, dbQueries, errorCount))
}

// Grade возвращает словесную оценку среднего балла
func (s *PerformanceScorer) Grade(avgScore float64) valueobject.Grade {
	return valueobject.GradeFor(avgScore)
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
