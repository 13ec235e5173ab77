package valueobject

import "fmt"

// Sample представляет один замер стоимости плагина (Value Object)
// Иммутабельный объект
type Sample struct {
	loadTimeMs float64
	memoryMB   float64
	dbQueries  int
	errorCount int
}

// NewSample создает Sample. Отрицательные значения приводятся к нулю:
// шумные данные с сайтов не должны ломать дашборд.
func NewSample(loadTimeMs, memoryMB float64, dbQueries, errorCount int) Sample {
	return Sample{
		loadTimeMs: clampFloat(loadTimeMs),
		memoryMB:   clampFloat(memoryMB),
		dbQueries:  clampInt(dbQueries),
		errorCount: clampInt(errorCount),
	}
}

// LoadTimeMs возвращает время загрузки страницы в миллисекундах
func (s Sample) LoadTimeMs() float64 {
	return s.loadTimeMs
}

// MemoryMB возвращает потребление памяти в мегабайтах
func (s Sample) MemoryMB() float64 {
	return s.memoryMB
}

// DBQueries возвращает количество запросов к БД
func (s Sample) DBQueries() int {
	return s.dbQueries
}

// ErrorCount возвращает количество ошибок
func (s Sample) ErrorCount() int {
	return s.errorCount
}

// String возвращает строковое представление
func (s Sample) String() string {
	return fmt.Sprintf("load=%.0fms mem=%.2fMB queries=%d errors=%d",
		s.loadTimeMs, s.memoryMB, s.dbQueries, s.errorCount)
}

// Equals сравнивает два Sample
func (s Sample) Equals(other Sample) bool {
	return s == other
}

func clampFloat(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	return v
}

func clampInt(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
