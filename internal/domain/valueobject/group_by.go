package valueobject

import "errors"

// GroupBy представляет ключ группировки агрегатов (Value Object)
type GroupBy string

const (
	GroupByPlugin GroupBy = "plugin"
	GroupBySite   GroupBy = "site"
	GroupByDay    GroupBy = "day"
)

// Validate проверяет валидность ключа группировки
func (g GroupBy) Validate() error {
	switch g {
	case GroupByPlugin, GroupBySite, GroupByDay:
		return nil
	default:
		return errors.New("invalid group_by")
	}
}

// String возвращает строковое представление ключа
func (g GroupBy) String() string {
	return string(g)
}

// AllGroupBy возвращает список всех допустимых ключей группировки
func AllGroupBy() []GroupBy {
	return []GroupBy{GroupByPlugin, GroupBySite, GroupByDay}
}
