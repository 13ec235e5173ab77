package valueobject

import (
	"errors"
	"strings"
)

// ReportFormat формат экспорта отчета
type ReportFormat string

const (
	ReportCSV  ReportFormat = "csv"
	ReportJSON ReportFormat = "json"
)

// ParseReportFormat разбирает формат без учета регистра
func ParseReportFormat(raw string) (ReportFormat, error) {
	f := ReportFormat(strings.ToLower(strings.TrimSpace(raw)))
	if err := f.Validate(); err != nil {
		return "", err
	}
	return f, nil
}

// Validate проверяет валидность формата
func (f ReportFormat) Validate() error {
	switch f {
	case ReportCSV, ReportJSON:
		return nil
	default:
		return errors.New("unsupported report format")
	}
}

// ContentType возвращает MIME тип формата
func (f ReportFormat) ContentType() string {
	if f == ReportCSV {
		return "text/csv"
	}
	return "application/json"
}

// Extension возвращает расширение файла
func (f ReportFormat) Extension() string {
	return string(f)
}
