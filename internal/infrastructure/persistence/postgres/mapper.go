package postgres

import (
	"database/sql"
	"math"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

// rowScanner общий интерфейс *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// MeasurementDBModel представляет замер в БД
type MeasurementDBModel struct {
	ID             string
	InstallationID string
	LoadTimeMs     int64
	MemoryMB       float64
	DBQueries      int
	ErrorCount     int
	Score          float64
	MetricDate     time.Time
	CreatedAt      time.Time
}

// ToMeasurementDBModel конвертирует Domain Entity в DB Model
func ToMeasurementDBModel(m *entity.Measurement) *MeasurementDBModel {
	s := m.Sample()
	return &MeasurementDBModel{
		ID:             m.ID(),
		InstallationID: m.InstallationID(),
		LoadTimeMs:     int64(math.Round(s.LoadTimeMs())),
		MemoryMB:       s.MemoryMB(),
		DBQueries:      s.DBQueries(),
		ErrorCount:     s.ErrorCount(),
		Score:          m.Score(),
		MetricDate:     m.MeasuredAt(),
		CreatedAt:      m.CreatedAt(),
	}
}

// ToMeasurementEntity конвертирует DB Model в Domain Entity
func ToMeasurementEntity(model *MeasurementDBModel) *entity.Measurement {
	sample := valueobject.NewSample(float64(model.LoadTimeMs), model.MemoryMB, model.DBQueries, model.ErrorCount)
	return entity.ReconstructMeasurement(
		model.ID,
		model.InstallationID,
		sample,
		model.Score,
		model.MetricDate.UTC(),
		model.CreatedAt.UTC(),
	)
}

const measurementColumns = `pm.id, pm.installation_id, pm.page_load_time_ms, pm.memory_usage_mb,
	pm.database_queries, pm.error_count, pm.performance_score, pm.metric_date, pm.created_at`

// ScanMeasurementRow сканирует строку БД в MeasurementDBModel
func ScanMeasurementRow(row rowScanner) (*MeasurementDBModel, error) {
	var model MeasurementDBModel
	err := row.Scan(
		&model.ID,
		&model.InstallationID,
		&model.LoadTimeMs,
		&model.MemoryMB,
		&model.DBQueries,
		&model.ErrorCount,
		&model.Score,
		&model.MetricDate,
		&model.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &model, nil
}

const installationColumns = `pi.id, pi.site_id, pi.plugin_id, pi.installed_version,
	pi.is_active, pi.installation_date, pi.deactivation_date`

// ScanInstallationRow сканирует строку БД в entity.Installation
func ScanInstallationRow(row rowScanner) (*entity.Installation, error) {
	var (
		id, siteID, pluginID, version string
		active                        bool
		installedAt                   time.Time
		deactivatedAt                 sql.NullTime
	)
	if err := row.Scan(&id, &siteID, &pluginID, &version, &active, &installedAt, &deactivatedAt); err != nil {
		return nil, err
	}
	return entity.ReconstructInstallation(id, siteID, pluginID, version, active,
		installedAt.UTC(), nullTimePtr(deactivatedAt)), nil
}

const siteColumns = `s.id, s.user_id, s.site_name, s.site_url, s.created_at`

// ScanSiteRow сканирует строку БД в entity.Site
func ScanSiteRow(row rowScanner) (*entity.Site, error) {
	var (
		id, userID, name, url string
		createdAt             time.Time
	)
	if err := row.Scan(&id, &userID, &name, &url, &createdAt); err != nil {
		return nil, err
	}
	return entity.ReconstructSite(id, userID, name, url, createdAt.UTC()), nil
}

// ScanPluginRow сканирует строку БД в entity.Plugin
func ScanPluginRow(row rowScanner) (*entity.Plugin, error) {
	var id, slug, name, latest string
	if err := row.Scan(&id, &slug, &name, &latest); err != nil {
		return nil, err
	}
	return entity.ReconstructPlugin(id, slug, name, latest), nil
}

// AlertDBModel представляет алерт в БД
type AlertDBModel struct {
	ID          string
	SiteID      string
	PluginSlug  string
	Severity    string
	AlertType   string
	Title       string
	Message     string
	TriggeredAt time.Time
	ReadAt      sql.NullTime
	ResolvedAt  sql.NullTime
}

const alertColumns = `a.id, a.site_id, a.plugin_slug, a.severity, a.alert_type,
	a.title, a.message, a.triggered_at, a.read_at, a.resolved_at`

// ToAlertDBModel конвертирует Domain Entity в DB Model
func ToAlertDBModel(a *entity.Alert) *AlertDBModel {
	return &AlertDBModel{
		ID:          a.ID(),
		SiteID:      a.SiteID(),
		PluginSlug:  a.PluginSlug(),
		Severity:    a.Severity().String(),
		AlertType:   a.Type().String(),
		Title:       a.Title(),
		Message:     a.Message(),
		TriggeredAt: a.TriggeredAt(),
		ReadAt:      timePtrNull(a.ReadAt()),
		ResolvedAt:  timePtrNull(a.ResolvedAt()),
	}
}

// ToAlertEntity конвертирует DB Model в Domain Entity
func ToAlertEntity(model *AlertDBModel) *entity.Alert {
	return entity.ReconstructAlert(
		model.ID,
		model.SiteID,
		model.PluginSlug,
		valueobject.Severity(model.Severity),
		valueobject.AlertType(model.AlertType),
		model.Title,
		model.Message,
		model.TriggeredAt.UTC(),
		nullTimePtr(model.ReadAt),
		nullTimePtr(model.ResolvedAt),
	)
}

// ScanAlertRow сканирует строку БД в AlertDBModel
func ScanAlertRow(row rowScanner) (*AlertDBModel, error) {
	var model AlertDBModel
	err := row.Scan(
		&model.ID,
		&model.SiteID,
		&model.PluginSlug,
		&model.Severity,
		&model.AlertType,
		&model.Title,
		&model.Message,
		&model.TriggeredAt,
		&model.ReadAt,
		&model.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &model, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func timePtrNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
