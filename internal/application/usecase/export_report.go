package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/repository"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
	"github.com/google/uuid"
)

// Лимиты содержимого отчетов
const (
	ReportMeasurementsLimit = 1000
	ReportAlertsLimit       = 50
)

// ErrReportStorageNotConfigured возвращается, если хранилище отчетов не подключено
var ErrReportStorageNotConfigured = errors.New("report storage is not configured")

var (
	reportOwnerRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	reportCSVHeader  = []string{"Site", "Plugin", "Performance Score", "Memory Usage (MB)", "Load Time (ms)", "Date"}
)

type ExportReportCommand struct {
	Scope  valueobject.Scope
	Format string
}

type ExportReportResult struct {
	ReportID    string
	Format      string
	S3Key       string
	URL         string
	ContentType string
	SizeBytes   int64
	RowCount    int
	CreatedAt   time.Time
}

type ExportReportConfig struct {
	KeyPrefix string
	// Retention срок хранения записи в индексе; 0 - бессрочно
	Retention time.Duration
}

// ReportExportedEvent событие о выгрузке отчета
type ReportExportedEvent struct {
	UserID   string    `json:"user_id"`
	ReportID string    `json:"report_id"`
	Format   string    `json:"format"`
	S3Key    string    `json:"s3_key"`
	Rows     int       `json:"rows"`
	At       time.Time `json:"at"`
}

// jsonReport содержимое JSON-отчета
type jsonReport struct {
	GeneratedAt  time.Time                `json:"generated_at"`
	UserID       string                   `json:"user_id"`
	SiteID       string                   `json:"site_id,omitempty"`
	Summary      *dto.DashboardSummaryDTO `json:"summary"`
	RecentAlerts []*dto.AlertDTO          `json:"recent_alerts"`
}

// ExportReportUseCase выгружает отчет по замерам области в хранилище отчетов
type ExportReportUseCase struct {
	measurements repository.MeasurementRepository
	alerts       repository.AlertRepository
	catalog      Catalog
	summary      *GetDashboardSummaryUseCase
	storage      port.ReportStorage
	metadata     port.ReportMetadataRepository
	publisher    port.EventPublisher
	config       ExportReportConfig
	logger       *logger.Logger
	now          func() time.Time
}

// NewExportReportUseCase создает новый use case. metadata и publisher опциональны.
func NewExportReportUseCase(
	measurements repository.MeasurementRepository,
	alerts repository.AlertRepository,
	catalog Catalog,
	summary *GetDashboardSummaryUseCase,
	storage port.ReportStorage,
	metadata port.ReportMetadataRepository,
	publisher port.EventPublisher,
	config ExportReportConfig,
	log *logger.Logger,
) *ExportReportUseCase {
	return &ExportReportUseCase{
		measurements: measurements,
		alerts:       alerts,
		catalog:      catalog,
		summary:      summary,
		storage:      storage,
		metadata:     metadata,
		publisher:    publisher,
		config:       config,
		logger:       log,
		now:          time.Now,
	}
}

func (uc *ExportReportUseCase) Execute(ctx context.Context, cmd ExportReportCommand) (*ExportReportResult, error) {
	if uc.storage == nil {
		return nil, ErrReportStorageNotConfigured
	}
	if err := cmd.Scope.Validate(); err != nil {
		return nil, err
	}
	if !reportOwnerRegex.MatchString(cmd.Scope.UserID()) {
		return nil, apperr.Invalid("invalid user id")
	}

	format, err := valueobject.ParseReportFormat(cmd.Format)
	if err != nil {
		return nil, apperr.Invalid("%v", err)
	}

	createdAt := uc.now().UTC()

	var (
		body []byte
		rows int
	)
	switch format {
	case valueobject.ReportCSV:
		body, rows, err = uc.buildCSV(ctx, cmd.Scope)
	default:
		body, rows, err = uc.buildJSON(ctx, cmd.Scope, createdAt)
	}
	if err != nil {
		return nil, err
	}

	reportID := uuid.New().String()
	key := uc.buildS3Key(cmd.Scope.UserID(), createdAt, reportID, format)

	url, err := uc.storage.PutObject(ctx, key, format.ContentType(), body)
	if err != nil {
		uc.logger.Error("Failed to upload report", err,
			"user_id", cmd.Scope.UserID(),
			"format", format,
		)
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	result := &ExportReportResult{
		ReportID:    reportID,
		Format:      string(format),
		S3Key:       key,
		URL:         url,
		ContentType: format.ContentType(),
		SizeBytes:   int64(len(body)),
		RowCount:    rows,
		CreatedAt:   createdAt,
	}

	uc.index(ctx, cmd.Scope.UserID(), result)

	if uc.publisher != nil {
		event := ReportExportedEvent{
			UserID:   cmd.Scope.UserID(),
			ReportID: reportID,
			Format:   result.Format,
			S3Key:    key,
			Rows:     rows,
			At:       createdAt,
		}
		if err := uc.publisher.PublishEvent(ctx, port.SubjectReportExported, event); err != nil {
			uc.logger.Warn("Failed to publish report event", "report_id", reportID, "error", err.Error())
		}
	}

	uc.logger.Info("Report exported", "report_id", reportID, "format", result.Format, "rows", rows, "bytes", result.SizeBytes)
	return result, nil
}

// index записывает метаданные в индекс; при ошибке отчет остается доступен через листинг хранилища
func (uc *ExportReportUseCase) index(ctx context.Context, userID string, result *ExportReportResult) {
	if uc.metadata == nil {
		return
	}

	record := port.ReportMetadata{
		ReportID:    result.ReportID,
		UserID:      userID,
		Format:      result.Format,
		S3Key:       result.S3Key,
		URL:         result.URL,
		ContentType: result.ContentType,
		SizeBytes:   result.SizeBytes,
		RowCount:    result.RowCount,
		CreatedAt:   result.CreatedAt,
	}
	if uc.config.Retention > 0 {
		record.ExpiresAt = result.CreatedAt.Add(uc.config.Retention)
	}

	if err := uc.metadata.Put(ctx, record); err != nil {
		uc.logger.Warn("Failed to index report metadata", "report_id", result.ReportID, "error", err.Error())
	}
}

func (uc *ExportReportUseCase) buildCSV(ctx context.Context, scope valueobject.Scope) ([]byte, int, error) {
	measurements, err := uc.measurements.FindLatestInScope(ctx, scope, ReportMeasurementsLimit)
	if err != nil {
		return nil, 0, err
	}

	names, err := uc.resolveNames(ctx, scope, measurements)
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(reportCSVHeader); err != nil {
		return nil, 0, fmt.Errorf("failed to write report: %w", err)
	}

	for _, m := range measurements {
		n := names[m.InstallationID()]
		s := m.Sample()
		record := []string{
			n.site,
			n.plugin,
			strconv.FormatFloat(m.Score(), 'f', 1, 64),
			strconv.FormatFloat(s.MemoryMB(), 'f', 2, 64),
			strconv.FormatFloat(s.LoadTimeMs(), 'f', 0, 64),
			m.MeasuredAt().UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, 0, fmt.Errorf("failed to write report: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, fmt.Errorf("failed to write report: %w", err)
	}
	return buf.Bytes(), len(measurements), nil
}

func (uc *ExportReportUseCase) buildJSON(ctx context.Context, scope valueobject.Scope, at time.Time) ([]byte, int, error) {
	summary, err := uc.summary.Execute(ctx, scope)
	if err != nil {
		return nil, 0, err
	}

	alerts, err := uc.alerts.FindRecent(ctx, scope, ReportAlertsLimit)
	if err != nil {
		return nil, 0, err
	}

	report := jsonReport{
		GeneratedAt:  at,
		UserID:       scope.UserID(),
		SiteID:       scope.SiteID(),
		Summary:      summary,
		RecentAlerts: dto.ToAlertDTOs(alerts),
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode report: %w", err)
	}
	return body, len(summary.Sites) + len(report.RecentAlerts), nil
}

type reportNames struct {
	site   string
	plugin string
}

// resolveNames подставляет имена сайта и плагина для каждой установки из выборки
func (uc *ExportReportUseCase) resolveNames(
	ctx context.Context,
	scope valueobject.Scope,
	measurements []*entity.Measurement,
) (map[string]reportNames, error) {
	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for _, m := range measurements {
		if _, ok := seen[m.InstallationID()]; ok {
			continue
		}
		seen[m.InstallationID()] = struct{}{}
		ids = append(ids, m.InstallationID())
	}

	names := make(map[string]reportNames, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	installs, err := uc.catalog.Installations.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	sites, err := uc.catalog.Sites.FindInScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	siteNames := make(map[string]string, len(sites))
	for _, s := range sites {
		siteNames[s.ID()] = s.Name()
	}

	pluginIDs := make([]string, 0, len(installs))
	for _, inst := range installs {
		pluginIDs = append(pluginIDs, inst.PluginID())
	}
	plugins, err := uc.catalog.Plugins.FindByIDs(ctx, pluginIDs)
	if err != nil {
		return nil, err
	}

	for id, inst := range installs {
		n := reportNames{site: siteNames[inst.SiteID()], plugin: inst.PluginID()}
		if n.site == "" {
			n.site = inst.SiteID()
		}
		if p, ok := plugins[inst.PluginID()]; ok {
			n.plugin = p.DisplayName()
		}
		names[id] = n
	}
	return names, nil
}

func (uc *ExportReportUseCase) buildS3Key(userID string, createdAt time.Time, reportID string, format valueobject.ReportFormat) string {
	prefix := reportKeyPrefix(uc.config.KeyPrefix)
	timestamp := createdAt.Format(reportTimestampLayout)
	datePrefix := createdAt.Format("2006/01/02")

	return fmt.Sprintf("%s/%s/%s/%s_%s.%s", prefix, userID, datePrefix, timestamp, reportID, format.Extension())
}

const reportTimestampLayout = "20060102T150405Z"

func reportKeyPrefix(configured string) string {
	prefix := strings.Trim(configured, "/")
	if prefix == "" {
		prefix = "reports"
	}
	return prefix
}
