package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/repository"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/service"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
	"github.com/go-playground/validator/v10"
)

// Значения по умолчанию для приема замеров
const (
	DefaultMaxBatchSize        = 500
	DefaultScoreAlertThreshold = 1.5
)

// IngestConfig настройки приема замеров
type IngestConfig struct {
	MaxBatchSize int
	// ScoreAlertThreshold балл ниже порога поднимает алерт; 0 отключает алерты
	ScoreAlertThreshold float64
}

// MeasurementsIngestedEvent событие о принятом пакете замеров
type MeasurementsIngestedEvent struct {
	UserID     string                `json:"user_id"`
	Accepted   int                   `json:"accepted"`
	Rejected   int                   `json:"rejected"`
	Sites      []string              `json:"sites"`
	Items      []*dto.MeasurementDTO `json:"items"`
	IngestedAt time.Time             `json:"ingested_at"`
}

// IngestMeasurementsUseCase координирует валидацию, оценку, сохранение и рассылку замеров
type IngestMeasurementsUseCase struct {
	measurements repository.MeasurementRepository
	catalog      Catalog
	alerts       *ManageAlertsUseCase
	metrics      port.MetricsPublisher
	publisher    port.EventPublisher
	notifier     port.NotificationService
	cache        port.Cache
	telemetry    port.Telemetry
	scorer       *service.PerformanceScorer
	checker      *service.MeasurementValidator
	validator    *validator.Validate
	config       IngestConfig
	logger       *logger.Logger
	now          func() time.Time
}

// IngestDependencies опциональные адаптеры; nil отключает соответствующий шаг
type IngestDependencies struct {
	Alerts    *ManageAlertsUseCase
	Metrics   port.MetricsPublisher
	Publisher port.EventPublisher
	Notifier  port.NotificationService
	Cache     port.Cache
	Telemetry port.Telemetry
}

// NewIngestMeasurementsUseCase создает новый use case
func NewIngestMeasurementsUseCase(
	measurements repository.MeasurementRepository,
	catalog Catalog,
	deps IngestDependencies,
	scorer *service.PerformanceScorer,
	checker *service.MeasurementValidator,
	config IngestConfig,
	logger *logger.Logger,
) *IngestMeasurementsUseCase {
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultMaxBatchSize
	}
	return &IngestMeasurementsUseCase{
		measurements: measurements,
		catalog:      catalog,
		alerts:       deps.Alerts,
		metrics:      deps.Metrics,
		publisher:    deps.Publisher,
		notifier:     deps.Notifier,
		cache:        deps.Cache,
		telemetry:    deps.Telemetry,
		scorer:       scorer,
		checker:      checker,
		validator:    newCommandValidator(),
		config:       config,
		logger:       logger,
		now:          time.Now,
	}
}

type acceptedMeasurement struct {
	measurement  *entity.Measurement
	installation *entity.Installation
}

// Execute принимает пакет замеров в области пользователя.
// Невалидные замеры отклоняются поштучно, остальные сохраняются одной транзакцией.
func (uc *IngestMeasurementsUseCase) Execute(
	ctx context.Context,
	scope valueobject.Scope,
	cmd dto.IngestBatchCommand,
) (*dto.IngestResultDTO, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if len(cmd.Measurements) == 0 {
		return nil, apperr.Invalid("measurements are required")
	}
	if len(cmd.Measurements) > uc.config.MaxBatchSize {
		return nil, apperr.Invalid("batch of %d exceeds limit %d", len(cmd.Measurements), uc.config.MaxBatchSize)
	}

	now := uc.now().UTC()
	result := &dto.IngestResultDTO{
		Rejected:   []dto.RejectedMeasurementDTO{},
		IngestedAt: now,
	}

	installations, err := uc.ownedInstallations(ctx, scope, cmd.Measurements)
	if err != nil {
		return nil, err
	}

	// 1. Валидируем и оцениваем каждый замер
	accepted := make([]acceptedMeasurement, 0, len(cmd.Measurements))
	for i, item := range cmd.Measurements {
		m, inst, err := uc.prepare(item, installations, now)
		if err != nil {
			result.Rejected = append(result.Rejected, dto.RejectedMeasurementDTO{
				Index:          i,
				InstallationID: item.InstallationID,
				Reason:         err.Error(),
			})
			continue
		}
		accepted = append(accepted, acceptedMeasurement{measurement: m, installation: inst})
	}

	if uc.telemetry != nil && len(result.Rejected) > 0 {
		uc.telemetry.MeasurementsRejected(len(result.Rejected))
	}

	if len(accepted) == 0 {
		uc.logger.Warn("No valid measurements to save", "scope", scope.Key(), "rejected", len(result.Rejected))
		return result, nil
	}

	// 2. Сохраняем пакет
	batch := make([]*entity.Measurement, len(accepted))
	for i, a := range accepted {
		batch[i] = a.measurement
	}
	if err := uc.measurements.SaveBatch(ctx, batch); err != nil {
		uc.logger.Error("Failed to save measurements batch", err, "count", len(batch))
		return nil, err
	}
	result.Accepted = len(batch)

	if uc.telemetry != nil {
		uc.telemetry.MeasurementsIngested(result.Accepted)
	}
	uc.logger.Debug("Measurements saved", "count", result.Accepted, "rejected", len(result.Rejected))

	// 3. Побочные эффекты не влияют на результат приема
	plugins := uc.pluginsFor(ctx, accepted)
	uc.invalidateCache(ctx, scope.UserID())
	uc.publishMetrics(ctx, accepted, plugins)
	result.AlertsRaised = uc.raiseAlerts(ctx, scope.UserID(), accepted, plugins)
	uc.publishIngested(ctx, scope.UserID(), batch, accepted, result)

	if uc.notifier != nil {
		uc.notifier.NotifyIngest(scope.UserID(), result)
	}

	return result, nil
}

// ownedInstallations загружает установки из пакета, принадлежащие сайтам пользователя
func (uc *IngestMeasurementsUseCase) ownedInstallations(
	ctx context.Context,
	scope valueobject.Scope,
	items []dto.IngestMeasurementCommand,
) (map[string]*entity.Installation, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.InstallationID]; ok || item.InstallationID == "" {
			continue
		}
		seen[item.InstallationID] = struct{}{}
		ids = append(ids, item.InstallationID)
	}

	if len(ids) == 0 {
		return map[string]*entity.Installation{}, nil
	}

	sites, err := uc.catalog.Sites.FindInScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]struct{}, len(sites))
	for _, s := range sites {
		owned[s.ID()] = struct{}{}
	}

	found, err := uc.catalog.Installations.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	installations := make(map[string]*entity.Installation, len(found))
	for id, inst := range found {
		if _, ok := owned[inst.SiteID()]; ok {
			installations[id] = inst
		}
	}
	return installations, nil
}

// newCommandValidator валидатор команд с тегом whole: load_time_ms хранится
// целым числом миллисекунд, и оценка считается по тому же значению
func newCommandValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("whole", isWholeNumber)
	return v
}

func isWholeNumber(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		x := f.Float()
		return x == math.Trunc(x)
	}
	return true
}

func (uc *IngestMeasurementsUseCase) prepare(
	item dto.IngestMeasurementCommand,
	installations map[string]*entity.Installation,
	now time.Time,
) (*entity.Measurement, *entity.Installation, error) {
	if err := uc.validator.Struct(item); err != nil {
		return nil, nil, describeValidation(err)
	}

	sample := valueobject.NewSample(item.LoadTimeMs, item.MemoryMB, item.DBQueries, item.ErrorCount)
	m, err := entity.NewMeasurement(item.InstallationID, sample, uc.scorer.Score(sample), item.MeasuredAt)
	if err != nil {
		return nil, nil, err
	}

	inst := installations[item.InstallationID]
	if err := uc.checker.Validate(m, inst, now); err != nil {
		return nil, nil, err
	}
	return m, inst, nil
}

func (uc *IngestMeasurementsUseCase) pluginsFor(ctx context.Context, accepted []acceptedMeasurement) map[string]*entity.Plugin {
	ids := make([]string, 0, len(accepted))
	seen := make(map[string]struct{}, len(accepted))
	for _, a := range accepted {
		id := a.installation.PluginID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	plugins, err := uc.catalog.Plugins.FindByIDs(ctx, ids)
	if err != nil {
		uc.logger.Warn("Failed to load plugins for ingested measurements", "error", err.Error())
		return map[string]*entity.Plugin{}
	}
	return plugins
}

func (uc *IngestMeasurementsUseCase) invalidateCache(ctx context.Context, userID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.DeletePattern(ctx, userCachePattern(userID)); err != nil {
		uc.logger.Warn("Failed to invalidate cache", "user_id", userID, "error", err.Error())
	}
}

func (uc *IngestMeasurementsUseCase) publishMetrics(
	ctx context.Context,
	accepted []acceptedMeasurement,
	plugins map[string]*entity.Plugin,
) {
	if uc.metrics == nil {
		return
	}

	points := make([]port.MeasurementPoint, 0, len(accepted))
	for _, a := range accepted {
		s := a.measurement.Sample()
		points = append(points, port.MeasurementPoint{
			SiteID:     a.installation.SiteID(),
			PluginSlug: pluginSlug(plugins, a.installation.PluginID()),
			LoadTimeMs: s.LoadTimeMs(),
			MemoryMB:   s.MemoryMB(),
			DBQueries:  s.DBQueries(),
			ErrorCount: s.ErrorCount(),
			Score:      a.measurement.Score(),
			MeasuredAt: a.measurement.MeasuredAt(),
		})
	}

	if err := uc.metrics.PublishBatch(ctx, points); err != nil {
		uc.logger.Warn("Failed to publish measurement metrics", "count", len(points), "error", err.Error())
	}
}

// raiseAlerts поднимает по одному алерту на установку с худшим баллом ниже порога
func (uc *IngestMeasurementsUseCase) raiseAlerts(
	ctx context.Context,
	userID string,
	accepted []acceptedMeasurement,
	plugins map[string]*entity.Plugin,
) int {
	if uc.alerts == nil || uc.config.ScoreAlertThreshold <= 0 {
		return 0
	}

	worst := make(map[string]acceptedMeasurement)
	order := make([]string, 0)
	for _, a := range accepted {
		if a.measurement.Score() >= uc.config.ScoreAlertThreshold {
			continue
		}
		id := a.installation.ID()
		current, ok := worst[id]
		if !ok {
			order = append(order, id)
		}
		if !ok || a.measurement.Score() < current.measurement.Score() {
			worst[id] = a
		}
	}

	raised := 0
	for _, id := range order {
		a := worst[id]
		cmd := lowScoreAlert(a, plugins[a.installation.PluginID()])
		_, ok, err := uc.alerts.RaiseUnlessOpen(ctx, userID, cmd)
		if err != nil {
			uc.logger.Warn("Failed to raise low score alert", "installation_id", id, "error", err.Error())
			continue
		}
		if ok {
			raised++
		}
	}
	return raised
}

func (uc *IngestMeasurementsUseCase) publishIngested(
	ctx context.Context,
	userID string,
	batch []*entity.Measurement,
	accepted []acceptedMeasurement,
	result *dto.IngestResultDTO,
) {
	if uc.publisher == nil {
		return
	}

	sites := make([]string, 0)
	seen := make(map[string]struct{})
	for _, a := range accepted {
		if _, ok := seen[a.installation.SiteID()]; ok {
			continue
		}
		seen[a.installation.SiteID()] = struct{}{}
		sites = append(sites, a.installation.SiteID())
	}

	items := make([]*dto.MeasurementDTO, len(batch))
	for i, m := range batch {
		items[i] = dto.FromMeasurement(m)
	}

	event := MeasurementsIngestedEvent{
		UserID:     userID,
		Accepted:   result.Accepted,
		Rejected:   len(result.Rejected),
		Sites:      sites,
		Items:      items,
		IngestedAt: result.IngestedAt,
	}
	if err := uc.publisher.PublishEvent(ctx, port.SubjectMeasurementsIngested, event); err != nil {
		uc.logger.Warn("Failed to publish ingest event", "error", err.Error())
	}
}

func lowScoreAlert(a acceptedMeasurement, plugin *entity.Plugin) dto.RaiseAlertCommand {
	severity := valueobject.SeverityHigh
	if a.measurement.Score() == 0 {
		severity = valueobject.SeverityCritical
	}

	name := a.installation.PluginID()
	slug := ""
	if plugin != nil {
		name = plugin.DisplayName()
		slug = plugin.Slug()
	}

	s := a.measurement.Sample()
	return dto.RaiseAlertCommand{
		SiteID:     a.installation.SiteID(),
		PluginSlug: slug,
		Severity:   string(severity),
		AlertType:  string(valueobject.AlertTypePerformance),
		Title:      fmt.Sprintf("Low performance score: %s", name),
		Message: fmt.Sprintf(
			"Score %.1f/4.0 (load %.0f ms, memory %.1f MB, %d queries, %d errors), measured at %s",
			a.measurement.Score(), s.LoadTimeMs(), s.MemoryMB(), s.DBQueries(), s.ErrorCount(),
			a.measurement.MeasuredAt().UTC().Format(time.RFC3339),
		),
	}
}

func pluginSlug(plugins map[string]*entity.Plugin, pluginID string) string {
	if p, ok := plugins[pluginID]; ok && p.Slug() != "" {
		return p.Slug()
	}
	return pluginID
}

// describeValidation превращает ошибки validator в короткое сообщение
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Invalid("field %s failed on %s", fe.Field(), fe.Tag())
	}
	return apperr.Invalid("%v", err)
}
