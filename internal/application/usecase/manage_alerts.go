package usecase

import (
	"context"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/repository"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
	"github.com/go-playground/validator/v10"
)

// Названия переходов для событий и метрик
const (
	TransitionRead    = "read"
	TransitionResolve = "resolve"
	TransitionReadAll = "read_all"
)

// AlertRaisedEvent событие создания алерта
type AlertRaisedEvent struct {
	UserID string        `json:"user_id,omitempty"`
	Alert  *dto.AlertDTO `json:"alert"`
}

// AlertTransitionedEvent событие изменения состояния алерта
type AlertTransitionedEvent struct {
	UserID     string    `json:"user_id"`
	AlertID    string    `json:"alert_id,omitempty"`
	Transition string    `json:"transition"`
	Updated    int64     `json:"updated"`
	At         time.Time `json:"at"`
}

// ManageAlertsUseCase управляет жизненным циклом алертов: создание, чтение, разрешение
type ManageAlertsUseCase struct {
	alerts    repository.AlertRepository
	publisher port.EventPublisher
	notifier  port.NotificationService
	telemetry port.Telemetry
	validator *validator.Validate
	logger    *logger.Logger
	now       func() time.Time
}

// NewManageAlertsUseCase создает новый use case.
// publisher, notifier и telemetry опциональны.
func NewManageAlertsUseCase(
	alerts repository.AlertRepository,
	publisher port.EventPublisher,
	notifier port.NotificationService,
	telemetry port.Telemetry,
	logger *logger.Logger,
) *ManageAlertsUseCase {
	return &ManageAlertsUseCase{
		alerts:    alerts,
		publisher: publisher,
		notifier:  notifier,
		telemetry: telemetry,
		validator: validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Raise создает алерт. userID используется только для push-уведомления владельца сайта
// и может быть пустым (фоновый советник).
func (uc *ManageAlertsUseCase) Raise(ctx context.Context, userID string, cmd dto.RaiseAlertCommand) (*dto.AlertDTO, error) {
	if err := uc.validator.Struct(cmd); err != nil {
		return nil, apperr.Invalid("invalid alert: %v", err)
	}

	alert, err := entity.NewAlert(
		cmd.SiteID,
		cmd.PluginSlug,
		valueobject.Severity(cmd.Severity),
		valueobject.AlertType(cmd.AlertType),
		cmd.Title,
		cmd.Message,
		uc.stamp(),
	)
	if err != nil {
		return nil, apperr.Invalid("invalid alert: %v", err)
	}

	if err := uc.alerts.Create(ctx, alert); err != nil {
		uc.logger.Error("Failed to create alert", err, "site_id", cmd.SiteID, "title", cmd.Title)
		return nil, err
	}

	alertDTO := dto.FromAlert(alert)
	uc.logger.Info("Alert raised",
		"alert_id", alert.ID(),
		"site_id", alert.SiteID(),
		"severity", alert.Severity().String(),
		"type", alert.Type().String(),
	)

	if uc.telemetry != nil {
		uc.telemetry.AlertRaised(alert.Severity().String())
	}
	if uc.notifier != nil && userID != "" {
		uc.notifier.NotifyAlert(userID, alertDTO)
	}
	uc.publish(ctx, port.SubjectAlertRaised, AlertRaisedEvent{UserID: userID, Alert: alertDTO})

	return alertDTO, nil
}

// RaiseUnlessOpen создает алерт, если у сайта нет неразрешенного алерта
// того же типа с тем же заголовком. raised=false означает, что алерт уже открыт.
func (uc *ManageAlertsUseCase) RaiseUnlessOpen(
	ctx context.Context,
	userID string,
	cmd dto.RaiseAlertCommand,
) (alert *dto.AlertDTO, raised bool, err error) {
	exists, err := uc.alerts.ExistsUnresolved(ctx, cmd.SiteID, valueobject.AlertType(cmd.AlertType), cmd.Title)
	if err != nil {
		return nil, false, err
	}
	if exists {
		uc.logger.Debug("Alert already open, skipping", "site_id", cmd.SiteID, "title", cmd.Title)
		return nil, false, nil
	}

	alert, err = uc.Raise(ctx, userID, cmd)
	if err != nil {
		return nil, false, err
	}
	return alert, true, nil
}

// MarkRead помечает алерт прочитанным.
// Повторный вызов успешен и возвращает Changed=false.
func (uc *ManageAlertsUseCase) MarkRead(ctx context.Context, scope valueobject.Scope, alertID string) (*dto.TransitionResultDTO, error) {
	return uc.transition(ctx, scope, alertID, TransitionRead, uc.alerts.MarkRead)
}

// Resolve помечает алерт разрешенным. read_at при этом не меняется.
func (uc *ManageAlertsUseCase) Resolve(ctx context.Context, scope valueobject.Scope, alertID string) (*dto.TransitionResultDTO, error) {
	return uc.transition(ctx, scope, alertID, TransitionResolve, uc.alerts.Resolve)
}

// MarkAllRead помечает прочитанными все непрочитанные алерты области одной операцией
func (uc *ManageAlertsUseCase) MarkAllRead(ctx context.Context, scope valueobject.Scope) (*dto.MarkAllReadResultDTO, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	now := uc.stamp()
	updated, err := uc.alerts.MarkAllRead(ctx, scope, now)
	if err != nil {
		uc.logger.Error("Failed to mark all alerts as read", err, "scope", scope.Key())
		return nil, err
	}

	if uc.telemetry != nil {
		uc.telemetry.AlertTransition(TransitionReadAll, updated > 0)
	}
	uc.publish(ctx, port.SubjectAlertTransitioned, AlertTransitionedEvent{
		UserID:     scope.UserID(),
		Transition: TransitionReadAll,
		Updated:    updated,
		At:         now,
	})

	return &dto.MarkAllReadResultDTO{Updated: updated, At: now}, nil
}

type transitionFunc func(ctx context.Context, scope valueobject.Scope, id string, now time.Time) (bool, error)

func (uc *ManageAlertsUseCase) transition(
	ctx context.Context,
	scope valueobject.Scope,
	alertID string,
	name string,
	apply transitionFunc,
) (*dto.TransitionResultDTO, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if alertID == "" {
		return nil, apperr.Invalid("alert id is required")
	}

	now := uc.stamp()
	changed, err := apply(ctx, scope, alertID, now)
	if err != nil {
		if !apperr.IsNotFound(err) {
			uc.logger.Error("Failed to apply alert transition", err, "alert_id", alertID, "transition", name)
		}
		return nil, err
	}

	if uc.telemetry != nil {
		uc.telemetry.AlertTransition(name, changed)
	}

	var updated int64
	if changed {
		updated = 1
		uc.publish(ctx, port.SubjectAlertTransitioned, AlertTransitionedEvent{
			UserID:     scope.UserID(),
			AlertID:    alertID,
			Transition: name,
			Updated:    updated,
			At:         now,
		})
	}

	uc.logger.Debug("Alert transition applied", "alert_id", alertID, "transition", name, "changed", changed)

	return &dto.TransitionResultDTO{
		AlertID:    alertID,
		Transition: name,
		Changed:    changed,
		At:         now,
	}, nil
}

// publish отправляет событие; ошибки брокера только логируются
func (uc *ManageAlertsUseCase) publish(ctx context.Context, subject string, event interface{}) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.PublishEvent(ctx, subject, event); err != nil {
		uc.logger.Warn("Failed to publish event", "subject", subject, "error", err.Error())
	}
}

func (uc *ManageAlertsUseCase) stamp() time.Time {
	return uc.now().UTC().Truncate(entity.TimestampPrecision)
}
