package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/google/uuid"
)

// TimestampPrecision точность хранения временных меток алертов.
// Совпадает с точностью TIMESTAMPTZ в Postgres, поэтому курсор,
// отданный клиенту, равен значению в хранилище.
const TimestampPrecision = time.Microsecond

// Alert представляет алерт по сайту (Aggregate Root)
// Состояния: непрочитан -> прочитан; resolved ортогонален чтению.
// Установленные метки времени никогда не сбрасываются.
type Alert struct {
	id          string
	siteID      string
	pluginSlug  string
	severity    valueobject.Severity
	alertType   valueobject.AlertType
	title       string
	message     string
	triggeredAt time.Time
	readAt      *time.Time
	resolvedAt  *time.Time
}

// NewAlert создает новый непрочитанный и неразрешенный алерт (Factory Method)
func NewAlert(
	siteID string,
	pluginSlug string,
	severity valueobject.Severity,
	alertType valueobject.AlertType,
	title, message string,
	triggeredAt time.Time,
) (*Alert, error) {
	if strings.TrimSpace(siteID) == "" {
		return nil, errors.New("site_id is required")
	}
	if err := severity.Validate(); err != nil {
		return nil, err
	}
	if err := alertType.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, errors.New("title is required")
	}
	if triggeredAt.IsZero() {
		triggeredAt = time.Now()
	}

	return &Alert{
		id:          uuid.New().String(),
		siteID:      siteID,
		pluginSlug:  pluginSlug,
		severity:    severity,
		alertType:   alertType,
		title:       title,
		message:     message,
		triggeredAt: triggeredAt.UTC().Truncate(TimestampPrecision),
	}, nil
}

// AssignTriggeredAt заменяет метку создания временем, назначенным хранилищем при вставке
func (a *Alert) AssignTriggeredAt(at time.Time) {
	if at.IsZero() {
		return
	}
	a.triggeredAt = at.UTC().Truncate(TimestampPrecision)
}

// ReconstructAlert восстанавливает алерт из хранилища (для Repository)
func ReconstructAlert(
	id, siteID, pluginSlug string,
	severity valueobject.Severity,
	alertType valueobject.AlertType,
	title, message string,
	triggeredAt time.Time,
	readAt, resolvedAt *time.Time,
) *Alert {
	return &Alert{
		id:          id,
		siteID:      siteID,
		pluginSlug:  pluginSlug,
		severity:    severity,
		alertType:   alertType,
		title:       title,
		message:     message,
		triggeredAt: triggeredAt,
		readAt:      readAt,
		resolvedAt:  resolvedAt,
	}
}

func (a *Alert) ID() string                     { return a.id }
func (a *Alert) SiteID() string                 { return a.siteID }
func (a *Alert) PluginSlug() string             { return a.pluginSlug }
func (a *Alert) Severity() valueobject.Severity { return a.severity }
func (a *Alert) Type() valueobject.AlertType    { return a.alertType }
func (a *Alert) Title() string                  { return a.title }
func (a *Alert) Message() string                { return a.message }
func (a *Alert) TriggeredAt() time.Time         { return a.triggeredAt }
func (a *Alert) ReadAt() *time.Time             { return copyTime(a.readAt) }
func (a *Alert) ResolvedAt() *time.Time         { return copyTime(a.resolvedAt) }

// IsRead сообщает, прочитан ли алерт
func (a *Alert) IsRead() bool {
	return a.readAt != nil
}

// IsResolved сообщает, разрешен ли алерт
func (a *Alert) IsResolved() bool {
	return a.resolvedAt != nil
}

// Domain Methods (переходы состояний)

// MarkRead устанавливает read_at, если он еще не установлен.
// Возвращает true, если алерт изменился.
func (a *Alert) MarkRead(now time.Time) bool {
	if a.readAt != nil {
		return false
	}
	at := now.UTC().Truncate(TimestampPrecision)
	a.readAt = &at
	return true
}

// Resolve устанавливает resolved_at, если он еще не установлен. read_at не трогает.
// Возвращает true, если алерт изменился.
func (a *Alert) Resolve(now time.Time) bool {
	if a.resolvedAt != nil {
		return false
	}
	at := now.UTC().Truncate(TimestampPrecision)
	a.resolvedAt = &at
	return true
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
