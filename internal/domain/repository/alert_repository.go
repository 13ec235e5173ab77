package repository

import (
	"context"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

// AlertRepository хранилище алертов (Port)
// Переходы состояний выполняются одной условной операцией на строку,
// поэтому параллельные вызовы не теряют обновлений.
type AlertRepository interface {
	// Create сохраняет новый алерт
	Create(ctx context.Context, alert *entity.Alert) error

	// FindByID находит алерт в области. Возвращает apperr.ErrNotFound, если его нет.
	FindByID(ctx context.Context, scope valueobject.Scope, id string) (*entity.Alert, error)

	// MarkRead устанавливает read_at, если он пуст.
	// changed=false означает, что алерт уже был прочитан.
	MarkRead(ctx context.Context, scope valueobject.Scope, id string, now time.Time) (changed bool, err error)

	// Resolve устанавливает resolved_at, если он пуст
	Resolve(ctx context.Context, scope valueobject.Scope, id string, now time.Time) (changed bool, err error)

	// MarkAllRead атомарно помечает прочитанными все непрочитанные алерты области
	MarkAllRead(ctx context.Context, scope valueobject.Scope, now time.Time) (int64, error)

	// FindTriggeredAfter возвращает алерты с triggered_at > after, новые первыми
	FindTriggeredAfter(ctx context.Context, scope valueobject.Scope, after time.Time) ([]*entity.Alert, error)

	// FindRecent возвращает последние алерты области
	FindRecent(ctx context.Context, scope valueobject.Scope, limit int) ([]*entity.Alert, error)

	// CountUnresolved считает неразрешенные алерты; пустой severity означает все уровни
	CountUnresolved(ctx context.Context, scope valueobject.Scope, severity valueobject.Severity) (int64, error)

	// ExistsUnresolved проверяет, есть ли неразрешенный алерт с тем же сайтом, типом и заголовком
	ExistsUnresolved(ctx context.Context, siteID string, alertType valueobject.AlertType, title string) (bool, error)
}
