package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

// PostgresAlertRepository реализует repository.AlertRepository для PostgreSQL
type PostgresAlertRepository struct {
	db *sql.DB
}

// NewPostgresAlertRepository создает новый PostgreSQL repository алертов
func NewPostgresAlertRepository(db *sql.DB) *PostgresAlertRepository {
	return &PostgresAlertRepository{db: db}
}

// Create сохраняет новый алерт.
// triggered_at назначает сама база (clock_timestamp() в момент вставки),
// значение возвращается в entity, чтобы курсор ленты совпадал с хранилищем.
func (r *PostgresAlertRepository) Create(ctx context.Context, alert *entity.Alert) error {
	model := ToAlertDBModel(alert)

	var triggeredAt time.Time
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO alerts (id, site_id, plugin_slug, severity, alert_type, title, message, read_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING triggered_at
	`,
		model.ID,
		model.SiteID,
		model.PluginSlug,
		model.Severity,
		model.AlertType,
		model.Title,
		model.Message,
		model.ReadAt,
		model.ResolvedAt,
	).Scan(&triggeredAt)
	if err != nil {
		return apperr.Unavailable("insert alert", err)
	}

	alert.AssignTriggeredAt(triggeredAt)
	return nil
}

// FindByID находит алерт в области
func (r *PostgresAlertRepository) FindByID(ctx context.Context, scope valueobject.Scope, id string) (*entity.Alert, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts a
		JOIN wordpress_sites s ON s.id = a.site_id
		WHERE %s AND a.id = $3
	`, alertColumns, scopeFilter)

	model, err := ScanAlertRow(r.db.QueryRowContext(ctx, query, scope.UserID(), scope.SiteID(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("alert " + id)
		}
		return nil, apperr.Unavailable("query alert", err)
	}
	return ToAlertEntity(model), nil
}

// MarkRead устанавливает read_at одной условной операцией
func (r *PostgresAlertRepository) MarkRead(
	ctx context.Context,
	scope valueobject.Scope,
	id string,
	now time.Time,
) (bool, error) {
	return r.transition(ctx, scope, id, "read_at", now)
}

// Resolve устанавливает resolved_at одной условной операцией
func (r *PostgresAlertRepository) Resolve(
	ctx context.Context,
	scope valueobject.Scope,
	id string,
	now time.Time,
) (bool, error) {
	return r.transition(ctx, scope, id, "resolved_at", now)
}

// transition выставляет колонку, только если она пуста.
// Если строка не обновилась, отличаем «уже в этом состоянии» от «не найден».
func (r *PostgresAlertRepository) transition(
	ctx context.Context,
	scope valueobject.Scope,
	id string,
	column string,
	now time.Time,
) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE alerts a
		SET %[1]s = $4
		FROM wordpress_sites s
		WHERE s.id = a.site_id AND %[2]s AND a.id = $3 AND a.%[1]s IS NULL
	`, column, scopeFilter)

	res, err := r.db.ExecContext(ctx, query, scope.UserID(), scope.SiteID(), id, now.UTC().Truncate(entity.TimestampPrecision))
	if err != nil {
		return false, apperr.Unavailable("update alert "+column, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Unavailable("read affected rows", err)
	}
	if affected > 0 {
		return true, nil
	}

	if _, err := r.FindByID(ctx, scope, id); err != nil {
		return false, err
	}
	return false, nil
}

// MarkAllRead помечает прочитанными все непрочитанные алерты области одним UPDATE
func (r *PostgresAlertRepository) MarkAllRead(ctx context.Context, scope valueobject.Scope, now time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE alerts a
		SET read_at = $3
		FROM wordpress_sites s
		WHERE s.id = a.site_id AND %s AND a.read_at IS NULL
	`, scopeFilter)

	res, err := r.db.ExecContext(ctx, query, scope.UserID(), scope.SiteID(), now.UTC().Truncate(entity.TimestampPrecision))
	if err != nil {
		return 0, apperr.Unavailable("mark all alerts read", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Unavailable("read affected rows", err)
	}
	return affected, nil
}

// FindTriggeredAfter возвращает алерты с triggered_at > after, новые первыми
func (r *PostgresAlertRepository) FindTriggeredAfter(
	ctx context.Context,
	scope valueobject.Scope,
	after time.Time,
) ([]*entity.Alert, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts a
		JOIN wordpress_sites s ON s.id = a.site_id
		WHERE %s AND a.triggered_at > $3
		ORDER BY a.triggered_at DESC, a.id DESC
	`, alertColumns, scopeFilter)

	rows, err := r.db.QueryContext(ctx, query, scope.UserID(), scope.SiteID(), after)
	if err != nil {
		return nil, apperr.Unavailable("query alerts after cursor", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// FindRecent возвращает последние алерты области
func (r *PostgresAlertRepository) FindRecent(
	ctx context.Context,
	scope valueobject.Scope,
	limit int,
) ([]*entity.Alert, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts a
		JOIN wordpress_sites s ON s.id = a.site_id
		WHERE %s
		ORDER BY a.triggered_at DESC, a.id DESC
		LIMIT $3
	`, alertColumns, scopeFilter)

	rows, err := r.db.QueryContext(ctx, query, scope.UserID(), scope.SiteID(), limit)
	if err != nil {
		return nil, apperr.Unavailable("query recent alerts", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// CountUnresolved считает неразрешенные алерты области
func (r *PostgresAlertRepository) CountUnresolved(
	ctx context.Context,
	scope valueobject.Scope,
	severity valueobject.Severity,
) (int64, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM alerts a
		JOIN wordpress_sites s ON s.id = a.site_id
		WHERE %s AND a.resolved_at IS NULL AND ($3::text = '' OR a.severity = $3::text)
	`, scopeFilter)

	var count int64
	if err := r.db.QueryRowContext(ctx, query, scope.UserID(), scope.SiteID(), string(severity)).Scan(&count); err != nil {
		return 0, apperr.Unavailable("count alerts", err)
	}
	return count, nil
}

// ExistsUnresolved проверяет наличие такого же неразрешенного алерта
func (r *PostgresAlertRepository) ExistsUnresolved(
	ctx context.Context,
	siteID string,
	alertType valueobject.AlertType,
	title string,
) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE site_id = $1 AND alert_type = $2 AND title = $3 AND resolved_at IS NULL
		)
	`, siteID, alertType.String(), title).Scan(&exists)
	if err != nil {
		return false, apperr.Unavailable("check alert existence", err)
	}
	return exists, nil
}

func scanAlerts(rows *sql.Rows) ([]*entity.Alert, error) {
	var alerts []*entity.Alert
	for rows.Next() {
		model, err := ScanAlertRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alerts = append(alerts, ToAlertEntity(model))
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("iterate alert rows", err)
	}
	return alerts, nil
}
