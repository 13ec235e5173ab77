package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	_ "github.com/lib/pq"
)

// PostgresMeasurementRepository реализует repository.MeasurementRepository для PostgreSQL
type PostgresMeasurementRepository struct {
	db *sql.DB
}

// NewPostgresMeasurementRepository создает новый PostgreSQL repository
func NewPostgresMeasurementRepository(db *sql.DB) *PostgresMeasurementRepository {
	return &PostgresMeasurementRepository{
		db: db,
	}
}

// SaveBatch сохраняет несколько замеров одной транзакцией
func (r *PostgresMeasurementRepository) SaveBatch(ctx context.Context, measurements []*entity.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Unavailable("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO performance_metrics (
			id, installation_id, page_load_time_ms, memory_usage_mb,
			database_queries, error_count, performance_score, metric_date, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return apperr.Unavailable("prepare statement", err)
	}
	defer stmt.Close()

	for _, m := range measurements {
		model := ToMeasurementDBModel(m)
		_, err = stmt.ExecContext(ctx,
			model.ID,
			model.InstallationID,
			model.LoadTimeMs,
			model.MemoryMB,
			model.DBQueries,
			model.ErrorCount,
			model.Score,
			model.MetricDate,
			model.CreatedAt,
		)
		if err != nil {
			return apperr.Unavailable("insert measurement", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Unavailable("commit transaction", err)
	}

	return nil
}

// FindInScope находит замеры установок области начиная с since
func (r *PostgresMeasurementRepository) FindInScope(
	ctx context.Context,
	scope valueobject.Scope,
	since time.Time,
) ([]*entity.Measurement, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM performance_metrics pm
		JOIN plugin_installations pi ON pi.id = pm.installation_id
		JOIN wordpress_sites s ON s.id = pi.site_id
		WHERE %s AND pm.metric_date >= $3
		ORDER BY pm.metric_date ASC
	`, measurementColumns, scopeFilter)

	rows, err := r.db.QueryContext(ctx, query, scope.UserID(), scope.SiteID(), since)
	if err != nil {
		return nil, apperr.Unavailable("query measurements", err)
	}
	defer rows.Close()

	return r.scanMeasurements(rows)
}

// FindByInstallation находит все замеры одной установки
func (r *PostgresMeasurementRepository) FindByInstallation(
	ctx context.Context,
	installationID string,
) ([]*entity.Measurement, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM performance_metrics pm
		WHERE pm.installation_id = $1
		ORDER BY pm.metric_date ASC
	`, measurementColumns)

	rows, err := r.db.QueryContext(ctx, query, installationID)
	if err != nil {
		return nil, apperr.Unavailable("query installation measurements", err)
	}
	defer rows.Close()

	return r.scanMeasurements(rows)
}

// FindLatestInScope находит последние замеры области
func (r *PostgresMeasurementRepository) FindLatestInScope(
	ctx context.Context,
	scope valueobject.Scope,
	limit int,
) ([]*entity.Measurement, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM performance_metrics pm
		JOIN plugin_installations pi ON pi.id = pm.installation_id
		JOIN wordpress_sites s ON s.id = pi.site_id
		WHERE %s
		ORDER BY pm.metric_date DESC
		LIMIT $3
	`, measurementColumns, scopeFilter)

	rows, err := r.db.QueryContext(ctx, query, scope.UserID(), scope.SiteID(), limit)
	if err != nil {
		return nil, apperr.Unavailable("query latest measurements", err)
	}
	defer rows.Close()

	return r.scanMeasurements(rows)
}

// scanMeasurements сканирует несколько строк в слайс замеров
func (r *PostgresMeasurementRepository) scanMeasurements(rows *sql.Rows) ([]*entity.Measurement, error) {
	var measurements []*entity.Measurement

	for rows.Next() {
		model, err := ScanMeasurementRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan measurement row: %w", err)
		}
		measurements = append(measurements, ToMeasurementEntity(model))
	}

	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("iterate measurement rows", err)
	}

	return measurements, nil
}
