package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema создает таблицы, если их еще нет. Идемпотентна.
const schema = `
CREATE TABLE IF NOT EXISTS wordpress_sites (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    site_name   TEXT NOT NULL,
    site_url    TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_wordpress_sites_user ON wordpress_sites (user_id);

CREATE TABLE IF NOT EXISTS plugins (
    id              TEXT PRIMARY KEY,
    slug            TEXT NOT NULL UNIQUE,
    name            TEXT NOT NULL DEFAULT '',
    latest_version  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS plugin_installations (
    id                  TEXT PRIMARY KEY,
    site_id             TEXT NOT NULL REFERENCES wordpress_sites(id),
    plugin_id           TEXT NOT NULL REFERENCES plugins(id),
    installed_version   TEXT NOT NULL DEFAULT '',
    is_active           BOOLEAN NOT NULL DEFAULT TRUE,
    installation_date   TIMESTAMPTZ NOT NULL,
    deactivation_date   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_plugin_installations_pair ON plugin_installations (site_id, plugin_id);

-- Замеры только добавляются
CREATE TABLE IF NOT EXISTS performance_metrics (
    id                  TEXT PRIMARY KEY,
    installation_id     TEXT NOT NULL REFERENCES plugin_installations(id),
    page_load_time_ms   INTEGER NOT NULL CHECK (page_load_time_ms >= 0),
    memory_usage_mb     DOUBLE PRECISION NOT NULL CHECK (memory_usage_mb >= 0),
    database_queries    INTEGER NOT NULL CHECK (database_queries >= 0),
    error_count         INTEGER NOT NULL CHECK (error_count >= 0),
    performance_score   DOUBLE PRECISION NOT NULL CHECK (performance_score BETWEEN 0 AND 4),
    metric_date         TIMESTAMPTZ NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_performance_metrics_installation_date ON performance_metrics (installation_id, metric_date);

CREATE TABLE IF NOT EXISTS alerts (
    id              TEXT PRIMARY KEY,
    site_id         TEXT NOT NULL REFERENCES wordpress_sites(id),
    plugin_slug     TEXT NOT NULL DEFAULT '',
    severity        TEXT NOT NULL,
    alert_type      TEXT NOT NULL,
    title           TEXT NOT NULL,
    message         TEXT NOT NULL DEFAULT '',
    triggered_at    TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
    read_at         TIMESTAMPTZ,
    resolved_at     TIMESTAMPTZ
);
ALTER TABLE alerts ALTER COLUMN triggered_at SET DEFAULT clock_timestamp();
CREATE INDEX IF NOT EXISTS idx_alerts_site_triggered ON alerts (site_id, triggered_at DESC);
`

// EnsureSchema применяет схему к базе
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// scopeFilter общий фрагмент WHERE для области пользователя.
// $1 - user_id, $2 - site_id или пустая строка.
const scopeFilter = `s.user_id = $1 AND ($2::text = '' OR s.id = $2::text)`
