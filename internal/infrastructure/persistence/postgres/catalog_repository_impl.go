package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/lib/pq"
)

// PostgresCatalogRepository реализует репозитории сайтов, плагинов и установок
type PostgresCatalogRepository struct {
	db *sql.DB
}

// NewPostgresCatalogRepository создает новый PostgreSQL repository каталога
func NewPostgresCatalogRepository(db *sql.DB) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{db: db}
}

// Sites возвращает представление репозитория как SiteRepository
func (r *PostgresCatalogRepository) Sites() *PostgresSiteRepository {
	return &PostgresSiteRepository{db: r.db}
}

// Plugins возвращает представление репозитория как PluginRepository
func (r *PostgresCatalogRepository) Plugins() *PostgresPluginRepository {
	return &PostgresPluginRepository{db: r.db}
}

// Installations возвращает представление репозитория как InstallationRepository
func (r *PostgresCatalogRepository) Installations() *PostgresInstallationRepository {
	return &PostgresInstallationRepository{db: r.db}
}

// PostgresSiteRepository реализует repository.SiteRepository
type PostgresSiteRepository struct {
	db *sql.DB
}

// FindInScope возвращает сайты области
func (r *PostgresSiteRepository) FindInScope(ctx context.Context, scope valueobject.Scope) ([]*entity.Site, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM wordpress_sites s
		WHERE %s
		ORDER BY s.site_name, s.id
	`, siteColumns, scopeFilter)

	rows, err := r.db.QueryContext(ctx, query, scope.UserID(), scope.SiteID())
	if err != nil {
		return nil, apperr.Unavailable("query sites", err)
	}
	defer rows.Close()

	return scanSites(rows)
}

// ListAll возвращает все сайты
func (r *PostgresSiteRepository) ListAll(ctx context.Context) ([]*entity.Site, error) {
	query := fmt.Sprintf(`SELECT %s FROM wordpress_sites s ORDER BY s.user_id, s.id`, siteColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.Unavailable("query all sites", err)
	}
	defer rows.Close()

	return scanSites(rows)
}

func scanSites(rows *sql.Rows) ([]*entity.Site, error) {
	var sites []*entity.Site
	for rows.Next() {
		site, err := ScanSiteRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("iterate site rows", err)
	}
	return sites, nil
}

// PostgresPluginRepository реализует repository.PluginRepository
type PostgresPluginRepository struct {
	db *sql.DB
}

// FindByIDs возвращает плагины по идентификаторам
func (r *PostgresPluginRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Plugin, error) {
	result := make(map[string]*entity.Plugin, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, slug, name, latest_version
		FROM plugins
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, apperr.Unavailable("query plugins", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := ScanPluginRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plugin row: %w", err)
		}
		result[p.ID()] = p
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("iterate plugin rows", err)
	}

	return result, nil
}

// PostgresInstallationRepository реализует repository.InstallationRepository
type PostgresInstallationRepository struct {
	db *sql.DB
}

// FindInScope возвращает установки области
func (r *PostgresInstallationRepository) FindInScope(
	ctx context.Context,
	scope valueobject.Scope,
	activeOnly bool,
) ([]*entity.Installation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM plugin_installations pi
		JOIN wordpress_sites s ON s.id = pi.site_id
		WHERE %s AND ($3::bool = FALSE OR pi.is_active)
		ORDER BY pi.site_id, pi.plugin_id, pi.installation_date
	`, installationColumns, scopeFilter)

	rows, err := r.db.QueryContext(ctx, query, scope.UserID(), scope.SiteID(), activeOnly)
	if err != nil {
		return nil, apperr.Unavailable("query installations", err)
	}
	defer rows.Close()

	return scanInstallations(rows)
}

// FindByPair возвращает все записи установки плагина на сайт в области
func (r *PostgresInstallationRepository) FindByPair(
	ctx context.Context,
	scope valueobject.Scope,
	siteID, pluginID string,
) ([]*entity.Installation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM plugin_installations pi
		JOIN wordpress_sites s ON s.id = pi.site_id
		WHERE %s AND pi.site_id = $3 AND pi.plugin_id = $4
		ORDER BY pi.installation_date DESC
	`, installationColumns, scopeFilter)

	rows, err := r.db.QueryContext(ctx, query, scope.UserID(), scope.SiteID(), siteID, pluginID)
	if err != nil {
		return nil, apperr.Unavailable("query installation pair", err)
	}
	defer rows.Close()

	return scanInstallations(rows)
}

// FindByIDs возвращает установки по идентификаторам
func (r *PostgresInstallationRepository) FindByIDs(
	ctx context.Context,
	ids []string,
) (map[string]*entity.Installation, error) {
	result := make(map[string]*entity.Installation, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM plugin_installations pi
		WHERE pi.id = ANY($1)
	`, installationColumns)

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, apperr.Unavailable("query installations by id", err)
	}
	defer rows.Close()

	installs, err := scanInstallations(rows)
	if err != nil {
		return nil, err
	}
	for _, inst := range installs {
		result[inst.ID()] = inst
	}
	return result, nil
}

func scanInstallations(rows *sql.Rows) ([]*entity.Installation, error) {
	var installs []*entity.Installation
	for rows.Next() {
		inst, err := ScanInstallationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installation row: %w", err)
		}
		installs = append(installs, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("iterate installation rows", err)
	}
	return installs, nil
}
