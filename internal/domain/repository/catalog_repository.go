package repository

import (
	"context"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

// SiteRepository хранилище сайтов пользователей
type SiteRepository interface {
	// FindInScope возвращает сайты области, упорядоченные по имени
	FindInScope(ctx context.Context, scope valueobject.Scope) ([]*entity.Site, error)

	// ListAll возвращает все сайты (для фонового советника)
	ListAll(ctx context.Context) ([]*entity.Site, error)
}

// PluginRepository каталог плагинов
type PluginRepository interface {
	// FindByIDs возвращает плагины по идентификаторам, ключ карты - ID
	FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Plugin, error)
}

// InstallationRepository хранилище установок плагинов
type InstallationRepository interface {
	// FindInScope возвращает установки области; activeOnly оставляет только активные
	FindInScope(ctx context.Context, scope valueobject.Scope, activeOnly bool) ([]*entity.Installation, error)

	// FindByPair возвращает все записи установки плагина на сайт
	FindByPair(ctx context.Context, scope valueobject.Scope, siteID, pluginID string) ([]*entity.Installation, error)

	// FindByIDs возвращает установки по идентификаторам, ключ карты - ID
	FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Installation, error)
}
