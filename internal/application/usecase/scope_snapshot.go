package usecase

import (
	"context"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/repository"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

// Catalog объединяет справочные хранилища области пользователя
type Catalog struct {
	Sites         repository.SiteRepository
	Plugins       repository.PluginRepository
	Installations repository.InstallationRepository
}

// scopeSnapshot данные области, прочитанные для одного запроса
type scopeSnapshot struct {
	installations map[string]*entity.Installation
	measurements  []*entity.Measurement
	plugins       map[string]*entity.Plugin
}

func (s *scopeSnapshot) installationList() []*entity.Installation {
	list := make([]*entity.Installation, 0, len(s.installations))
	for _, inst := range s.installations {
		list = append(list, inst)
	}
	return list
}

// loadSnapshot читает установки, замеры окна и плагины области.
// activeOnly оставляет только активные установки.
func loadSnapshot(
	ctx context.Context,
	catalog Catalog,
	measurements repository.MeasurementRepository,
	scope valueobject.Scope,
	window valueobject.Window,
	now time.Time,
	activeOnly bool,
) (*scopeSnapshot, error) {
	installs, err := catalog.Installations.FindInScope(ctx, scope, activeOnly)
	if err != nil {
		return nil, err
	}

	snap := &scopeSnapshot{
		installations: make(map[string]*entity.Installation, len(installs)),
		plugins:       map[string]*entity.Plugin{},
	}
	pluginIDs := make([]string, 0, len(installs))
	seen := make(map[string]struct{}, len(installs))
	for _, inst := range installs {
		snap.installations[inst.ID()] = inst
		if _, ok := seen[inst.PluginID()]; !ok {
			seen[inst.PluginID()] = struct{}{}
			pluginIDs = append(pluginIDs, inst.PluginID())
		}
	}

	if len(installs) == 0 {
		return snap, nil
	}

	snap.measurements, err = measurements.FindInScope(ctx, scope, window.Cutoff(now))
	if err != nil {
		return nil, err
	}

	snap.plugins, err = catalog.Plugins.FindByIDs(ctx, pluginIDs)
	if err != nil {
		return nil, err
	}

	return snap, nil
}
