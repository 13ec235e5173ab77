package entity

import (
	"errors"
	"time"
)

// Installation связка сайт-плагин с интервалом активности
type Installation struct {
	id               string
	siteID           string
	pluginID         string
	installedVersion string
	active           bool
	installationDate time.Time
	deactivationDate *time.Time
}

// NewInstallation создает активную установку плагина
func NewInstallation(id, siteID, pluginID, installedVersion string, installedAt time.Time) (*Installation, error) {
	if id == "" || siteID == "" || pluginID == "" {
		return nil, errors.New("installation id, site_id and plugin_id are required")
	}
	if installedAt.IsZero() {
		return nil, errors.New("installation_date cannot be zero")
	}

	return &Installation{
		id:               id,
		siteID:           siteID,
		pluginID:         pluginID,
		installedVersion: installedVersion,
		active:           true,
		installationDate: installedAt.UTC(),
	}, nil
}

// ReconstructInstallation восстанавливает установку из хранилища
func ReconstructInstallation(
	id, siteID, pluginID, installedVersion string,
	active bool,
	installationDate time.Time,
	deactivationDate *time.Time,
) *Installation {
	return &Installation{
		id:               id,
		siteID:           siteID,
		pluginID:         pluginID,
		installedVersion: installedVersion,
		active:           active,
		installationDate: installationDate,
		deactivationDate: deactivationDate,
	}
}

func (i *Installation) ID() string               { return i.id }
func (i *Installation) SiteID() string           { return i.siteID }
func (i *Installation) PluginID() string         { return i.pluginID }
func (i *Installation) InstalledVersion() string { return i.installedVersion }
func (i *Installation) IsActive() bool           { return i.active }
func (i *Installation) InstallationDate() time.Time {
	return i.installationDate
}

// DeactivationDate возвращает дату деактивации или nil, пока плагин активен
func (i *Installation) DeactivationDate() *time.Time {
	if i.deactivationDate == nil {
		return nil
	}
	d := *i.deactivationDate
	return &d
}

// IsDeactivated сообщает, что у установки есть дата деактивации
func (i *Installation) IsDeactivated() bool {
	return i.deactivationDate != nil
}

// Deactivate фиксирует дату деактивации. Повторный вызов не меняет дату.
func (i *Installation) Deactivate(at time.Time) {
	if i.deactivationDate != nil {
		return
	}
	at = at.UTC()
	i.active = false
	i.deactivationDate = &at
}
