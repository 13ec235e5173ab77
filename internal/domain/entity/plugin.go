package entity

// Plugin плагин из каталога с последней известной версией
type Plugin struct {
	id            string
	slug          string
	name          string
	latestVersion string
}

// ReconstructPlugin восстанавливает плагин из хранилища
func ReconstructPlugin(id, slug, name, latestVersion string) *Plugin {
	return &Plugin{id: id, slug: slug, name: name, latestVersion: latestVersion}
}

func (p *Plugin) ID() string            { return p.id }
func (p *Plugin) Slug() string          { return p.slug }
func (p *Plugin) Name() string          { return p.name }
func (p *Plugin) LatestVersion() string { return p.latestVersion }

// DisplayName возвращает имя или slug, если имя не заполнено
func (p *Plugin) DisplayName() string {
	if p.name != "" {
		return p.name
	}
	return p.slug
}
