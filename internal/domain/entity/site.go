package entity

import "time"

// Site WordPress сайт пользователя
type Site struct {
	id        string
	userID    string
	name      string
	url       string
	createdAt time.Time
}

// ReconstructSite восстанавливает сайт из хранилища
func ReconstructSite(id, userID, name, url string, createdAt time.Time) *Site {
	return &Site{id: id, userID: userID, name: name, url: url, createdAt: createdAt}
}

func (s *Site) ID() string           { return s.id }
func (s *Site) UserID() string       { return s.userID }
func (s *Site) Name() string         { return s.name }
func (s *Site) URL() string          { return s.url }
func (s *Site) CreatedAt() time.Time { return s.createdAt }
