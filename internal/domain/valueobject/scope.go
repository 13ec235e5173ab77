package valueobject

import (
	"strings"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
)

// Scope ограничивает запросы данными одного пользователя и, опционально, одного сайта.
// Передается явно в каждый вызов.
type Scope struct {
	userID string
	siteID string
}

// NewScope создает Scope с валидацией
func NewScope(userID, siteID string) (Scope, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Scope{}, apperr.Invalid("malformed scope: user_id is required")
	}
	return Scope{userID: userID, siteID: strings.TrimSpace(siteID)}, nil
}

// UserID возвращает идентификатор пользователя
func (s Scope) UserID() string {
	return s.userID
}

// SiteID возвращает идентификатор сайта или пустую строку
func (s Scope) SiteID() string {
	return s.siteID
}

// HasSite сообщает, сужен ли scope до одного сайта
func (s Scope) HasSite() bool {
	return s.siteID != ""
}

// WithSite возвращает копию scope, суженную до сайта
func (s Scope) WithSite(siteID string) Scope {
	s.siteID = strings.TrimSpace(siteID)
	return s
}

// Validate проверяет, что scope создан через NewScope
func (s Scope) Validate() error {
	if s.userID == "" {
		return apperr.Invalid("malformed scope: user_id is required")
	}
	return nil
}

// Key возвращает ключ для кэша
func (s Scope) Key() string {
	if s.siteID == "" {
		return s.userID
	}
	return s.userID + ":" + s.siteID
}
