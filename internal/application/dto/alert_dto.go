package dto

import (
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
)

// AlertDTO представляет алерт для отправки клиентам
type AlertDTO struct {
	ID          string     `json:"id"`
	SiteID      string     `json:"site_id"`
	PluginSlug  string     `json:"plugin_slug,omitempty"`
	Severity    string     `json:"severity"`
	AlertType   string     `json:"alert_type"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	TriggeredAt time.Time  `json:"triggered_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	IsRead      bool       `json:"is_read"`
	IsResolved  bool       `json:"is_resolved"`
}

// FromAlert конвертирует Domain Entity в DTO
func FromAlert(a *entity.Alert) *AlertDTO {
	return &AlertDTO{
		ID:          a.ID(),
		SiteID:      a.SiteID(),
		PluginSlug:  a.PluginSlug(),
		Severity:    a.Severity().String(),
		AlertType:   a.Type().String(),
		Title:       a.Title(),
		Message:     a.Message(),
		TriggeredAt: a.TriggeredAt(),
		ReadAt:      a.ReadAt(),
		ResolvedAt:  a.ResolvedAt(),
		IsRead:      a.IsRead(),
		IsResolved:  a.IsResolved(),
	}
}

// ToAlertDTOs конвертирует слайс Entity в слайс DTO
func ToAlertDTOs(alerts []*entity.Alert) []*AlertDTO {
	dtos := make([]*AlertDTO, len(alerts))
	for i, a := range alerts {
		dtos[i] = FromAlert(a)
	}
	return dtos
}

// AlertFeedDTO ответ ленты алертов для поллинга.
// Cursor нужно передать в следующий запрос как last_check.
type AlertFeedDTO struct {
	Alerts []*AlertDTO `json:"alerts"`
	Count  int         `json:"count"`
	Cursor time.Time   `json:"cursor"`
}

// RaiseAlertCommand команда создания алерта.
// triggered_at ставится в момент создания, время события передается в Message.
type RaiseAlertCommand struct {
	SiteID     string `json:"site_id" validate:"required"`
	PluginSlug string `json:"plugin_slug"`
	Severity   string `json:"severity" validate:"required,oneof=low medium high critical"`
	AlertType  string `json:"alert_type" validate:"required,oneof=performance security info"`
	Title      string `json:"title" validate:"required,max=255"`
	Message    string `json:"message"`
}

// TransitionResultDTO результат перехода состояния алерта.
// Changed=false означает, что алерт уже был в целевом состоянии.
type TransitionResultDTO struct {
	AlertID    string    `json:"alert_id"`
	Transition string    `json:"transition"`
	Changed    bool      `json:"changed"`
	At         time.Time `json:"at"`
}

// MarkAllReadResultDTO результат массового чтения
type MarkAllReadResultDTO struct {
	Updated int64     `json:"updated"`
	At      time.Time `json:"at"`
}
