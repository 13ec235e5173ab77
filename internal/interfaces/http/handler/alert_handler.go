package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/usecase"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

// AlertHandler обслуживает ленту алертов и переходы их состояний
type AlertHandler struct {
	manageUC *usecase.ManageAlertsUseCase
	feedUC   *usecase.AlertFeedUseCase
	logger   *logger.Logger
}

// NewAlertHandler создает handler алертов
func NewAlertHandler(manageUC *usecase.ManageAlertsUseCase, feedUC *usecase.AlertFeedUseCase, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		manageUC: manageUC,
		feedUC:   feedUC,
		logger:   log,
	}
}

// Live обрабатывает GET /api/v1/alerts/live?last_check=RFC3339.
// Клиент передает next_check из предыдущего ответа.
func (h *AlertHandler) Live(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "alert feed", err)
		return
	}

	var cursor time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("last_check")); raw != "" {
		cursor, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, h.logger, "alert feed", apperr.Invalid("last_check must be RFC3339 timestamp"))
			return
		}
	}

	result, err := h.feedUC.Since(r.Context(), scope, cursor)
	if err != nil {
		writeError(w, h.logger, "alert feed", err)
		return
	}

	writeOK(w, result)
}

// MarkRead обрабатывает POST /api/v1/alerts/{id}/read
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "mark alert read", err)
		return
	}

	result, err := h.manageUC.MarkRead(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "mark alert read", err)
		return
	}

	writeOK(w, result)
}

// Resolve обрабатывает POST /api/v1/alerts/{id}/resolve
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "resolve alert", err)
		return
	}

	result, err := h.manageUC.Resolve(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "resolve alert", err)
		return
	}

	writeOK(w, result)
}

// MarkAllRead обрабатывает POST /api/v1/alerts/read-all
func (h *AlertHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "mark all alerts read", err)
		return
	}

	result, err := h.manageUC.MarkAllRead(r.Context(), scope)
	if err != nil {
		writeError(w, h.logger, "mark all alerts read", err)
		return
	}

	writeOK(w, result)
}
