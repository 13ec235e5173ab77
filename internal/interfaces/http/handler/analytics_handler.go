package handler

import (
	"net/http"
	"strings"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/usecase"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

// AnalyticsHandler отдает агрегаты, рейтинги, анализ влияния и рекомендации
type AnalyticsHandler struct {
	aggregatesUC      *usecase.GetPerformanceAggregatesUseCase
	rankingUC         *usecase.GetPluginRankingUseCase
	impactUC          *usecase.AnalyzePluginImpactUseCase
	recommendationsUC *usecase.GetRecommendationsUseCase
	summaryUC         *usecase.GetDashboardSummaryUseCase
	defaultWindowDays int
	defaultRankLimit  int
	logger            *logger.Logger
}

// AnalyticsDefaults значения по умолчанию для query-параметров
type AnalyticsDefaults struct {
	WindowDays   int
	RankingLimit int
}

// NewAnalyticsHandler создает handler аналитики
func NewAnalyticsHandler(
	aggregatesUC *usecase.GetPerformanceAggregatesUseCase,
	rankingUC *usecase.GetPluginRankingUseCase,
	impactUC *usecase.AnalyzePluginImpactUseCase,
	recommendationsUC *usecase.GetRecommendationsUseCase,
	summaryUC *usecase.GetDashboardSummaryUseCase,
	defaults AnalyticsDefaults,
	log *logger.Logger,
) *AnalyticsHandler {
	if defaults.WindowDays <= 0 {
		defaults.WindowDays = 7
	}
	if defaults.RankingLimit <= 0 {
		defaults.RankingLimit = usecase.DefaultRankingLimit
	}

	return &AnalyticsHandler{
		aggregatesUC:      aggregatesUC,
		rankingUC:         rankingUC,
		impactUC:          impactUC,
		recommendationsUC: recommendationsUC,
		summaryUC:         summaryUC,
		defaultWindowDays: defaults.WindowDays,
		defaultRankLimit:  defaults.RankingLimit,
		logger:            log,
	}
}

// Aggregates обрабатывает GET /api/v1/performance/aggregates
func (h *AnalyticsHandler) Aggregates(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "aggregates", err)
		return
	}

	windowDays, err := queryInt(r, "window_days", h.defaultWindowDays)
	if err != nil {
		writeError(w, h.logger, "aggregates", err)
		return
	}

	result, err := h.aggregatesUC.Execute(r.Context(), usecase.AggregateQuery{
		Scope:      scope,
		WindowDays: windowDays,
		GroupBy:    valueobject.GroupBy(strings.TrimSpace(r.URL.Query().Get("group_by"))),
	})
	if err != nil {
		writeError(w, h.logger, "aggregates", err)
		return
	}

	writeOK(w, result)
}

// TopPlugins обрабатывает GET /api/v1/plugins/top
func (h *AnalyticsHandler) TopPlugins(w http.ResponseWriter, r *http.Request) {
	h.ranking(w, r, usecase.RankingTop)
}

// PoorPlugins обрабатывает GET /api/v1/plugins/poor
func (h *AnalyticsHandler) PoorPlugins(w http.ResponseWriter, r *http.Request) {
	h.ranking(w, r, usecase.RankingPoor)
}

func (h *AnalyticsHandler) ranking(w http.ResponseWriter, r *http.Request, kind string) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "ranking", err)
		return
	}

	limit, err := queryInt(r, "limit", h.defaultRankLimit)
	if err != nil {
		writeError(w, h.logger, "ranking", err)
		return
	}

	rank := h.rankingUC.Top
	if kind == usecase.RankingPoor {
		rank = h.rankingUC.Poor
	}

	result, err := rank(r.Context(), scope, limit)
	if err != nil {
		writeError(w, h.logger, "ranking", err)
		return
	}

	writeOK(w, result)
}

// Impact обрабатывает GET /api/v1/plugins/impact?site_id&plugin_id.
// Отсутствие установки дает 404.
func (h *AnalyticsHandler) Impact(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "impact", err)
		return
	}

	siteID := strings.TrimSpace(r.URL.Query().Get("site_id"))
	pluginID := strings.TrimSpace(r.URL.Query().Get("plugin_id"))

	result, found, err := h.impactUC.Execute(r.Context(), scope, siteID, pluginID)
	if err != nil {
		writeError(w, h.logger, "impact", err)
		return
	}
	if !found {
		writeError(w, h.logger, "impact", apperr.NotFound("plugin installation"))
		return
	}

	writeOK(w, result)
}

// Recommendations обрабатывает GET /api/v1/recommendations
func (h *AnalyticsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "recommendations", err)
		return
	}

	result, err := h.recommendationsUC.Execute(r.Context(), scope)
	if err != nil {
		writeError(w, h.logger, "recommendations", err)
		return
	}

	writeOK(w, map[string]any{
		"recommendations": result,
		"count":           len(result),
	})
}

// Summary обрабатывает GET /api/v1/dashboard/summary
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "summary", err)
		return
	}

	result, err := h.summaryUC.Execute(r.Context(), scope)
	if err != nil {
		writeError(w, h.logger, "summary", err)
		return
	}

	writeOK(w, result)
}
