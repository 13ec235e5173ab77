package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/interfaces/http/handler"
	"github.com/dreschagin/plugin-performance-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/plugin-performance-monitor/pkg/config"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Handlers набор HTTP handlers приложения
type Handlers struct {
	Measurements *handler.MeasurementHandler
	Analytics    *handler.AnalyticsHandler
	Alerts       *handler.AlertHandler
	Reports      *handler.ReportHandler
	WebSocket    *handler.WebSocketHandler
	Advisor      *handler.AdvisorProxyHandler
}

// Observability необязательные метрики; nil поля пропускаются
type Observability struct {
	MetricsHandler http.Handler
	Instrument     func(http.Handler) http.Handler
}

// ReadinessCheck проверяет доступность зависимостей для /readyz
type ReadinessCheck func(ctx context.Context) error

// Router настраивает маршруты приложения
type Router struct {
	mux           *http.ServeMux
	handlers      Handlers
	observability Observability
	ready         ReadinessCheck
	ingestLimiter *middleware.IPRateLimiter
	security      config.SecurityConfig
	logger        *logger.Logger
}

// NewRouter создает новый router
func NewRouter(
	handlers Handlers,
	observability Observability,
	ready ReadinessCheck,
	ingestLimiter *middleware.IPRateLimiter,
	security config.SecurityConfig,
	logger *logger.Logger,
) *Router {
	return &Router{
		mux:           http.NewServeMux(),
		handlers:      handlers,
		observability: observability,
		ready:         ready,
		ingestLimiter: ingestLimiter,
		security:      security,
		logger:        logger,
	}
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Probes без авторизации
	rt.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rt.mux.HandleFunc("GET /readyz", rt.readyz)
	if rt.observability.MetricsHandler != nil {
		rt.mux.Handle("GET /metrics", rt.observability.MetricsHandler)
	}

	auth := middleware.Auth(middleware.AuthConfig{
		Enabled:     rt.security.AuthEnabled,
		BearerToken: rt.security.AuthToken,
	}, rt.logger)
	protected := func(h http.HandlerFunc) http.Handler {
		return auth(h)
	}

	// WebSocket проверяет токен сам: браузер не может передать заголовок
	rt.mux.HandleFunc("GET /ws", rt.handlers.WebSocket.HandleConnection)

	// Ingestion
	var ingest http.Handler = protected(rt.handlers.Measurements.Ingest)
	if rt.ingestLimiter != nil {
		ingest = middleware.RateLimit(rt.ingestLimiter)(ingest)
	}
	rt.mux.Handle("POST /api/v1/measurements", ingest)

	// Analytics
	rt.mux.Handle("GET /api/v1/performance/aggregates", protected(rt.handlers.Analytics.Aggregates))
	rt.mux.Handle("GET /api/v1/plugins/top", protected(rt.handlers.Analytics.TopPlugins))
	rt.mux.Handle("GET /api/v1/plugins/poor", protected(rt.handlers.Analytics.PoorPlugins))
	rt.mux.Handle("GET /api/v1/plugins/impact", protected(rt.handlers.Analytics.Impact))
	rt.mux.Handle("GET /api/v1/recommendations", protected(rt.handlers.Analytics.Recommendations))
	rt.mux.Handle("GET /api/v1/dashboard/summary", protected(rt.handlers.Analytics.Summary))

	// Alerts
	rt.mux.Handle("GET /api/v1/alerts/live", protected(rt.handlers.Alerts.Live))
	rt.mux.Handle("POST /api/v1/alerts/read-all", protected(rt.handlers.Alerts.MarkAllRead))
	rt.mux.Handle("POST /api/v1/alerts/{id}/read", protected(rt.handlers.Alerts.MarkRead))
	rt.mux.Handle("POST /api/v1/alerts/{id}/resolve", protected(rt.handlers.Alerts.Resolve))

	// Reports
	rt.mux.Handle("POST /api/v1/reports", protected(rt.handlers.Reports.Export))
	rt.mux.Handle("POST /api/v1/reports/export", protected(rt.handlers.Reports.Export))
	rt.mux.Handle("GET /api/v1/reports", protected(rt.handlers.Reports.List))

	// Advisor
	if rt.handlers.Advisor != nil {
		rt.mux.Handle("GET /api/v1/advisor/summary", protected(rt.handlers.Advisor.GetSummary))
		rt.mux.Handle("POST /api/v1/advisor/run", protected(rt.handlers.Advisor.RunNow))
	}

	// Применяем middleware
	var handler http.Handler = rt.mux
	handler = middleware.Compression(handler)
	handler = middleware.Identity(handler)
	if rt.observability.Instrument != nil {
		handler = rt.observability.Instrument(handler)
	}
	handler = middleware.Logger(rt.logger)(handler)
	handler = middleware.Recovery(rt.logger)(handler)

	return handler
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := rt.ready(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", "error", err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
