package prometheus

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plugin_monitor"

// ClientCounter reports the number of live push connections.
type ClientCounter interface {
	ClientCount() int
}

// Metrics bundles prometheus collectors used by the API and the advisor.
// Implements port.Telemetry.
type Metrics struct {
	registry *prom.Registry

	RequestsTotal      *prom.CounterVec
	RequestDurationSec *prom.HistogramVec
	IngestedTotal      prom.Counter
	RejectedTotal      prom.Counter
	AlertsRaisedTotal  *prom.CounterVec
	TransitionsTotal   *prom.CounterVec
	CacheLookupsTotal  *prom.CounterVec
	AdvisorRunsTotal   *prom.CounterVec
}

// New registers all collectors in registry.
func New(registry *prom.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prom.DefBuckets,
		}, []string{"route", "method", "status"}),
		IngestedTotal: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_ingested_total",
			Help:      "Total number of accepted plugin measurements.",
		}),
		RejectedTotal: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_rejected_total",
			Help:      "Total number of rejected plugin measurements.",
		}),
		AlertsRaisedTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Total number of raised alerts by severity.",
		}, []string{"severity"}),
		TransitionsTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "alert_transitions_total",
			Help:      "Total number of alert lifecycle transitions.",
		}, []string{"transition", "changed"}),
		CacheLookupsTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Analytics cache lookups by result.",
		}, []string{"cache", "result"}),
		AdvisorRunsTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "advisor_runs_total",
			Help:      "Advisor evaluation runs by outcome.",
		}, []string{"outcome"}),
	}

	m.registry = registry
	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.IngestedTotal,
		m.RejectedTotal,
		m.AlertsRaisedTotal,
		m.TransitionsTotal,
		m.CacheLookupsTotal,
		m.AdvisorRunsTotal,
	)

	return m
}

// RegisterClientGauge exposes the live websocket client count.
func (m *Metrics) RegisterClientGauge(counter ClientCounter) {
	m.registry.MustRegister(prom.NewGaugeFunc(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_clients",
		Help:      "Number of connected websocket clients.",
	}, func() float64 {
		return float64(counter.ClientCount())
	}))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) MeasurementsIngested(count int) {
	if count > 0 {
		m.IngestedTotal.Add(float64(count))
	}
}

func (m *Metrics) MeasurementsRejected(count int) {
	if count > 0 {
		m.RejectedTotal.Add(float64(count))
	}
}

func (m *Metrics) AlertRaised(severity string) {
	m.AlertsRaisedTotal.WithLabelValues(severity).Inc()
}

func (m *Metrics) AlertTransition(transition string, changed bool) {
	m.TransitionsTotal.WithLabelValues(transition, strconv.FormatBool(changed)).Inc()
}

func (m *Metrics) CacheLookup(name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(name, result).Inc()
}

// AdvisorRun records the outcome of one advisor pass ("success" or "error").
func (m *Metrics) AdvisorRun(outcome string) {
	m.AdvisorRunsTotal.WithLabelValues(outcome).Inc()
}

// Middleware records request count and latency per normalized route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// normalizeRoute collapses path parameters to keep label cardinality bounded.
func normalizeRoute(path string) string {
	switch {
	case path == "/ws", path == "/healthz", path == "/readyz", path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/v1/alerts/"):
		switch {
		case path == "/api/v1/alerts/live", path == "/api/v1/alerts/read-all":
			return path
		case strings.HasSuffix(path, "/read"):
			return "/api/v1/alerts/{id}/read"
		case strings.HasSuffix(path, "/resolve"):
			return "/api/v1/alerts/{id}/resolve"
		default:
			return "/api/v1/alerts/*"
		}
	case strings.HasPrefix(path, "/api/v1/advisor/"):
		return path
	case path == "/api/v1/measurements",
		path == "/api/v1/performance/aggregates",
		path == "/api/v1/plugins/top",
		path == "/api/v1/plugins/poor",
		path == "/api/v1/plugins/impact",
		path == "/api/v1/recommendations",
		path == "/api/v1/dashboard/summary",
		path == "/api/v1/reports":
		return path
	case strings.HasPrefix(path, "/api/"):
		return "/api/*"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
