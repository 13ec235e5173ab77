package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Handler HTTP-интерфейс советника: пробы, последний снапшот и ручной запуск
type Handler struct {
	runner     *Runner
	runTimeout time.Duration
}

func NewHandler(runner *Runner, runTimeout time.Duration) *Handler {
	if runTimeout <= 0 {
		runTimeout = 8 * time.Second
	}
	return &Handler{runner: runner, runTimeout: runTimeout}
}

// Routes регистрирует маршруты; неверный метод дает 405 от ServeMux
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)
	mux.HandleFunc("GET /api/v1/advisor/summary", h.summary)
	mux.HandleFunc("POST /api/v1/advisor/run", h.runNow)

	return mux
}

type healthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	LastRun   string `json:"last_run,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

type summaryResponse struct {
	StartedAt   time.Time     `json:"started_at"`
	Interval    string        `json:"interval"`
	LastRunAt   *time.Time    `json:"last_run_at"`
	LastError   string        `json:"last_error,omitempty"`
	LastSummary *CycleSummary `json:"last_summary"`
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.runner.Snapshot()

	response := healthResponse{
		Status:    "ok",
		Uptime:    time.Since(snapshot.StartedAt).Round(time.Second).String(),
		LastError: snapshot.LastError,
	}
	if !snapshot.LastRunAt.IsZero() {
		response.LastRun = snapshot.LastRunAt.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	if reason := notReadyReason(h.runner.Snapshot(), time.Now()); reason != "" {
		http.Error(w, "not ready: "+reason, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// notReadyReason пустая строка означает готовность.
// Цикл считается устаревшим после трех пропущенных интервалов.
func notReadyReason(snapshot Snapshot, now time.Time) string {
	switch {
	case snapshot.LastRunAt.IsZero():
		return "no advisor cycle yet"
	case now.Sub(snapshot.LastRunAt) > snapshot.Interval*3:
		return "stale advisor cycle"
	case snapshot.LastError != "":
		return "last cycle failed"
	default:
		return ""
	}
}

func (h *Handler) summary(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.runner.Snapshot()

	response := summaryResponse{
		StartedAt:   snapshot.StartedAt.UTC(),
		Interval:    snapshot.Interval.String(),
		LastError:   snapshot.LastError,
		LastSummary: snapshot.LastSummary,
	}
	if !snapshot.LastRunAt.IsZero() {
		lastRun := snapshot.LastRunAt.UTC()
		response.LastRunAt = &lastRun
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) runNow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.runTimeout)
	defer cancel()

	summary, err := h.runner.RunOnce(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(data)
}
