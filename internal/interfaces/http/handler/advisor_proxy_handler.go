package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

const maxAdvisorResponseBytes = 2 * 1024 * 1024

// AdvisorProxyHandler проксирует запросы к сервису alert-advisor
type AdvisorProxyHandler struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

func NewAdvisorProxyHandler(baseURL string, timeout time.Duration, log *logger.Logger) *AdvisorProxyHandler {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}

	return &AdvisorProxyHandler{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

// GetSummary обрабатывает GET /api/v1/advisor/summary
func (h *AdvisorProxyHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	h.proxy(r.Context(), w, http.MethodGet, "/api/v1/advisor/summary")
}

// RunNow обрабатывает POST /api/v1/advisor/run
func (h *AdvisorProxyHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	h.proxy(r.Context(), w, http.MethodPost, "/api/v1/advisor/run")
}

func (h *AdvisorProxyHandler) proxy(ctx context.Context, w http.ResponseWriter, method string, path string) {
	if h.baseURL == "" {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "alert advisor base URL is not configured",
		})
		return
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, nil)
	if err != nil {
		h.logger.Error("Failed to build advisor request", err, "path", path)
		middleware.WriteJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "failed to build advisor request",
		})
		return
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("Advisor request failed", err, "path", path)
		middleware.WriteJSON(w, http.StatusBadGateway, errorResponse{
			Error: "alert advisor is unavailable",
		})
		return
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body, maxAdvisorResponseBytes)
	if err != nil {
		h.logger.Error("Failed to read advisor response body", err, "path", path)
		middleware.WriteJSON(w, http.StatusBadGateway, errorResponse{
			Error: "failed to read advisor response",
		})
		return
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = "application/json"
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("Failed to write advisor response to client", err, "path", path)
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, io.ErrUnexpectedEOF
	}
	return data, nil
}
