package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dreschagin/plugin-performance-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

func TestWebSocketCheckOrigin(t *testing.T) {
	log := logger.NewWithWriter("error", io.Discard)

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "agent without origin", allowed: nil, origin: "", want: true},
		{name: "allowed dashboard", allowed: []string{"https://monitor.example.com"}, origin: "https://monitor.example.com", want: true},
		{name: "case-insensitive host", allowed: []string{"https://Monitor.Example.com"}, origin: "https://monitor.example.com", want: true},
		{name: "path ignored", allowed: []string{"http://localhost:8080"}, origin: "http://localhost:8080/dashboard", want: true},
		{name: "foreign origin", allowed: []string{"https://monitor.example.com"}, origin: "https://evil.example.com", want: false},
		{name: "nothing allowed", allowed: nil, origin: "https://monitor.example.com", want: false},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://anything.example.com", want: true},
		{name: "garbage origin", allowed: []string{"https://monitor.example.com"}, origin: "::not-a-url", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebSocketHandler(nil, tt.allowed, middleware.AuthConfig{}, log)
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := h.checkOrigin(req); got != tt.want {
				t.Fatalf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	log := logger.NewWithWriter("error", io.Discard)
	h := NewWebSocketHandler(nil, nil, middleware.AuthConfig{Enabled: true, BearerToken: "secret"}, log)

	rec := httptest.NewRecorder()
	h.HandleConnection(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
