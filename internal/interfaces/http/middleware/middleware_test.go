package middleware

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter("error", io.Discard)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"user_id": UserIDFromContext(r.Context())})
	})
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		header  string
		query   string
		upgrade bool
		want    int
	}{
		{name: "disabled", cfg: AuthConfig{}, want: http.StatusOK},
		{name: "valid bearer", cfg: AuthConfig{Enabled: true, BearerToken: "secret"}, header: "Bearer secret", want: http.StatusOK},
		{name: "query token on websocket upgrade", cfg: AuthConfig{Enabled: true, BearerToken: "secret"}, query: "?token=secret", upgrade: true, want: http.StatusOK},
		{name: "query token on plain request", cfg: AuthConfig{Enabled: true, BearerToken: "secret"}, query: "?token=secret", want: http.StatusUnauthorized},
		{name: "lowercase scheme", cfg: AuthConfig{Enabled: true, BearerToken: "secret"}, header: "bearer secret", want: http.StatusOK},
		{name: "wrong token", cfg: AuthConfig{Enabled: true, BearerToken: "secret"}, header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "missing token", cfg: AuthConfig{Enabled: true, BearerToken: "secret"}, want: http.StatusUnauthorized},
		{name: "enabled without configured token", cfg: AuthConfig{Enabled: true}, header: "Bearer ", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/plugins/top"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()

			Auth(tt.cfg, testLogger())(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Fatalf("expected bearer challenge on 401")
			}
		})
	}
}

func TestValidateRequestAuthReasons(t *testing.T) {
	cfg := AuthConfig{Enabled: true, BearerToken: "secret"}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/live", nil)
	if err := ValidateRequestAuth(req, cfg); !errors.Is(err, ErrMissingToken) || !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected missing token error, got %v", err)
	}

	req.Header.Set("Authorization", "Bearer nope")
	if err := ValidateRequestAuth(req, cfg); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/summary", nil)
	req.Header.Set(UserIDHeader, " user-1 ")
	rec := httptest.NewRecorder()

	Identity(okHandler()).ServeHTTP(rec, req)

	if body := rec.Body.String(); body != "{\"user_id\":\"user-1\"}\n" {
		t.Fatalf("unexpected body %q", body)
	}

	wsReq := httptest.NewRequest(http.MethodGet, "/ws?user_id=user-2", nil)
	wsRec := httptest.NewRecorder()
	Identity(okHandler()).ServeHTTP(wsRec, wsReq)
	if body := wsRec.Body.String(); body != "{\"user_id\":\"user-2\"}\n" {
		t.Fatalf("unexpected websocket body %q", body)
	}

	apiReq := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/summary?user_id=user-2", nil)
	apiRec := httptest.NewRecorder()
	Identity(okHandler()).ServeHTTP(apiRec, apiReq)
	if body := apiRec.Body.String(); body != "{\"user_id\":\"\"}\n" {
		t.Fatalf("query user must be ignored outside /ws, got %q", body)
	}
}

func TestRecovery(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()

	Recovery(testLogger())(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func largeHandler(payload string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"payload": payload})
	})
}

func TestCompression(t *testing.T) {
	payload := strings.Repeat("slow-plugin ", 200)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations", nil)
	req.Header.Set("Accept-Encoding", "br, gzip;q=0.8")
	rec := httptest.NewRecorder()

	Compression(largeHandler(payload)).ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding")
	}
	reader, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var decoded map[string]string
	if err := json.NewDecoder(reader).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["payload"] != payload {
		t.Fatalf("payload mismatch after decompression")
	}

	tests := []struct {
		name    string
		method  string
		handler http.Handler
		headers map[string]string
	}{
		{"short body", http.MethodGet, okHandler(), map[string]string{"Accept-Encoding": "gzip"}},
		{"no gzip accepted", http.MethodGet, largeHandler(payload), map[string]string{"Accept-Encoding": "br"}},
		{"websocket upgrade", http.MethodGet, largeHandler(payload), map[string]string{"Accept-Encoding": "gzip", "Connection": "Upgrade"}},
		{"head", http.MethodHead, largeHandler(payload), map[string]string{"Accept-Encoding": "gzip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/api/v1/recommendations", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			plain := httptest.NewRecorder()
			Compression(tt.handler).ServeHTTP(plain, r)
			if got := plain.Header().Get("Content-Encoding"); got != "" {
				t.Fatalf("expected plain response, got Content-Encoding %q", got)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)
	defer limiter.Stop()
	handler := RateLimit(limiter)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/measurements", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/v1/measurements", nil)
	other.Header.Set("X-Forwarded-For", "10.0.0.2, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client must have its own bucket, got %d", rec.Code)
	}
}

func TestEvictIdle(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	limiter := &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rps:      1,
		burst:    1,
		idleTTL:  time.Minute,
		now:      func() time.Time { return now },
		stop:     make(chan struct{}),
	}

	limiter.Allow("10.0.0.1")
	now = now.Add(2 * time.Minute)
	limiter.Allow("10.0.0.2")
	limiter.evictIdle()

	if _, ok := limiter.visitors["10.0.0.1"]; ok {
		t.Fatalf("expected idle visitor to be evicted")
	}
	if _, ok := limiter.visitors["10.0.0.2"]; !ok {
		t.Fatalf("expected recent visitor to stay")
	}
}
