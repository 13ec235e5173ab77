package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
	"github.com/gorilla/websocket"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMissingToken запрос пришел без токена
	ErrMissingToken = fmt.Errorf("%w: missing token", ErrUnauthorized)
	// ErrInvalidToken токен не совпал с настроенным
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)
)

type AuthConfig struct {
	Enabled     bool
	BearerToken string
}

// Auth защищает API статическим Bearer token агентов и дашборда.
func Auth(cfg AuthConfig, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := ValidateRequestAuth(r, cfg); err != nil {
				log.Warn("Unauthorized request",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"reason", err.Error(),
				)
				WriteUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ValidateRequestAuth возвращает ErrMissingToken или ErrInvalidToken; оба оборачивают ErrUnauthorized
func ValidateRequestAuth(r *http.Request, cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}

	expected := strings.TrimSpace(cfg.BearerToken)
	if expected == "" {
		return ErrInvalidToken
	}

	token := ExtractToken(r)
	if token == "" {
		return ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return ErrInvalidToken
	}

	return nil
}

// ExtractToken берет токен из Authorization.
// Query-параметр token принимается только при WebSocket upgrade:
// браузерный new WebSocket() не умеет слать заголовки.
func ExtractToken(r *http.Request) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}

	if websocket.IsWebSocketUpgrade(r) {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}

// WriteUnauthorized отвечает 401 с challenge для Bearer
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="plugin-monitor"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
