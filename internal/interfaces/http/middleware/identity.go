package middleware

import (
	"context"
	"net/http"
	"strings"
)

// UserIDHeader заголовок, в котором вызывающая сторона передает пользователя
const UserIDHeader = "X-User-ID"

type userIDKey struct{}

// Identity переносит X-User-ID в контекст запроса.
// Для WebSocket допускается query-параметр user_id.
// Отсутствие пользователя не отклоняется здесь: use case вернет ошибку scope.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" && r.URL.Path == "/ws" {
			userID = strings.TrimSpace(r.URL.Query().Get("user_id"))
		}
		if userID != "" {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// WithUserID кладет пользователя в контекст
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext возвращает пользователя из контекста или пустую строку
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}
