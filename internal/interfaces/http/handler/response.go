package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

// errorResponse тело ответа с ошибкой
type errorResponse struct {
	Error string `json:"error"`
}

// writeError отображает вид ошибки на HTTP статус.
// Текст внутренних ошибок клиенту не отдается.
func writeError(w http.ResponseWriter, log *logger.Logger, op string, err error) {
	switch {
	case apperr.IsInvalid(err):
		middleware.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case apperr.IsNotFound(err):
		middleware.WriteJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrStoreUnavailable):
		log.Error("Store unavailable", err, "op", op)
		middleware.WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
	default:
		log.Error("Request failed", err, "op", op)
		middleware.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// writeOK сериализует успешный ответ
func writeOK(w http.ResponseWriter, payload any) {
	middleware.WriteJSON(w, http.StatusOK, payload)
}

// scopeFromRequest строит scope из пользователя в контексте и необязательного site_id
func scopeFromRequest(r *http.Request) (valueobject.Scope, error) {
	return valueobject.NewScope(
		middleware.UserIDFromContext(r.Context()),
		r.URL.Query().Get("site_id"),
	)
}

// queryInt читает целочисленный query-параметр; пустое значение дает def
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid("%s must be an integer", name)
	}
	return value, nil
}

// decodeJSON читает тело запроса с ограничением размера
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errPayloadTooLarge
		}
		return apperr.Invalid("invalid request body: %v", err)
	}
	return nil
}

var errPayloadTooLarge = errors.New("payload too large")
