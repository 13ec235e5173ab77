package handler

import (
	"net/http"
	"net/url"
	"strings"

	wsInfra "github.com/dreschagin/plugin-performance-monitor/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/plugin-performance-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
	"github.com/gorilla/websocket"
)

// WebSocketHandler принимает push-соединения дашбордов
type WebSocketHandler struct {
	hub            *wsInfra.Hub
	logger         *logger.Logger
	allowedOrigins map[string]struct{}
	authConfig     middleware.AuthConfig
	upgrader       websocket.Upgrader
}

// NewWebSocketHandler создает новый handler
func NewWebSocketHandler(
	hub *wsInfra.Hub,
	allowedOrigins []string,
	authConfig middleware.AuthConfig,
	logger *logger.Logger,
) *WebSocketHandler {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[strings.ToLower(trimmed)] = struct{}{}
	}

	h := &WebSocketHandler{
		hub:            hub,
		logger:         logger,
		allowedOrigins: originMap,
		authConfig:     authConfig,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   4096,
		EnableCompression: true,
		CheckOrigin:       h.checkOrigin,
	}

	return h
}

// checkOrigin пропускает клиентов без Origin (не браузер) и разрешенные origin дашборда
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if _, ok := h.allowedOrigins["*"]; ok {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	_, ok := h.allowedOrigins[strings.ToLower(parsed.Scheme+"://"+parsed.Host)]
	return ok
}

// HandleConnection открывает push-канал дашборда.
// Соединение получает только алерты и итоги приема своего пользователя;
// query site_id сужает алерты до одного сайта.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := middleware.ValidateRequestAuth(r, h.authConfig); err != nil {
		h.logger.Warn("WebSocket unauthorized",
			"remote_addr", r.RemoteAddr,
			"reason", err.Error(),
		)
		middleware.WriteUnauthorized(w)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		middleware.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "user id is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", err)
		return
	}

	siteID := strings.TrimSpace(r.URL.Query().Get("site_id"))
	client := wsInfra.NewClient(h.hub, conn, userID, siteID, h.logger)
	h.hub.Register(client)
	h.logger.Debug("Dashboard connected", "user_id", userID, "site_id", siteID)

	go client.WritePump()
	go client.ReadPump()
}
