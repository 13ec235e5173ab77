package websocket

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// pingPeriod < pongWait
	pingPeriod = 54 * time.Second

	// Команды клиента короткие: {"type":"subscribe","site_id":"..."}
	maxMessageSize = 512
	sendBuffer     = 256
)

// CommandSubscribe меняет фильтр сайта у открытого соединения
const CommandSubscribe = "subscribe"

// clientCommand сообщение от дашборда
type clientCommand struct {
	Type   string `json:"type"`
	SiteID string `json:"site_id"`
}

// Client соединение дашборда одного пользователя.
// Если задан siteID, алерты других сайтов не доставляются.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	userID string
	send   chan Message
	logger *logger.Logger

	filterMu sync.RWMutex
	siteID   string
}

// NewClient создает клиента пользователя userID; siteID может быть пустым
func NewClient(hub *Hub, conn *websocket.Conn, userID, siteID string, logger *logger.Logger) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		userID: userID,
		siteID: strings.TrimSpace(siteID),
		send:   make(chan Message, sendBuffer),
		logger: logger,
	}
}

// UserID возвращает владельца соединения
func (c *Client) UserID() string {
	return c.userID
}

// SiteID возвращает текущий фильтр сайта
func (c *Client) SiteID() string {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return c.siteID
}

func (c *Client) setSite(siteID string) {
	c.filterMu.Lock()
	c.siteID = strings.TrimSpace(siteID)
	c.filterMu.Unlock()
}

// wants решает, нужно ли сообщение клиенту. Итоги приема идут всем соединениям пользователя.
func (c *Client) wants(msg Message) bool {
	if msg.Type != MessageTypeAlert {
		return true
	}
	site := c.SiteID()
	if site == "" {
		return true
	}
	alert, ok := msg.Data.(*dto.AlertDTO)
	return !ok || alert == nil || alert.SiteID == site
}

// handleCommand применяет команду клиента; неизвестные команды игнорируются
func (c *Client) handleCommand(payload []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		c.logger.Debug("Ignoring malformed client message", "user_id", c.userID, "error", err.Error())
		return
	}

	switch cmd.Type {
	case CommandSubscribe:
		c.setSite(cmd.SiteID)
		c.logger.Debug("Client subscription changed", "user_id", c.userID, "site_id", cmd.SiteID)
	default:
		c.logger.Debug("Ignoring unknown client command", "user_id", c.userID, "type", cmd.Type)
	}
}

// ReadPump читает команды клиента до закрытия соединения
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("WebSocket set read deadline error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", err)
			}
			return
		}
		if messageType == websocket.TextMessage {
			c.handleCommand(payload)
		}
	}
}

// WritePump пишет сообщения hub и ping до закрытия канала send
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("WebSocket set write deadline error", err)
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("WebSocket write error", err, "user_id", c.userID)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
