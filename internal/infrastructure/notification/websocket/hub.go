package websocket

import (
	"sync"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

// Типы сообщений, отправляемых клиентам
const (
	MessageTypeAlert  = "alert"
	MessageTypeIngest = "ingest"
)

// Message представляет сообщение для отправки клиенту
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// envelope адресованное сообщение: доставляется только клиентам userID
type envelope struct {
	userID  string
	message Message
}

// Hub управляет WebSocket клиентами и рассылает сообщения их владельцам.
// Реализует интерфейс port.NotificationService
type Hub struct {
	// Клиенты, сгруппированные по пользователю
	clients map[string]map[*Client]struct{}

	// Канал адресованных сообщений
	outbound chan envelope

	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once

	// Mutex для защиты clients map
	mu sync.RWMutex

	logger *logger.Logger
}

// NewHub создает новый WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		outbound:   make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

// Run запускает hub (должен быть запущен в отдельной goroutine).
// Возвращается после Stop.
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("Client registered", "user_id", client.userID, "total_clients", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", "user_id", client.userID, "total_clients", h.ClientCount())

		case env := <-h.outbound:
			h.deliver(env)

		case <-h.stop:
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return
		}
	}
}

func (h *Hub) deliver(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients[env.userID] {
		if !client.wants(env.message) {
			continue
		}
		select {
		case client.send <- env.message:
		default:
			// Канал клиента заполнен, закрываем соединение
			h.removeLocked(client)
			h.logger.Warn("Client channel full, disconnected", "user_id", env.userID)
		}
	}
}

// removeLocked удаляет клиента; вызывать под h.mu
func (h *Hub) removeLocked(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stop:
	}
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// Stop останавливает hub и закрывает каналы всех клиентов
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// NotifyAlert отправляет алерт клиентам пользователя (реализация port.NotificationService)
func (h *Hub) NotifyAlert(userID string, alert *dto.AlertDTO) {
	h.enqueue(userID, Message{Type: MessageTypeAlert, Data: alert})
}

// NotifyIngest сообщает клиентам пользователя о принятых замерах (реализация port.NotificationService)
func (h *Hub) NotifyIngest(userID string, summary *dto.IngestResultDTO) {
	h.enqueue(userID, Message{Type: MessageTypeIngest, Data: summary})
}

func (h *Hub) enqueue(userID string, message Message) {
	if userID == "" {
		return
	}
	select {
	case h.outbound <- envelope{userID: userID, message: message}:
	default:
		h.logger.Warn("Outbound channel full, dropping message", "type", message.Type, "user_id", userID)
	}
}

// ClientCount возвращает количество подключенных клиентов (реализация port.NotificationService)
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, set := range h.clients {
		total += len(set)
	}
	return total
}
