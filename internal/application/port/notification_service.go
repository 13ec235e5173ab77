package port

import "github.com/dreschagin/plugin-performance-monitor/internal/application/dto"

// NotificationService определяет интерфейс для push-уведомлений дашбордов (Port)
// Реализация будет в Infrastructure слое (WebSocket Hub)
type NotificationService interface {
	// NotifyAlert отправляет новый алерт подключенным клиентам пользователя
	NotifyAlert(userID string, alert *dto.AlertDTO)

	// NotifyIngest сообщает клиентам пользователя о новых замерах
	NotifyIngest(userID string, summary *dto.IngestResultDTO)

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}
