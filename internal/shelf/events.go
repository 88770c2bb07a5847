package shelf

import "github.com/dropshelf/dropshelf/internal/domain/model"

// EventType — тип изменения содержимого полки.
type EventType string

const (
	// EventAdded — запись добавлена
	EventAdded EventType = "added"
	// EventRemoved — запись удалена явно
	EventRemoved EventType = "removed"
	// EventEvicted — запись вытеснена (квота, возраст, пропавшие байты)
	EventEvicted EventType = "evicted"
	// EventConverted — конвертация записи завершилась успешно
	EventConverted EventType = "converted"
)

// Event — уведомление об изменении содержимого полки.
// Наблюдатели вызываются после фиксации изменения, вне блокировки полки.
type Event struct {
	Type   EventType
	Record model.FileRecord
}

// Observer — подписчик на изменения полки. Вызывается синхронно,
// долгие обработчики должны уходить в свою горутину.
type Observer func(Event)
