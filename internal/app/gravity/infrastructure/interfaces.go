package infrastructure

import "context"

// MessagePublisher интерфейс для отправки сообщений в очередь (Kafka)
// Используется для dependency injection и упрощения тестирования
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}

// EventBroadcaster интерфейс realtime-рассылки подключённым клиентам.
// Emit не блокирует вызывающего, не повторяет и не хранит пропущенные
// события - доставка best-effort, сбой не должен ронять операцию записи
type EventBroadcaster interface {
	Emit(event string, payload interface{})
}
