package realtime

import (
	"context"
	"sync"

	"gravity/pkg/logger"
	"gravity/pkg/metrics"
)

// Message - кадр realtime события: имя события плюс полезная нагрузка
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub - единственный на процесс широковещательный узел.
// Создается в main при старте и внедряется в обработчики и сервисы
// как зависимость; рассылает события всем подключённым клиентам
// без гарантий доставки и без повтора пропущенного
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Run обрабатывает подключения, отключения и рассылку до отмены контекста.
// При завершении закрывает всех клиентов
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			close(h.done)
			logger.Info().Msg("Realtime hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(total))
			logger.Info().Int("total_clients", total).Msg("Realtime client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(total))
			logger.Info().Int("total_clients", total).Msg("Realtime client disconnected")

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// Emit ставит событие в очередь рассылки, не блокируя вызывающего.
// При переполненном буфере событие отбрасывается: REST всегда остается
// источником правды, клиент дочитает состояние повторным запросом
func (h *Hub) Emit(event string, payload interface{}) {
	message := Message{
		Type: event,
		Data: payload,
	}

	select {
	case h.broadcast <- message:
		metrics.RecordBroadcast(event)
	default:
		metrics.RecordDroppedMessage(event)
		logger.Warn().Str("event", event).Msg("Broadcast channel full, dropping event")
	}
}

// registerClient ставит клиента на регистрацию.
// Возвращает false, если хаб уже остановлен
func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// unregisterClient снимает клиента с регистрации. После остановки хаба
// возвращается сразу - получателя у канала больше нет
func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount возвращает количество подключённых клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Медленных клиентов (полный send-буфер) отключаем, чтобы
	// не задерживать рассылку остальным
	var toRemove []*Client

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		logger.Warn().Msg("Dropping slow realtime client")
	}

	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}

	metrics.WebsocketClients.Set(0)
}
