package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub maintains the set of active listeners and broadcasts events to them.
// There is no subscription handshake: every connected listener receives
// every event.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Broadcast frames to clients
	broadcast chan []byte

	logger *zap.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		logger:     logger,
	}
}

// Run runs the hub loop. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("listener connected",
				zap.String("client_id", client.id),
				zap.Int("total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("listener disconnected",
				zap.String("client_id", client.id),
				zap.Int("total_clients", total))

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Broadcast queues one event for delivery to all connected listeners.
// Never blocks: if the hub buffer is full the event is dropped with a
// warning.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	payload, err := json.Marshal(Message{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast channel full, dropping event",
			zap.String("type", eventType))
	}
}

// broadcastMessage sends a frame to every listener. A listener with a full
// send buffer is disconnected rather than stalling the rest.
func (h *Hub) broadcastMessage(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for client := range h.clients {
		select {
		case client.send <- message:
			sent++
		default:
			h.logger.Warn("listener buffer full, closing connection",
				zap.String("client_id", client.id))
			close(client.send)
			delete(h.clients, client)
		}
	}

	h.logger.Debug("event broadcasted", zap.Int("recipients", sent))
}

// ClientCount returns the number of connected listeners.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes all listener connections.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}

	h.logger.Info("hub stopped")
}
