package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Listeners connect from anywhere; the feed carries public data.
		return true
	},
}

// Server accepts listener connections and hands them to the hub.
type Server struct {
	hub    *Hub
	logger *zap.Logger
}

// NewServer creates a websocket server with a running hub.
func NewServer(logger *zap.Logger) *Server {
	hub := NewHub(logger)
	go hub.Run()

	return &Server{
		hub:    hub,
		logger: logger,
	}
}

// ServeHTTP upgrades a listener connection. No handshake payload is
// expected.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	client := NewClient(s.hub, conn, s.logger)
	s.hub.register <- client

	go client.WritePump()
	go client.ReadPump()

	s.logger.Info("new websocket connection",
		zap.String("client_id", client.id),
		zap.String("remote_addr", r.RemoteAddr))
}

// Hub returns the underlying hub for broadcasting events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Stop closes all listener connections.
func (s *Server) Stop() {
	s.hub.Stop()
}
