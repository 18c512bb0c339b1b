package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/0xvega/fillfeed/api/websocket"
)

// Config holds listener server configuration.
type Config struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	WebSocketPath string
	Version       string
}

// Address returns the host:port the server binds to.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the server configuration.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.WebSocketPath == "" {
		return fmt.Errorf("websocket path is required")
	}
	return nil
}

// Server is the HTTP server live listeners connect to.
type Server struct {
	config   *Config
	logger   *zap.Logger
	router   *chi.Mux
	server   *http.Server
	wsServer *websocket.Server
}

// NewServer creates the listener server. The websocket endpoint has no
// read/write timeouts applied beyond the pump deadlines.
func NewServer(config *Config, logger *zap.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		config:   config,
		logger:   logger,
		router:   chi.NewRouter(),
		wsServer: websocket.NewServer(logger),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get(config.WebSocketPath, s.wsServer.ServeHTTP)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/version", s.handleVersion)

	s.server = &http.Server{
		Addr:         config.Address(),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s, nil
}

// Start runs the server until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("listener server starting",
		zap.String("address", s.config.Address()),
		zap.String("websocket_path", s.config.WebSocketPath),
	)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listener server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully and closes all listener
// connections.
func (s *Server) Stop(ctx context.Context) error {
	s.wsServer.Stop()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("listener server shutdown: %w", err)
	}
	s.logger.Info("listener server stopped")
	return nil
}

// Hub returns the websocket hub for broadcasting events.
func (s *Server) Hub() *websocket.Hub {
	return s.wsServer.Hub()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"version": s.config.Version})
}
