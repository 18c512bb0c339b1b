package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsServer serves the Prometheus scrape endpoint. It binds its own
// port, independent of the listener server.
type MetricsServer struct {
	logger *zap.Logger
	server *http.Server
}

// NewMetricsServer creates the scrape server. The default registry is
// exposed, so process and Go runtime collectors come along with the
// pipeline metrics.
func NewMetricsServer(host string, port int, logger *zap.Logger) *MetricsServer {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		logger: logger,
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", host, port),
			Handler: router,
		},
	}
}

// Start runs the server until Stop is called.
func (s *MetricsServer) Start() error {
	s.logger.Info("metrics server starting", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *MetricsServer) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	s.logger.Info("metrics server stopped")
	return nil
}
