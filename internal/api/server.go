// Package api serves the operator API on the API port: health, active
// session management, FFmpeg profiles, EPG sources, and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plexbridge/plexbridge/internal/config"
	"github.com/plexbridge/plexbridge/internal/metrics"
	"github.com/plexbridge/plexbridge/internal/observability"
	"github.com/plexbridge/plexbridge/internal/version"
)

// Server is the operator API HTTP server.
type Server struct {
	cfg        config.ServerConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the API server. Handlers are registered separately via
// API().
func NewServer(cfg config.ServerConfig, m *metrics.Metrics, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)

	humaConfig := huma.DefaultConfig("plexbridge API", version.Version)
	humaConfig.Info.Description = "HDHomeRun bridge operator API"
	api := humachi.New(router, humaConfig)

	router.Method(http.MethodGet, "/api/metrics",
		promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	return &Server{
		cfg:    cfg,
		router: router,
		api:    api,
		logger: observability.WithComponent(logger, "api-server"),
	}
}

// API returns the huma API for registering operations.
func (s *Server) API() huma.API {
	return s.api
}

// Router returns the chi router, used by tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start starts the server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.cfg.APIAddress()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	s.logger.Info("starting API server", slog.String("address", addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting API server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}

	s.logger.Info("API server stopped")
	return nil
}

// ListenAndServe starts the server and shuts it down when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start()
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}
