// Package http provides the HTTP bridge that exposes the xtreamer
// orchestrators as a JSON API and an event stream.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/xtreamer/internal/app"
	"github.com/jmylchreest/xtreamer/internal/config"
	"github.com/jmylchreest/xtreamer/internal/http/handlers"
	"github.com/jmylchreest/xtreamer/internal/http/middleware"
)

// EventsPath is the server-sent events endpoint.
const EventsPath = "/api/v1/events"

// Server represents the HTTP server.
type Server struct {
	config     config.ServerConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the router, registers every handler against a and
// returns a server that is not yet listening. The version is published in
// the OpenAPI document.
func NewServer(cfg config.ServerConfig, a *app.App, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID(logger))
	router.Use(middleware.NewLoggingMiddleware(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins...)))
	router.Use(middleware.SkipCompressionForSSE(chimiddleware.Compress(5), EventsPath))

	humaConfig := huma.DefaultConfig("xtreamer API", version)
	humaConfig.Info.Description = "Browse an Xtream Codes panel: live channels, movies, series and favorites"
	api := humachi.New(router, humaConfig)

	handlers.NewHealthHandler(a, version).Register(api)
	handlers.NewSessionHandler(a).Register(api)
	handlers.NewCatalogHandler(a).Register(api)
	handlers.NewFavoritesHandler(a).Register(api)
	handlers.NewDetailHandler(a).Register(api)
	events := handlers.NewEventsHandler(a)
	events.RegisterSSE(router)
	router.Handle("/metrics", promhttp.Handler())

	// A zero write timeout keeps event streams open indefinitely.
	httpServer := &http.Server{
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	// Shutdown waits for active connections, and event streams only end
	// when told to.
	httpServer.RegisterOnShutdown(events.Close)

	return &Server{
		config:     cfg,
		router:     router,
		api:        api,
		httpServer: httpServer,
		logger:     logger,
	}
}

// API returns the Huma API instance for registering operations.
func (s *Server) API() huma.API {
	return s.api
}

// Router returns the Chi router for registering additional routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", slog.String("address", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server",
		slog.Duration("timeout", s.config.ShutdownTimeout),
	)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Address(), err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		if err := s.Shutdown(context.Background()); err != nil {
			return err
		}
		return <-errChan
	case err := <-errChan:
		return err
	}
}
