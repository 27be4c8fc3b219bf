package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/ihttstats/internal/metrics"
	"github.com/HerbHall/ihttstats/internal/plugin"
	"github.com/HerbHall/ihttstats/internal/version"
	"go.uber.org/zap"
)

// Server is the main ihttstats HTTP server.
type Server struct {
	httpServer *http.Server
	registry   *plugin.Registry
	metrics    *metrics.Metrics
	logger     *zap.Logger
	mux        *http.ServeMux
}

// New creates a new Server instance. The extra middleware run inside the
// built-in request-id, logging and recovery layers.
func New(addr string, reg *plugin.Registry, m *metrics.Metrics, logger *zap.Logger, mws ...Middleware) *Server {
	mux := http.NewServeMux()

	chain := append([]Middleware{RequestID, Logger(logger), Recovery(logger)}, mws...)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      Chain(chain...)(mux),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		registry: reg,
		metrics:  m,
		logger:   logger,
		mux:      mux,
	}

	s.registerCoreRoutes()
	s.mountPluginRoutes()

	return s
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// registerCoreRoutes sets up routes that are always available.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/plugins", s.handlePlugins)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// mountPluginRoutes registers all plugin routes under /api/v1. Route paths
// carry their own resource prefix (e.g. "/views/{id}").
func (s *Server) mountPluginRoutes() {
	allRoutes := s.registry.AllRoutes()
	for pluginName, routes := range allRoutes {
		for _, route := range routes {
			pattern := fmt.Sprintf("%s /api/v1%s", route.Method, route.Path)
			s.mux.HandleFunc(pattern, route.Handler)
			s.logger.Debug("mounted route",
				zap.String("plugin", pluginName),
				zap.String("pattern", pattern),
			)
		}
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status along with the health of
// every enabled plugin that reports one.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	plugins := make(map[string]plugin.HealthStatus)
	for _, p := range s.registry.All() {
		if s.registry.IsDisabled(p.Name()) {
			continue
		}
		if hc, ok := p.(plugin.HealthChecker); ok {
			plugins[p.Name()] = hc.Health(r.Context())
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Ihttstats-Version", version.Short())
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "ihttstats",
		"version": version.Map(),
		"plugins": plugins,
	})
}

// handlePlugins returns the list of registered plugins.
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	plugins := s.registry.All()
	type pluginResponse struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Enabled bool   `json:"enabled"`
	}
	info := make([]pluginResponse, 0, len(plugins))
	for _, p := range plugins {
		info = append(info, pluginResponse{
			Name:    p.Name(),
			Version: p.Version(),
			Enabled: !s.registry.IsDisabled(p.Name()),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Ihttstats-Version", version.Short())
	json.NewEncoder(w).Encode(info)
}
