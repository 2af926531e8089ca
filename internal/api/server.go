package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/feed-aggregator/internal/config"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps RouteDeps) *Server {
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = cfg.AllowedOrigins
	}
	return &Server{
		config:  cfg,
		handler: SetupRoutes(deps),
	}
}

// Addr returns the listen address from the server config.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.GetHost(), s.config.Port)
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
