package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/mailmerge/internal/config"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, handlers *Handlers) *Server {
	return &Server{
		config:  cfg,
		handler: SetupRoutes(handlers, cfg.AllowedOrigins),
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Campaign sends run inside the request, so the write timeout is long.
		ReadTimeout:       2 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      time.Hour,
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
