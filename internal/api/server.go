package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ignite/payout-sync/internal/config"
)

// Server represents the API server
type Server struct {
	config   config.ServerConfig
	handlers *Handlers
	server   *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, eng Syncer, webhook *WebhookSink) *Server {
	return &Server{
		config:   cfg,
		handlers: NewHandlers(eng, webhook),
	}
}

// ListenAndServe starts the HTTP server and blocks until it stops
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.config.GetHost(), s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      SetupRoutes(s.handlers),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // manual syncs can take a while
	}

	log.Printf("[API] Listening on %s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
