// Package server exposes the facility ledger over HTTP: the pledge and
// paydown lifecycle operations plus the read-only query surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/strandfi/facilityd/internal/server/handler"
	"github.com/strandfi/facilityd/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Pledges  *handler.PledgeHandler
	Paydowns *handler.PaydownHandler
	Facility *handler.FacilityHandler
}

// Server is the HTTP API server for the facility ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (logging, CORS, auth) wired up.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Pledge lifecycle.
	mux.HandleFunc("POST /api/pledges", handlers.Pledges.Propose)
	mux.HandleFunc("POST /api/pledges/{id}/accept", handlers.Pledges.Accept)
	mux.HandleFunc("POST /api/pledges/{id}/cancel", handlers.Pledges.Cancel)
	mux.HandleFunc("POST /api/pledges/{id}/execute", handlers.Pledges.Execute)

	// Paydown lifecycle.
	mux.HandleFunc("POST /api/paydowns", handlers.Paydowns.Propose)
	mux.HandleFunc("POST /api/paydowns/{id}/accept", handlers.Paydowns.Accept)
	mux.HandleFunc("POST /api/paydowns/{id}/cancel", handlers.Paydowns.Cancel)
	mux.HandleFunc("POST /api/paydowns/{id}/execute", handlers.Paydowns.Execute)

	// Query surface.
	mux.HandleFunc("GET /api/facility", handlers.Facility.GetFacility)
	mux.HandleFunc("GET /api/pledges", handlers.Facility.ListPledges)
	mux.HandleFunc("GET /api/pledges/{id}", handlers.Facility.GetPledge)
	mux.HandleFunc("GET /api/paydowns", handlers.Facility.ListPaydowns)
	mux.HandleFunc("GET /api/paydowns/{id}", handlers.Facility.GetPaydown)
	mux.HandleFunc("GET /api/assets", handlers.Facility.ListAssets)
	mux.HandleFunc("GET /api/inventory", handlers.Facility.ListInventory)

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
