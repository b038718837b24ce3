// Package server assembles the HTTP API for the auction engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/evoltmarket/auctiond/internal/domain"
	"github.com/evoltmarket/auctiond/internal/server/handler"
	"github.com/evoltmarket/auctiond/internal/server/middleware"
	"github.com/evoltmarket/auctiond/internal/server/ws"
)

// Config holds the HTTP server settings.
type Config struct {
	Port            int
	CORSOrigins     []string
	AdminAPIKey     string
	RateLimitPerMin int
}

// Handlers groups the endpoint implementations the server routes to. Hub may
// be nil when no signal bus is configured.
type Handlers struct {
	Health  *handler.Health
	Auction *handler.Auction
	Bid     *handler.Bid
	Admin   *handler.Admin
	Hub     *ws.Hub
}

// Server is the auction API HTTP server.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// New builds the routing table and middleware chain.
func New(cfg Config, h Handlers, limiter domain.RateLimiter, log *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.Get)

	mux.HandleFunc("POST /api/auctions", h.Auction.Create)
	mux.HandleFunc("GET /api/auctions", h.Auction.List)
	mux.HandleFunc("GET /api/auctions/by-asset", h.Auction.GetByAsset)
	mux.HandleFunc("GET /api/auctions/{id}", h.Auction.Get)
	mux.HandleFunc("PUT /api/auctions/{id}", h.Auction.Update)
	mux.HandleFunc("DELETE /api/auctions/{id}", h.Auction.Delete)
	mux.HandleFunc("POST /api/auctions/{id}/bid", h.Bid.Place)

	adminAuth := middleware.AdminAuth(cfg.AdminAPIKey)
	mux.Handle("POST /api/admin/auctions/review", adminAuth(http.HandlerFunc(h.Admin.Review)))
	mux.Handle("GET /api/admin/auctions/pending", adminAuth(http.HandlerFunc(h.Admin.ListPending)))
	mux.Handle("PUT /api/admin/auctions/{id}/finalize", adminAuth(http.HandlerFunc(h.Admin.Finalize)))
	mux.Handle("DELETE /api/admin/auctions/{id}", adminAuth(http.HandlerFunc(h.Admin.Delete)))
	mux.Handle("GET /api/admin/audit", adminAuth(http.HandlerFunc(h.Admin.AuditLog)))

	if h.Hub != nil {
		mux.Handle("GET /ws", h.Hub)
	}

	var root http.Handler = mux
	root = middleware.RateLimit(limiter, cfg.RateLimitPerMin, time.Minute, log)(root)
	root = middleware.CORS(cfg.CORSOrigins)(root)
	root = middleware.Logging(log)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      root,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
