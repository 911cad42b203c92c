// Package server assembles the HTTP surface of the dashboard backend: JSON
// endpoints, the server-sent price stream and the WebSocket price stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/server/handler"
	"github.com/alanyoungcy/polydash/internal/server/middleware"
	"github.com/alanyoungcy/polydash/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimitPerMinute is applied per client IP when a limiter is given.
	RateLimitPerMinute int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Snapshots is nil when no archive is configured.
type Handlers struct {
	Health      *handler.HealthHandler
	Status      *handler.StatusHandler
	Markets     *handler.MarketHandler
	PriceStream *handler.PriceStreamHandler
	Leaderboard *handler.LeaderboardHandler
	Users       *handler.UserHandler
	Analysis    *handler.AnalysisHandler
	Snapshots   *handler.SnapshotHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	streams    *handler.PriceStreamHandler
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on a ServeMux.
// limiter may be nil, which disables rate limiting.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	routes(mux, handlers, hub)

	// Outermost first: request id, logging, CORS, auth, rate limit.
	var h http.Handler = mux
	if limiter != nil && cfg.RateLimitPerMinute > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMinute, time.Minute, logger)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID()(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Analysis calls retry against the LLM; streaming handlers clear
		// their own deadline.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		hub:        hub,
		streams:    handlers.PriceStream,
		logger:     logger,
	}
}

func routes(mux *http.ServeMux, h Handlers, hub *ws.Hub) {
	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", h.Status.GetStatus)

	mux.HandleFunc("GET /api/markets", h.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/export", h.Markets.ExportMarkets)
	mux.HandleFunc("GET /api/markets/{slug}", h.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/ticker/{ticker}", h.Markets.TickerMarkets)
	mux.HandleFunc("GET /api/price-history", h.Markets.PriceHistory)
	mux.HandleFunc("GET /api/price-stream", h.PriceStream.Stream)

	mux.HandleFunc("GET /api/leaderboard", h.Leaderboard.Leaderboard)
	mux.HandleFunc("GET /api/leaderboard/most-active", h.Leaderboard.MostActive)

	mux.HandleFunc("GET /api/resolve-handle", h.Users.ResolveHandle)
	mux.HandleFunc("GET /api/resolve-profile", h.Users.ResolveProfile)
	mux.HandleFunc("GET /api/user-trades", h.Users.UserTrades)
	mux.HandleFunc("GET /api/user-stats", h.Users.UserStats)
	mux.HandleFunc("GET /api/user-stats/history", h.Users.StatsHistory)

	mux.HandleFunc("GET /api/analysis", h.Analysis.Analyze)

	if h.Snapshots != nil {
		mux.HandleFunc("GET /api/snapshots", h.Snapshots.List)
		mux.HandleFunc("GET /api/snapshots/latest", h.Snapshots.Latest)
	}
	if hub != nil {
		mux.HandleFunc("GET /ws/price-stream", hub.HandlePriceStream)
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline. Open price streams are
// ended first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if s.streams != nil {
		s.streams.Close()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
