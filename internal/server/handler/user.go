package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/platform/polymarket"
	"github.com/alanyoungcy/polydash/internal/service"
)

// Resolver maps handles and addresses onto each other.
type Resolver interface {
	ResolveAddress(ctx context.Context, handle, address string) (string, error)
	ResolveHandle(ctx context.Context, address string) (string, error)
}

// TradeService returns a user's trades.
type TradeService interface {
	UserTrades(ctx context.Context, address string, limit int) (service.UserTrades, error)
}

// StatsService returns profile figures and their recorded history.
type StatsService interface {
	UserStats(ctx context.Context, address string) (domain.ProfileStats, error)
	History(ctx context.Context, address string, limit int) ([]domain.StatsSnapshot, error)
}

// UserHandler serves identity resolution and per-user trading figures.
type UserHandler struct {
	resolver Resolver
	trades   TradeService
	stats    StatsService
	logger   *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(resolver Resolver, trades TradeService, stats StatsService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		resolver: resolver,
		trades:   trades,
		stats:    stats,
		logger:   logger,
	}
}

// ResolveHandle maps an address to its @handle.
// GET /api/resolve-handle?address=0x...
func (h *UserHandler) ResolveHandle(w http.ResponseWriter, r *http.Request) {
	address := queryString(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing_address")
		return
	}

	handle, err := h.resolver.ResolveHandle(r.Context(), address)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"handle": handle})
	case errors.Is(err, domain.ErrInvalidAddress):
		// Malformed addresses share the missing-address code clients already check.
		writeError(w, http.StatusBadRequest, "missing_address")
	case errors.Is(err, domain.ErrHandleNotFound):
		writeError(w, http.StatusNotFound, "handle_not_found")
	default:
		requestLogger(h.logger, r, "resolve_handle").ErrorContext(r.Context(), "handler: resolve handle failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "resolve_failed")
	}
}

// ResolveProfile maps a @handle to its wallet address.
// GET /api/resolve-profile?handle=name
func (h *UserHandler) ResolveProfile(w http.ResponseWriter, r *http.Request) {
	handle := domain.NormalizeHandle(queryString(r, "handle"))
	if handle == "" {
		writeError(w, http.StatusBadRequest, "missing_handle")
		return
	}

	address, err := h.resolver.ResolveAddress(r.Context(), handle, "")
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"address": address})
	case errors.Is(err, domain.ErrAddressNotFound):
		writeError(w, http.StatusNotFound, "address_not_found")
	default:
		requestLogger(h.logger, r, "resolve_profile").ErrorContext(r.Context(), "handler: resolve profile failed",
			slog.String("handle", handle),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "resolve_failed")
	}
}

type userTradesResponse struct {
	Address string           `json:"address"`
	Stats   domain.UserStats `json:"stats"`
	Trades  []domain.Trade   `json:"trades"`
	Source  string           `json:"source,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// UserTrades returns the trades and aggregate stats of a handle or address.
// A failing global feed is reported with its upstream status; any other
// failure degrades to an empty 200 payload.
// GET /api/user-trades?handle=name&limit=100
func (h *UserHandler) UserTrades(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	address, ok := h.address(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", service.DefaultTradeLimit)

	res, err := h.trades.UserTrades(r.Context(), address, limit)
	if err != nil {
		requestLogger(h.logger, r, "user_trades").WarnContext(r.Context(), "handler: user trades failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		if code := polymarket.StatusCode(err); code >= http.StatusBadRequest {
			writeError(w, code, "trades_failed")
			return
		}
		writeJSON(w, http.StatusOK, userTradesResponse{
			Address: address,
			Trades:  []domain.Trade{},
			Error:   "user_trades_failed",
		})
		return
	}

	trades := res.Trades
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, userTradesResponse{
		Address: res.Address,
		Stats:   res.Stats,
		Trades:  trades,
		Source:  res.Source,
	})
}

type userStatsResponse struct {
	Address string              `json:"address"`
	Stats   domain.ProfileStats `json:"stats"`
	Error   string              `json:"error,omitempty"`
}

// UserStats returns profile P&L and trade count.
// GET /api/user-stats?address=0x...
func (h *UserHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	address, ok := h.address(w, r)
	if !ok {
		return
	}

	stats, err := h.stats.UserStats(r.Context(), address)
	if err != nil {
		requestLogger(h.logger, r, "user_stats").WarnContext(r.Context(), "handler: user stats failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusOK, userStatsResponse{Address: address, Error: "stats_failed"})
		return
	}
	writeJSON(w, http.StatusOK, userStatsResponse{Address: address, Stats: stats})
}

// StatsHistory lists recorded stats observations, newest first.
// GET /api/user-stats/history?address=0x...&limit=100
func (h *UserHandler) StatsHistory(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	address, ok := h.address(w, r)
	if !ok {
		return
	}

	snaps, err := h.stats.History(r.Context(), address, queryInt(r, "limit", 100))
	switch {
	case err == nil:
		if snaps == nil {
			snaps = []domain.StatsSnapshot{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"address":   address,
			"snapshots": snaps,
		})
	case errors.Is(err, domain.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, "history_disabled")
	default:
		requestLogger(h.logger, r, "stats_history").ErrorContext(r.Context(), "handler: stats history failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "history_failed")
	}
}

// address resolves the handle/address query pair, answering 400
// address_missing itself when that is impossible.
func (h *UserHandler) address(w http.ResponseWriter, r *http.Request) (string, bool) {
	address, err := h.resolver.ResolveAddress(r.Context(), queryString(r, "handle"), queryString(r, "address"))
	if err != nil {
		if !errors.Is(err, domain.ErrMissingInput) {
			requestLogger(h.logger, r, "resolve_address").InfoContext(r.Context(), "handler: address unresolved",
				slog.String("error", err.Error()),
			)
		}
		writeError(w, http.StatusBadRequest, "address_missing")
		return "", false
	}
	return address, true
}
