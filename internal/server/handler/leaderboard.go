package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polydash/internal/domain"
)

// LeaderboardService lists notable traders.
type LeaderboardService interface {
	Leaderboard(ctx context.Context) (domain.Leaderboard, error)
	MostActive(ctx context.Context) (domain.TraderActivity, error)
}

// LeaderboardHandler serves trader rankings.
type LeaderboardHandler struct {
	board  LeaderboardService
	logger *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(board LeaderboardService, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, logger: logger}
}

type leaderboardResponse struct {
	Handles   []string `json:"handles"`
	Addresses []string `json:"addresses"`
	Error     string   `json:"error,omitempty"`
}

// Leaderboard always answers 200 so the dashboard can render something; a
// failed lookup yields empty lists and error "leaderboard_fetch_failed".
// GET /api/leaderboard
func (h *LeaderboardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.board.Leaderboard(r.Context())
	resp := leaderboardResponse{
		Handles:   board.Handles,
		Addresses: board.Addresses,
	}
	if resp.Handles == nil {
		resp.Handles = []string{}
	}
	if resp.Addresses == nil {
		resp.Addresses = []string{}
	}
	if err != nil {
		requestLogger(h.logger, r, "leaderboard").WarnContext(r.Context(), "handler: leaderboard failed",
			slog.String("error", err.Error()),
		)
		resp.Error = "leaderboard_fetch_failed"
	}
	writeJSON(w, http.StatusOK, resp)
}

// MostActive returns the trader with the highest volume in the global feed.
// GET /api/leaderboard/most-active
func (h *LeaderboardHandler) MostActive(w http.ResponseWriter, r *http.Request) {
	top, err := h.board.MostActive(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, top)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no_activity")
	default:
		requestLogger(h.logger, r, "most_active").WarnContext(r.Context(), "handler: most active failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "most_active_failed")
	}
}
