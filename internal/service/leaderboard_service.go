package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/platform/polymarket"
	"github.com/alanyoungcy/polydash/internal/scrape"
)

// leaderboardFallbackSize is how many feed traders stand in for the scraped
// leaderboard.
const leaderboardFallbackSize = 20

// LeaderboardService lists notable traders.
type LeaderboardService struct {
	web    PageFetcher
	data   TradeFetcher
	logger *slog.Logger
}

// NewLeaderboardService creates a LeaderboardService.
func NewLeaderboardService(web PageFetcher, data TradeFetcher, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{web: web, data: data, logger: logger}
}

// Leaderboard scrapes handles and addresses off the public leaderboard page.
// When the page yields neither (or cannot be fetched) it ranks the global
// trades feed by volume and returns the top 20 addresses.
func (s *LeaderboardService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	html, err := s.web.LeaderboardPage(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "leaderboard_service: page fetch failed, using trade feed",
			slog.String("error", err.Error()),
		)
	}

	board := domain.Leaderboard{
		Handles:   scrape.Handles(html),
		Addresses: scrape.Addresses(html),
	}
	if len(board.Handles) > 0 || len(board.Addresses) > 0 {
		return board, nil
	}

	trades, err := s.data.Trades(ctx, polymarket.TradeQuery{})
	if err != nil {
		return domain.Leaderboard{Handles: []string{}, Addresses: []string{}}, fmt.Errorf("leaderboard_service: trade feed: %w", err)
	}
	top := domain.RankTraders(trades, leaderboardFallbackSize)
	board.Addresses = make([]string, 0, len(top))
	for _, a := range top {
		board.Addresses = append(board.Addresses, a.User)
	}
	return board, nil
}

// MostActive returns the trader with the highest volume in the global feed.
func (s *LeaderboardService) MostActive(ctx context.Context) (domain.TraderActivity, error) {
	trades, err := s.data.Trades(ctx, polymarket.TradeQuery{})
	if err != nil {
		return domain.TraderActivity{}, fmt.Errorf("leaderboard_service: trade feed: %w", err)
	}
	top := domain.RankTraders(trades, 1)
	if len(top) == 0 {
		return domain.TraderActivity{}, fmt.Errorf("leaderboard_service: most active: %w", domain.ErrNotFound)
	}
	return top[0], nil
}
