package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/platform/polymarket"
	"github.com/alanyoungcy/polydash/internal/scrape"
)

const statsFeedLimit = 1000

// StatsService reports the headline P&L and trade count of a profile and
// optionally records each observation.
type StatsService struct {
	web       PageFetcher
	data      TradeFetcher
	snapshots domain.StatsSnapshotStore
	logger    *slog.Logger
}

// NewStatsService creates a StatsService. snapshots may be nil.
func NewStatsService(web PageFetcher, data TradeFetcher, snapshots domain.StatsSnapshotStore, logger *slog.Logger) *StatsService {
	return &StatsService{web: web, data: data, snapshots: snapshots, logger: logger}
}

// UserStats reads P&L and trade count from the profile page's embedded state.
// When no trade count is found there it counts the user's records in the
// trades feed (up to 1000), then tries the visible page text.
func (s *StatsService) UserStats(ctx context.Context, address string) (domain.ProfileStats, error) {
	html, err := s.web.ProfilePage(ctx, address)
	if err != nil {
		return domain.ProfileStats{}, fmt.Errorf("stats_service: profile page: %w", err)
	}

	var stats domain.ProfileStats
	source := "profile"
	if data := scrape.NextData(html); data != nil {
		if p, ok := scrape.FindNumber(data, pnlKeys); ok {
			stats.PnL = p
		}
		if n, ok := scrape.FindInt(data, tradeKeys); ok {
			stats.TradeCount = int(n)
		}
	}

	if stats.TradeCount == 0 {
		trades, err := s.data.Trades(ctx, polymarket.TradeQuery{User: address, Limit: statsFeedLimit})
		if err != nil {
			s.logger.WarnContext(ctx, "stats_service: trade feed count failed",
				slog.String("address", address),
				slog.String("error", err.Error()),
			)
		} else if len(trades) > 0 {
			stats.TradeCount = len(trades)
			source = "trade_feed"
		}
	}
	if stats.TradeCount == 0 {
		if n, ok := scrape.TradeCountText(html); ok {
			stats.TradeCount = n
		}
	}

	s.record(ctx, address, stats, source)
	return stats, nil
}

// History returns the most recent recorded observations for address.
func (s *StatsService) History(ctx context.Context, address string, limit int) ([]domain.StatsSnapshot, error) {
	if s.snapshots == nil {
		return nil, fmt.Errorf("stats_service: history: %w", domain.ErrDisabled)
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	snaps, err := s.snapshots.ListByAddress(ctx, address, limit)
	if err != nil {
		return nil, fmt.Errorf("stats_service: history: %w", err)
	}
	return snaps, nil
}

func (s *StatsService) record(ctx context.Context, address string, stats domain.ProfileStats, source string) {
	if s.snapshots == nil {
		return
	}
	snap := domain.StatsSnapshot{
		Address:    address,
		Stats:      stats,
		Source:     source,
		CapturedAt: time.Now().UTC(),
	}
	if err := s.snapshots.Insert(ctx, snap); err != nil {
		// Non-fatal: the live figures were still served.
		s.logger.WarnContext(ctx, "stats_service: snapshot insert failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
	}
}
