package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/platform/polymarket"
	"github.com/alanyoungcy/polydash/internal/scrape"
)

const (
	// DefaultTradeLimit applies when the caller gives no usable limit.
	DefaultTradeLimit = 100
	maxTradeLimit     = 5000
	maxUserPages      = 5
	minPageSize       = 100
	maxPageSize       = 1000
)

// Trade sources, in fallback order.
const (
	TradeSourceUser    = "user_feed"
	TradeSourceGlobal  = "global_feed"
	TradeSourceProfile = "profile_page"
	TradeSourceNone    = "none"
)

// UserTrades is the trades and aggregate stats of one address.
type UserTrades struct {
	Address string           `json:"address"`
	Stats   domain.UserStats `json:"stats"`
	Trades  []domain.Trade   `json:"trades"`
	Source  string           `json:"source"`
}

// TradeService collects a user's trades with a fixed fallback chain.
type TradeService struct {
	data   TradeFetcher
	web    PageFetcher
	logger *slog.Logger
}

// NewTradeService creates a TradeService.
func NewTradeService(data TradeFetcher, web PageFetcher, logger *slog.Logger) *TradeService {
	return &TradeService{data: data, web: web, logger: logger}
}

// UserTrades gathers up to limit trades for address:
//
//  1. the user-filtered feed, paged (at most 5 pages), stopping at the first
//     failed or empty page or once limit records are held;
//  2. the unfiltered global feed filtered by address;
//  3. the displayed trade count scraped from the profile page (no records).
//
// A failure of step 2 is returned; failures of steps 1 and 3 are logged and
// skipped.
func (s *TradeService) UserTrades(ctx context.Context, address string, limit int) (UserTrades, error) {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}
	out := UserTrades{Address: address, Trades: []domain.Trade{}, Source: TradeSourceNone}

	collected := s.userFeed(ctx, address, limit)
	if len(collected) > 0 {
		out.Source = TradeSourceUser
	}

	if len(collected) == 0 {
		all, err := s.data.Trades(ctx, polymarket.TradeQuery{})
		if err != nil {
			return out, fmt.Errorf("trade_service: global feed: %w", err)
		}
		collected = domain.FilterByUser(all, address)
		if len(collected) > 0 {
			out.Source = TradeSourceGlobal
		}
	}

	if len(collected) == 0 {
		if n, ok := s.profileTradeCount(ctx, address); ok {
			out.Stats.TradeCount = n
			out.Source = TradeSourceProfile
		}
		return out, nil
	}

	capN := min(limit, maxTradeLimit)
	if capN < 1 {
		capN = 1
	}
	if len(collected) > capN {
		collected = collected[:capN]
	}
	out.Trades = collected
	out.Stats = domain.Aggregate(collected)
	return out, nil
}

func (s *TradeService) userFeed(ctx context.Context, address string, limit int) []domain.Trade {
	pageSize := min(maxPageSize, max(minPageSize, limit))

	var collected []domain.Trade
	offset := 0
	for i := 0; i < maxUserPages; i++ {
		page, err := s.data.Trades(ctx, polymarket.TradeQuery{User: address, Limit: pageSize, Offset: offset})
		if err != nil {
			s.logger.WarnContext(ctx, "trade_service: user feed page failed",
				slog.String("address", address),
				slog.Int("offset", offset),
				slog.String("error", err.Error()),
			)
			break
		}
		if len(page) == 0 {
			break
		}
		collected = append(collected, page...)
		if len(collected) >= limit {
			break
		}
		offset += len(page)
	}
	return collected
}

// profileTradeCount reads the trade count shown on the profile page, first
// from the embedded page state and then from visible text.
func (s *TradeService) profileTradeCount(ctx context.Context, address string) (int, bool) {
	if s.web == nil {
		return 0, false
	}
	html, err := s.web.ProfilePage(ctx, address)
	if err != nil {
		s.logger.WarnContext(ctx, "trade_service: profile page failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return 0, false
	}
	return profileTradeCount(html)
}

var (
	pnlKeys   = []string{"pnl", "profit", "profitloss", "profit_loss"}
	tradeKeys = []string{"trade", "trades", "tradecount"}
)

func profileTradeCount(html string) (int, bool) {
	if data := scrape.NextData(html); data != nil {
		if n, ok := scrape.FindInt(data, tradeKeys); ok && n > 0 {
			return int(n), true
		}
	}
	return scrape.TradeCountText(html)
}
