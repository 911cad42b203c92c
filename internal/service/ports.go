package service

import (
	"context"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/platform/openrouter"
	"github.com/alanyoungcy/polydash/internal/platform/polymarket"
)

// PageFetcher returns server-rendered polymarket.com pages.
type PageFetcher interface {
	HandlePage(ctx context.Context, handle string) (string, error)
	ProfilePage(ctx context.Context, address string) (string, error)
	LeaderboardPage(ctx context.Context) (string, error)
}

// TradeFetcher reads the public trades feed.
type TradeFetcher interface {
	Trades(ctx context.Context, q polymarket.TradeQuery) ([]domain.Trade, error)
}

// MarketFetcher reads Gamma market metadata.
type MarketFetcher interface {
	Markets(ctx context.Context, q polymarket.MarketQuery) ([]domain.Market, error)
	MarketBySlug(ctx context.Context, slug string) (domain.Market, error)
	TagIDByName(ctx context.Context, name string) (string, error)
	AllMarketsByTag(ctx context.Context, tagID string, pageSize int) ([]domain.Market, error)
}

// PriceHistoryFetcher reads CLOB price history.
type PriceHistoryFetcher interface {
	PriceHistory(ctx context.Context, tokenID string, interval domain.Interval) ([]domain.PricePoint, error)
}

// Completer is an LLM chat-completion backend.
type Completer interface {
	Complete(ctx context.Context, messages []openrouter.Message, format *openrouter.ResponseFormat) (openrouter.Completion, error)
	Model() string
}

var (
	_ PageFetcher         = (*polymarket.WebClient)(nil)
	_ TradeFetcher        = (*polymarket.DataClient)(nil)
	_ MarketFetcher       = (*polymarket.GammaClient)(nil)
	_ PriceHistoryFetcher = (*polymarket.ClobClient)(nil)
	_ Completer           = (*openrouter.Client)(nil)
)
