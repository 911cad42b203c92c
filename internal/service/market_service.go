package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/platform/polymarket"
)

// DefaultMarketLimit is how many open markets are scanned for crypto ones.
const DefaultMarketLimit = 500

const (
	// tickerScanLimit is how many "Crypto" tag markets a ticker view scans.
	tickerScanLimit = 250
	// sharedFetchTimeout bounds an upstream fetch shared by concurrent callers.
	sharedFetchTimeout = 30 * time.Second
)

// tickerNames maps common tickers to the coin name used in market questions.
var tickerNames = map[string]string{
	"btc":   "Bitcoin",
	"eth":   "Ethereum",
	"sol":   "Solana",
	"matic": "Polygon",
	"ada":   "Cardano",
	"xrp":   "Ripple",
}

// TickerName returns the display name of ticker, or the upper-cased ticker
// when it is not a known coin.
func TickerName(ticker string) string {
	t := strings.ToLower(strings.TrimSpace(ticker))
	if name, ok := tickerNames[t]; ok {
		return name
	}
	return strings.ToUpper(t)
}

// MatchesTicker reports whether the question or slug of m mentions ticker or
// its coin name.
func MatchesTicker(m domain.Market, ticker string) bool {
	t := strings.ToLower(strings.TrimSpace(ticker))
	if t == "" {
		return false
	}
	text := strings.ToLower(m.Question + " " + m.Slug)
	return strings.Contains(text, t) || strings.Contains(text, strings.ToLower(TickerName(t)))
}

// TickerView is the market listing of one coin with its aggregates.
type TickerView struct {
	Ticker  string               `json:"ticker"`
	Name    string               `json:"name"`
	Markets []domain.Market      `json:"markets"`
	Summary domain.MarketSummary `json:"summary"`
}

var cryptoKeywords = []string{
	"crypto", "bitcoin", "ethereum", "btc", "eth", "solana", "sol",
	"usdc", "usdt", "meme", "token", "altcoin", "defi", "nft",
}

// IsCryptoMarket reports whether m is categorised as crypto or its question
// mentions a crypto keyword.
func IsCryptoMarket(m domain.Market) bool {
	if strings.EqualFold(m.Category, "crypto") {
		return true
	}
	q := strings.ToLower(m.Question)
	for _, kw := range cryptoKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// SortMarkets orders markets newest first by numeric id, then by slug.
func SortMarkets(markets []domain.Market) {
	sort.SliceStable(markets, func(i, j int) bool {
		a, b := numericID(markets[i].ID), numericID(markets[j].ID)
		if a != b {
			return a > b
		}
		return markets[i].Slug < markets[j].Slug
	})
}

func numericID(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

var addressSuffixRe = regexp.MustCompile(`-0x[0-9a-fA-F]+$`)

// BaseSlug strips a trailing "-0x..." discriminator from a market URL slug.
func BaseSlug(slug string) string {
	return addressSuffixRe.ReplaceAllString(slug, "")
}

// MarketService lists and looks up markets through an optional read-through
// cache. Concurrent identical fetches are collapsed into one upstream call.
type MarketService struct {
	gamma  MarketFetcher
	clob   PriceHistoryFetcher
	cache  domain.MarketCache
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewMarketService creates a MarketService. cache may be nil.
func NewMarketService(
	gamma MarketFetcher,
	clob PriceHistoryFetcher,
	cache domain.MarketCache,
	ttl time.Duration,
	logger *slog.Logger,
) *MarketService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MarketService{
		gamma:  gamma,
		clob:   clob,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// CryptoMarkets returns open crypto markets among the first limit open
// markets, sorted by SortMarkets.
func (s *MarketService) CryptoMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	if limit <= 0 {
		limit = DefaultMarketLimit
	}
	key := "crypto:" + strconv.Itoa(limit)
	return s.cachedList(ctx, key, func(ctx context.Context) ([]domain.Market, error) {
		all, err := s.gamma.Markets(ctx, polymarket.MarketQuery{Limit: limit})
		if err != nil {
			return nil, err
		}
		out := make([]domain.Market, 0, len(all))
		for _, m := range all {
			if IsCryptoMarket(m) {
				out = append(out, m)
			}
		}
		SortMarkets(out)
		return out, nil
	})
}

// MarketsByTag returns every open market under the named Gamma tag.
func (s *MarketService) MarketsByTag(ctx context.Context, tagName string) ([]domain.Market, error) {
	key := "tag:" + strings.ToLower(tagName)
	return s.cachedList(ctx, key, func(ctx context.Context) ([]domain.Market, error) {
		tagID, err := s.gamma.TagIDByName(ctx, tagName)
		if err != nil {
			return nil, err
		}
		markets, err := s.gamma.AllMarketsByTag(ctx, tagID, polymarket.DefaultPageSize)
		if err != nil {
			return nil, err
		}
		SortMarkets(markets)
		return markets, nil
	})
}

// MarketBySlug looks up one market, ignoring any "-0x..." slug suffix.
func (s *MarketService) MarketBySlug(ctx context.Context, slug string) (domain.Market, error) {
	slug = BaseSlug(slug)
	if slug == "" {
		return domain.Market{}, fmt.Errorf("market_service: %w: slug", domain.ErrMissingInput)
	}

	if s.cache != nil {
		if m, err := s.cache.GetBySlug(ctx, slug); err == nil {
			return m, nil
		}
	}

	v, err := s.shared(ctx, "slug:"+slug, func(ctx context.Context) (any, error) {
		return s.gamma.MarketBySlug(ctx, slug)
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: by slug %q: %w", slug, err)
	}
	m := v.(domain.Market)

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, m, s.ttl); cacheErr != nil {
			s.logger.WarnContext(ctx, "market_service: cache set failed",
				slog.String("slug", slug),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return m, nil
}

// TickerMarkets returns the "Crypto" tag markets that mention ticker, newest
// first. An unknown tag yields an empty view.
func (s *MarketService) TickerMarkets(ctx context.Context, ticker string) (TickerView, error) {
	t := strings.ToLower(strings.TrimSpace(ticker))
	if t == "" {
		return TickerView{}, fmt.Errorf("market_service: %w: ticker", domain.ErrMissingInput)
	}
	view := TickerView{Ticker: t, Name: TickerName(t), Markets: []domain.Market{}}

	all, err := s.cachedList(ctx, "tag:crypto:"+strconv.Itoa(tickerScanLimit), func(ctx context.Context) ([]domain.Market, error) {
		tagID, err := s.gamma.TagIDByName(ctx, "Crypto")
		if err != nil {
			return nil, err
		}
		return s.gamma.Markets(ctx, polymarket.MarketQuery{TagID: tagID, Limit: tickerScanLimit})
	})
	if errors.Is(err, domain.ErrNotFound) {
		return view, nil
	}
	if err != nil {
		return TickerView{}, err
	}

	for _, m := range all {
		if MatchesTicker(m, t) {
			view.Markets = append(view.Markets, m)
		}
	}
	SortMarkets(view.Markets)
	view.Summary = domain.Summarize(view.Markets)
	return view, nil
}

// PriceHistory returns the price series of a CLOB token.
func (s *MarketService) PriceHistory(ctx context.Context, tokenID string, interval domain.Interval) ([]domain.PricePoint, error) {
	if tokenID == "" {
		return nil, fmt.Errorf("market_service: %w: clob token id", domain.ErrMissingInput)
	}
	pts, err := s.clob.PriceHistory(ctx, tokenID, interval)
	if err != nil {
		return nil, fmt.Errorf("market_service: price history: %w", err)
	}
	return pts, nil
}

// Refresh bypasses the cache, fetches the crypto listing and stores it.
func (s *MarketService) Refresh(ctx context.Context, limit int) ([]domain.Market, error) {
	if limit <= 0 {
		limit = DefaultMarketLimit
	}
	all, err := s.gamma.Markets(ctx, polymarket.MarketQuery{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("market_service: refresh: %w", err)
	}
	out := make([]domain.Market, 0, len(all))
	for _, m := range all {
		if IsCryptoMarket(m) {
			out = append(out, m)
		}
	}
	SortMarkets(out)
	s.storeList(ctx, "crypto:"+strconv.Itoa(limit), out)
	return out, nil
}

func (s *MarketService) cachedList(
	ctx context.Context,
	key string,
	fetch func(context.Context) ([]domain.Market, error),
) ([]domain.Market, error) {
	if s.cache != nil {
		markets, err := s.cache.GetList(ctx, key)
		if err == nil {
			return markets, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "market_service: cache get failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	v, err := s.shared(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("market_service: %s: %w", key, err)
	}
	markets := v.([]domain.Market)
	s.storeList(ctx, key, markets)
	return markets, nil
}

// shared runs fn once per key for all concurrent callers. The fetch is
// detached from any single caller's cancellation; each caller still stops
// waiting when its own ctx ends.
func (s *MarketService) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}

func (s *MarketService) storeList(ctx context.Context, key string, markets []domain.Market) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetList(ctx, key, markets, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
