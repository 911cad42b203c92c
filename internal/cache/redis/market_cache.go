package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polydash/internal/domain"
)

// MarketCache implements domain.MarketCache with JSON string values.
//
// Key schema:
//
//	polydash:markets:{listKey}  - JSON array of markets
//	polydash:market:slug:{slug} - JSON market
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketListKey(key string) string  { return keyPrefix + "markets:" + key }
func marketSlugKey(slug string) string { return keyPrefix + "market:slug:" + slug }

// SetList stores a market listing under key and indexes each market by slug,
// all with the same TTL.
func (mc *MarketCache) SetList(ctx context.Context, key string, markets []domain.Market, ttl time.Duration) error {
	data, err := json.Marshal(markets)
	if err != nil {
		return fmt.Errorf("redis: marshal market list %s: %w", key, err)
	}

	pipe := mc.rdb.TxPipeline()
	pipe.Set(ctx, marketListKey(key), data, ttl)
	for _, m := range markets {
		if m.Slug == "" {
			continue
		}
		one, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("redis: marshal market %s: %w", m.Slug, err)
		}
		pipe.Set(ctx, marketSlugKey(m.Slug), one, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market list %s: %w", key, err)
	}
	return nil
}

// GetList returns the listing stored under key, or domain.ErrNotFound.
func (mc *MarketCache) GetList(ctx context.Context, key string) ([]domain.Market, error) {
	data, err := mc.rdb.Get(ctx, marketListKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get market list %s: %w", key, err)
	}

	var markets []domain.Market
	if err := json.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("redis: unmarshal market list %s: %w", key, err)
	}
	return markets, nil
}

// Set stores one market under its slug.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market, ttl time.Duration) error {
	if market.Slug == "" {
		return fmt.Errorf("redis: set market %s: empty slug", market.ID)
	}
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.Slug, err)
	}
	if err := mc.rdb.Set(ctx, marketSlugKey(market.Slug), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.Slug, err)
	}
	return nil
}

// GetBySlug returns the market cached under slug, or domain.ErrNotFound.
func (mc *MarketCache) GetBySlug(ctx context.Context, slug string) (domain.Market, error) {
	data, err := mc.rdb.Get(ctx, marketSlugKey(slug)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", slug, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", slug, err)
	}
	return market, nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
