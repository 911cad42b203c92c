package domain

import (
	"context"
	"time"
)

// MarketCache holds normalized market listings and single markets.
type MarketCache interface {
	SetList(ctx context.Context, key string, markets []Market, ttl time.Duration) error
	GetList(ctx context.Context, key string) ([]Market, error)
	Set(ctx context.Context, market Market, ttl time.Duration) error
	GetBySlug(ctx context.Context, slug string) (Market, error)
}

// AnalysisCache holds finished analyses keyed by question.
type AnalysisCache interface {
	Set(ctx context.Context, question string, a StructuredAnalysis, ttl time.Duration) error
	Get(ctx context.Context, question string) (StructuredAnalysis, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
