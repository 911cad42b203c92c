package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polydash/internal/domain"
)

// AnalysisCache implements domain.AnalysisCache. Questions are hashed so
// arbitrary text makes a bounded key.
type AnalysisCache struct {
	rdb *redis.Client
}

// NewAnalysisCache creates an AnalysisCache backed by the given Client.
func NewAnalysisCache(c *Client) *AnalysisCache {
	return &AnalysisCache{rdb: c.Underlying()}
}

// analysisKey is case- and whitespace-insensitive in the question.
func analysisKey(question string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(question), " "))
	sum := sha256.Sum256([]byte(norm))
	return keyPrefix + "analysis:" + hex.EncodeToString(sum[:])
}

// Set stores an analysis for question.
func (ac *AnalysisCache) Set(ctx context.Context, question string, a domain.StructuredAnalysis, ttl time.Duration) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("redis: marshal analysis: %w", err)
	}
	if err := ac.rdb.Set(ctx, analysisKey(question), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set analysis: %w", err)
	}
	return nil
}

// Get returns the cached analysis for question, or domain.ErrNotFound.
func (ac *AnalysisCache) Get(ctx context.Context, question string) (domain.StructuredAnalysis, error) {
	data, err := ac.rdb.Get(ctx, analysisKey(question)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.StructuredAnalysis{}, domain.ErrNotFound
		}
		return domain.StructuredAnalysis{}, fmt.Errorf("redis: get analysis: %w", err)
	}

	var a domain.StructuredAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		return domain.StructuredAnalysis{}, fmt.Errorf("redis: unmarshal analysis: %w", err)
	}
	return a, nil
}

var _ domain.AnalysisCache = (*AnalysisCache)(nil)
