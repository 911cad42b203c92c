package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/platform/openrouter"
	"github.com/alanyoungcy/polydash/internal/platform/polymarket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
	addrC = "0x3333333333333333333333333333333333333333"
)

// fakeWeb serves canned pages keyed by "handle:<h>", "profile:<addr>" and
// "leaderboard". Missing keys return a wrapped domain.ErrNotFound.
type fakeWeb struct {
	pages map[string]string
	err   error
}

func (f *fakeWeb) page(key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	html, ok := f.pages[key]
	if !ok {
		return "", fmt.Errorf("fake web %s: %w", key, domain.ErrNotFound)
	}
	return html, nil
}

func (f *fakeWeb) HandlePage(_ context.Context, handle string) (string, error) {
	return f.page("handle:" + handle)
}

func (f *fakeWeb) ProfilePage(_ context.Context, address string) (string, error) {
	return f.page("profile:" + address)
}

func (f *fakeWeb) LeaderboardPage(context.Context) (string, error) {
	return f.page("leaderboard")
}

// fakeData answers trade queries through fn and records every query.
type fakeData struct {
	mu    sync.Mutex
	fn    func(q polymarket.TradeQuery) ([]domain.Trade, error)
	calls []polymarket.TradeQuery
}

func (f *fakeData) Trades(_ context.Context, q polymarket.TradeQuery) ([]domain.Trade, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	f.mu.Unlock()
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(q)
}

func (f *fakeData) queries() []polymarket.TradeQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]polymarket.TradeQuery(nil), f.calls...)
}

type fakeGamma struct {
	markets []domain.Market
	bySlug  map[string]domain.Market
	tagID   string
	err     error
	delay   time.Duration
	// gate, when set, holds Markets until it is closed or ctx ends.
	gate  chan struct{}
	calls atomic.Int32

	mu    sync.Mutex
	lastQ polymarket.MarketQuery
}

func (f *fakeGamma) Markets(ctx context.Context, q polymarket.MarketQuery) ([]domain.Market, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.lastQ = q
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Market(nil), f.markets...), nil
}

func (f *fakeGamma) MarketBySlug(_ context.Context, slug string) (domain.Market, error) {
	f.calls.Add(1)
	if f.err != nil {
		return domain.Market{}, f.err
	}
	m, ok := f.bySlug[slug]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeGamma) TagIDByName(_ context.Context, name string) (string, error) {
	if f.tagID == "" {
		return "", domain.ErrNotFound
	}
	return f.tagID, nil
}

func (f *fakeGamma) AllMarketsByTag(_ context.Context, tagID string, _ int) ([]domain.Market, error) {
	f.calls.Add(1)
	if tagID != f.tagID {
		return nil, domain.ErrNotFound
	}
	return append([]domain.Market(nil), f.markets...), nil
}

// fakeClob returns successive responses; the last one repeats.
type fakeClob struct {
	mu        sync.Mutex
	responses []clobResponse
	calls     int
}

type clobResponse struct {
	points []domain.PricePoint
	err    error
}

func (f *fakeClob) PriceHistory(context.Context, string, domain.Interval) ([]domain.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := min(f.calls, len(f.responses)-1)
	f.calls++
	r := f.responses[i]
	return r.points, r.err
}

// fakeLLM replies in order; structured, event and plain calls are queued apart.
type fakeLLM struct {
	mu         sync.Mutex
	structured []llmReply
	event      []llmReply
	plain      []llmReply
	formats    []*openrouter.ResponseFormat
}

type llmReply struct {
	content string
	err     error
}

func (f *fakeLLM) Complete(_ context.Context, _ []openrouter.Message, format *openrouter.ResponseFormat) (openrouter.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.formats = append(f.formats, format)
	queue := &f.plain
	switch {
	case format != nil && format.JSONSchema != nil && format.JSONSchema.Name == "event_analysis":
		queue = &f.event
	case format != nil:
		queue = &f.structured
	}
	if len(*queue) == 0 {
		return openrouter.Completion{}, &openrouter.Error{Code: openrouter.CodeEmptyResponse, Err: fmt.Errorf("no reply queued")}
	}
	r := (*queue)[0]
	*queue = (*queue)[1:]
	if r.err != nil {
		return openrouter.Completion{}, r.err
	}
	return openrouter.Completion{Content: r.content, Model: "test-model", Attempts: 1}, nil
}

func (f *fakeLLM) Model() string { return "test-model" }

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.formats)
}

type memMarketCache struct {
	mu     sync.Mutex
	lists  map[string][]domain.Market
	bySlug map[string]domain.Market
}

func newMemMarketCache() *memMarketCache {
	return &memMarketCache{lists: map[string][]domain.Market{}, bySlug: map[string]domain.Market{}}
}

func (c *memMarketCache) SetList(_ context.Context, key string, markets []domain.Market, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[key] = markets
	return nil
}

func (c *memMarketCache) GetList(_ context.Context, key string) ([]domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.lists[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (c *memMarketCache) Set(_ context.Context, m domain.Market, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySlug[m.Slug] = m
	return nil
}

func (c *memMarketCache) GetBySlug(_ context.Context, slug string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.bySlug[slug]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

type memAnalysisCache struct {
	mu    sync.Mutex
	items map[string]domain.StructuredAnalysis
}

func (c *memAnalysisCache) Set(_ context.Context, q string, a domain.StructuredAnalysis, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = map[string]domain.StructuredAnalysis{}
	}
	c.items[q] = a
	return nil
}

func (c *memAnalysisCache) Get(_ context.Context, q string) (domain.StructuredAnalysis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.items[q]
	if !ok {
		return domain.StructuredAnalysis{}, domain.ErrNotFound
	}
	return a, nil
}

type memAnalysisStore struct {
	mu      sync.Mutex
	records []domain.AnalysisRecord
}

func (s *memAnalysisStore) Save(_ context.Context, rec domain.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memAnalysisStore) Latest(_ context.Context, q string) (domain.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Question == q {
			return s.records[i], nil
		}
	}
	return domain.AnalysisRecord{}, domain.ErrNotFound
}

type memSnapshotStore struct {
	mu    sync.Mutex
	snaps []domain.StatsSnapshot
	err   error
}

func (s *memSnapshotStore) Insert(_ context.Context, snap domain.StatsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	snap.ID = int64(len(s.snaps) + 1)
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *memSnapshotStore) ListByAddress(_ context.Context, address string, limit int) ([]domain.StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StatsSnapshot
	for i := len(s.snaps) - 1; i >= 0 && len(out) < limit; i-- {
		if s.snaps[i].Address == address {
			out = append(out, s.snaps[i])
		}
	}
	return out, nil
}
