package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/service"
)

const testAddr = "0x1111111111111111111111111111111111111111"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	decodeBody(t, rec, &body)
	s, _ := body["error"].(string)
	return s
}

type fakeMarkets struct {
	markets   []domain.Market
	bySlug    map[string]domain.Market
	points    []domain.PricePoint
	err       error
	lastLimit int
	lastTag   string
}

func (f *fakeMarkets) CryptoMarkets(_ context.Context, limit int) ([]domain.Market, error) {
	f.lastLimit = limit
	return f.markets, f.err
}

func (f *fakeMarkets) MarketsByTag(_ context.Context, tag string) ([]domain.Market, error) {
	f.lastTag = tag
	return f.markets, f.err
}

func (f *fakeMarkets) MarketBySlug(_ context.Context, slug string) (domain.Market, error) {
	if f.err != nil {
		return domain.Market{}, f.err
	}
	m, ok := f.bySlug[slug]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarkets) TickerMarkets(_ context.Context, ticker string) (service.TickerView, error) {
	if f.err != nil {
		return service.TickerView{}, f.err
	}
	if ticker == "" {
		return service.TickerView{}, domain.ErrMissingInput
	}
	return service.TickerView{
		Ticker:  ticker,
		Name:    service.TickerName(ticker),
		Markets: f.markets,
		Summary: domain.Summarize(f.markets),
	}, nil
}

func (f *fakeMarkets) PriceHistory(context.Context, string, domain.Interval) ([]domain.PricePoint, error) {
	return f.points, f.err
}

type fakeStreamer struct {
	events []service.StreamEvent
}

func (f *fakeStreamer) Stream(context.Context, string, domain.Interval) <-chan service.StreamEvent {
	out := make(chan service.StreamEvent, len(f.events))
	for _, ev := range f.events {
		out <- ev
	}
	close(out)
	return out
}

type fakeBoard struct {
	board domain.Leaderboard
	top   domain.TraderActivity
	err   error
}

func (f *fakeBoard) Leaderboard(context.Context) (domain.Leaderboard, error) { return f.board, f.err }

func (f *fakeBoard) MostActive(context.Context) (domain.TraderActivity, error) { return f.top, f.err }

type fakeResolver struct {
	address   func(handle, address string) (string, error)
	handle    string
	handleErr error
}

func (f *fakeResolver) ResolveAddress(_ context.Context, handle, address string) (string, error) {
	if f.address != nil {
		return f.address(handle, address)
	}
	if domain.IsAddress(address) {
		return address, nil
	}
	return "", domain.ErrMissingInput
}

func (f *fakeResolver) ResolveHandle(context.Context, string) (string, error) {
	return f.handle, f.handleErr
}

type fakeTrades struct {
	res service.UserTrades
	err error
}

func (f *fakeTrades) UserTrades(context.Context, string, int) (service.UserTrades, error) {
	return f.res, f.err
}

type fakeStats struct {
	stats   domain.ProfileStats
	err     error
	snaps   []domain.StatsSnapshot
	histErr error
}

func (f *fakeStats) UserStats(context.Context, string) (domain.ProfileStats, error) {
	return f.stats, f.err
}

func (f *fakeStats) History(context.Context, string, int) ([]domain.StatsSnapshot, error) {
	return f.snaps, f.histErr
}

type fakeAnalyzer struct {
	res  domain.AnalysisResult
	mode service.AnalysisMode
}

func (f *fakeAnalyzer) Analyze(_ context.Context, question string, mode service.AnalysisMode) domain.AnalysisResult {
	f.mode = mode
	if strings.TrimSpace(question) == "" {
		return domain.AnalysisResult{ErrorCode: service.CodeNoQuestion}
	}
	return f.res
}

type memBlobs struct {
	objects map[string][]byte
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	out := []domain.BlobInfo{}
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, domain.BlobInfo{Path: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
