package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/platform/polymarket"
)

func tradesFor(user string, n int, sizeUSD float64) []domain.Trade {
	out := make([]domain.Trade, n)
	for i := range out {
		out[i] = domain.Trade{"user": user, "size_usd": sizeUSD, "side": "BUY"}
	}
	return out
}

func TestUserTradesFromUserFeed(t *testing.T) {
	data := &fakeData{fn: func(q polymarket.TradeQuery) ([]domain.Trade, error) {
		if q.User != addrA {
			t.Errorf("global feed should not be read, got query %+v", q)
			return nil, nil
		}
		return tradesFor(addrA, 100, 1), nil
	}}
	svc := NewTradeService(data, &fakeWeb{}, testLogger())

	got, err := svc.UserTrades(context.Background(), addrA, 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Source != TradeSourceUser {
		t.Errorf("source = %q", got.Source)
	}
	if len(got.Trades) != 150 {
		t.Errorf("trades = %d, want 150", len(got.Trades))
	}
	if got.Stats.TradeCount != 150 || got.Stats.Volume != 150 || got.Stats.PnL != -150 {
		t.Errorf("stats = %+v", got.Stats)
	}

	qs := data.queries()
	if len(qs) != 2 {
		t.Fatalf("pages fetched = %d, want 2", len(qs))
	}
	if qs[0].Limit != 150 || qs[0].Offset != 0 || qs[1].Offset != 100 {
		t.Errorf("paging = %+v", qs)
	}
}

func TestUserTradesPageLimitBounds(t *testing.T) {
	data := &fakeData{fn: func(q polymarket.TradeQuery) ([]domain.Trade, error) {
		if q.User == "" {
			return nil, nil
		}
		return tradesFor(addrA, 1, 1), nil
	}}
	svc := NewTradeService(data, &fakeWeb{}, testLogger())

	if _, err := svc.UserTrades(context.Background(), addrA, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	qs := data.queries()
	if qs[0].Limit != minPageSize {
		t.Errorf("page size = %d, want %d", qs[0].Limit, minPageSize)
	}
	if len(qs) != 5 {
		t.Errorf("user pages = %d, want 5", len(qs))
	}
}

func TestUserTradesFallsBackToGlobalFeed(t *testing.T) {
	data := &fakeData{fn: func(q polymarket.TradeQuery) ([]domain.Trade, error) {
		if q.User != "" {
			return nil, domain.ErrRateLimited
		}
		return []domain.Trade{
			{"user": addrA, "size_usd": 5.0},
			{"proxyWallet": addrB, "size_usd": 7.0},
			{"user": "0X1111111111111111111111111111111111111111", "size_usd": 3.0},
		}, nil
	}}
	svc := NewTradeService(data, &fakeWeb{}, testLogger())

	got, err := svc.UserTrades(context.Background(), addrA, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Source != TradeSourceGlobal {
		t.Errorf("source = %q", got.Source)
	}
	if len(got.Trades) != 2 || got.Stats.Volume != 8 {
		t.Errorf("trades = %d volume = %v", len(got.Trades), got.Stats.Volume)
	}
}

func TestUserTradesFallsBackToProfileCount(t *testing.T) {
	data := &fakeData{}
	web := &fakeWeb{pages: map[string]string{
		"profile:" + addrA: `<span>1,234 trades</span>`,
	}}
	svc := NewTradeService(data, web, testLogger())

	got, err := svc.UserTrades(context.Background(), addrA, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Source != TradeSourceProfile {
		t.Errorf("source = %q", got.Source)
	}
	if got.Stats.TradeCount != 1234 {
		t.Errorf("trade count = %d", got.Stats.TradeCount)
	}
	if got.Trades == nil || len(got.Trades) != 0 {
		t.Errorf("trades = %#v, want empty non-nil", got.Trades)
	}
}

func TestUserTradesNothingFound(t *testing.T) {
	svc := NewTradeService(&fakeData{}, &fakeWeb{}, testLogger())
	got, err := svc.UserTrades(context.Background(), addrA, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Source != TradeSourceNone || got.Stats != (domain.UserStats{}) {
		t.Errorf("got %+v", got)
	}
}

func TestUserTradesGlobalFeedError(t *testing.T) {
	data := &fakeData{fn: func(q polymarket.TradeQuery) ([]domain.Trade, error) {
		if q.User != "" {
			return nil, nil
		}
		return nil, domain.ErrUpstream
	}}
	svc := NewTradeService(data, &fakeWeb{}, testLogger())

	got, err := svc.UserTrades(context.Background(), addrA, 50)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if got.Address != addrA || got.Trades == nil {
		t.Errorf("partial result = %+v", got)
	}
}

func TestProfileTradeCountPrefersNextData(t *testing.T) {
	html := `<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"tradesCount":17}}}</script><p>99 trades</p>`
	n, ok := profileTradeCount(html)
	if !ok || n != 17 {
		t.Errorf("got %d, %v; want 17", n, ok)
	}
}
