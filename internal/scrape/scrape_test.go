package scrape

import (
	"math"
	"reflect"
	"testing"
)

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0xaBcDeF0000000000000000000000000000000002"
)

func TestAddresses(t *testing.T) {
	html := `<a href="/profile/` + addrA + `">x</a> ` + addrB + ` again ` + addrA + ` 0x123`
	if got := FirstAddress(html); got != addrA {
		t.Errorf("FirstAddress = %q", got)
	}
	want := []string{addrA, addrB}
	if got := Addresses(html); !reflect.DeepEqual(got, want) {
		t.Errorf("Addresses = %v, want %v", got, want)
	}
	if got := FirstAddress("no address here"); got != "" {
		t.Errorf("FirstAddress(empty) = %q", got)
	}
}

func TestHandles(t *testing.T) {
	html := `<span>@alice</span> <span>@bob_2</span> <span>@alice</span> email@`
	if got := FirstHandle(html); got != "alice" {
		t.Errorf("FirstHandle = %q", got)
	}
	want := []string{"alice", "bob_2"}
	if got := Handles(html); !reflect.DeepEqual(got, want) {
		t.Errorf("Handles = %v, want %v", got, want)
	}
	if got := Handles("nothing"); len(got) != 0 {
		t.Errorf("Handles(nothing) = %v", got)
	}
}

func TestNextData(t *testing.T) {
	html := `<html><script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"pnl":12.5}}}</script></html>`
	data := NextData(html)
	if data == nil {
		t.Fatal("NextData returned nil")
	}
	if n, ok := FindNumber(data, []string{"pnl"}); !ok || n != 12.5 {
		t.Errorf("FindNumber = %v %v", n, ok)
	}

	if NextData(`<script id="__NEXT_DATA__">{broken</script>`) != nil {
		t.Error("invalid JSON should yield nil")
	}
	if NextData(`<html></html>`) != nil {
		t.Error("missing tag should yield nil")
	}
}

func TestFindNumber(t *testing.T) {
	obj := map[string]any{
		"user": map[string]any{
			"profitLoss": 42.0,
			"name":       "alice",
		},
		"label": "PnL: $1,234.50",
		"other": []any{1.0, "unrelated"},
	}
	n, ok := FindNumber(obj, []string{"pnl", "profit"})
	if !ok {
		t.Fatal("expected a match")
	}
	// Top-level string match is visited first; nested map is popped last.
	if n != 42 {
		t.Errorf("FindNumber = %v, want 42 (last visited wins)", n)
	}

	if _, ok := FindNumber(map[string]any{"volume": 3.0}, []string{"pnl"}); ok {
		t.Error("unexpected match")
	}
	if _, ok := FindNumber(nil, []string{"pnl"}); ok {
		t.Error("nil should not match")
	}
}

func TestFindNumberStringValue(t *testing.T) {
	n, ok := FindNumber(map[string]any{"text": "pnl -12.5 USD"}, []string{"pnl"})
	if !ok || n != -12.5 {
		t.Errorf("got %v %v", n, ok)
	}
}

func TestFindInt(t *testing.T) {
	obj := map[string]any{
		"stats": map[string]any{
			"tradeCount": 17.0,
			"tradeRatio": 0.5,
		},
	}
	n, ok := FindInt(obj, []string{"trade"})
	if !ok || n != 17 {
		t.Errorf("FindInt = %v %v", n, ok)
	}
	if _, ok := FindInt(map[string]any{"tradeRatio": 0.5}, []string{"trade"}); ok {
		t.Error("fractional value must not match")
	}

	huge := map[string]any{"tradeCount": 17.0, "tradesTotal": 1e300}
	if n, ok := FindInt(huge, []string{"trade"}); !ok || n != 17 {
		t.Errorf("out of range value replaced match: FindInt = %v %v", n, ok)
	}
	for _, v := range []float64{9.223372036854775807e18, -1e19, math.Inf(1), math.NaN()} {
		if n, ok := FindInt(map[string]any{"trades": v}, []string{"trade"}); ok {
			t.Errorf("FindInt(%v) = %v, want no match", v, n)
		}
	}
	if n, ok := FindInt(map[string]any{"trades": float64(math.MinInt64)}, []string{"trade"}); !ok || n != math.MinInt64 {
		t.Errorf("FindInt(MinInt64) = %v %v", n, ok)
	}
}

func TestTradeCountText(t *testing.T) {
	tests := []struct {
		html   string
		want   int
		wantOK bool
	}{
		{`<div>1,204 trades</div>`, 1204, true},
		{`<div>37 Predictions</div>`, 37, true},
		{`<div>no figures</div>`, 0, false},
	}
	for _, tt := range tests {
		got, ok := TradeCountText(tt.html)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("TradeCountText(%q) = %d %v, want %d %v", tt.html, got, ok, tt.want, tt.wantOK)
		}
	}
}
