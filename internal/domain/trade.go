package domain

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Trade is one record from the public trades feed. The feed enforces no
// schema, so the record is kept open and read through accessors that try the
// known key variants in order.
type Trade map[string]any

var (
	directPnLKeys = []string{"pnl_usd", "profit_usd", "realized_pnl", "realized_pnl_usd", "realized_profit_usd", "profit"}
	payoutKeys    = []string{"payout_usd", "received_usd", "redeem_usd"}
	costKeys      = []string{"cost_usd", "spent_usd"}
)

// User returns the trader address of the record.
func (t Trade) User() string {
	for _, k := range []string{"user", "proxyWallet"} {
		if s, ok := t[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// SizeUSD returns the notional of the trade. size_usd wins; otherwise
// size*price is used when both are present.
func (t Trade) SizeUSD() float64 {
	if v, ok := t["size_usd"]; ok && v != nil {
		return toFloat(v)
	}
	size, okS := t["size"]
	price, okP := t["price"]
	if okS && okP {
		return toFloat(size) * toFloat(price)
	}
	return 0
}

// Timestamp returns the record's unix timestamp, or 0.
func (t Trade) Timestamp() int64 {
	return int64(toFloat(t["timestamp"]))
}

// PnL derives realized profit for the record: the first present direct P&L
// key, then payout minus cost, then a side heuristic that books a sell as
// +size and a buy as -size.
func (t Trade) PnL() float64 {
	if v, ok := t.first(directPnLKeys); ok {
		if pnl := toFloat(v); pnl != 0 {
			return pnl
		}
	}

	var payout, cost float64
	if v, ok := t.first(payoutKeys); ok {
		payout = toFloat(v)
	}
	if v, ok := t.first(costKeys); ok {
		cost = toFloat(v)
	}
	if payout != 0 || cost != 0 {
		return payout - cost
	}

	switch t.side() {
	case "sell":
		return t.SizeUSD()
	case "buy":
		return -t.SizeUSD()
	}
	return 0
}

// first returns the value of the first key that is present and non-null.
func (t Trade) first(keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := t[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// side scans string fields in key order; "sell" takes precedence over "buy".
func (t Trade) side() string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buy := false
	for _, k := range keys {
		s, ok := t[k].(string)
		if !ok {
			continue
		}
		ls := strings.ToLower(s)
		if strings.Contains(ls, "sell") {
			return "sell"
		}
		if strings.Contains(ls, "buy") {
			buy = true
		}
	}
	if buy {
		return "buy"
	}
	return ""
}

// UserStats is the aggregate of a trade collection.
type UserStats struct {
	Volume     float64 `json:"volume"`
	TradeCount int     `json:"tradeCount"`
	PnL        float64 `json:"pnl"`
}

// Aggregate sums volume, count and P&L over trades. The result does not depend
// on the order of trades.
func Aggregate(trades []Trade) UserStats {
	var s UserStats
	for _, t := range trades {
		s.Volume += t.SizeUSD()
		s.TradeCount++
		s.PnL += t.PnL()
	}
	return s
}

// FilterByUser returns the records whose user matches address.
func FilterByUser(trades []Trade, address string) []Trade {
	out := make([]Trade, 0)
	for _, t := range trades {
		if strings.EqualFold(t.User(), address) {
			out = append(out, t)
		}
	}
	return out
}

// TraderActivity is per-user volume over a trade feed.
type TraderActivity struct {
	User       string  `json:"user"`
	Volume     float64 `json:"volume"`
	TradeCount int     `json:"tradeCount"`
}

// RankTraders groups trades by lower-cased user and orders them by volume
// descending, ties broken by address. n <= 0 returns every trader.
func RankTraders(trades []Trade, n int) []TraderActivity {
	by := make(map[string]*TraderActivity)
	for _, t := range trades {
		u := strings.ToLower(t.User())
		if u == "" {
			continue
		}
		cur, ok := by[u]
		if !ok {
			cur = &TraderActivity{User: u}
			by[u] = cur
		}
		cur.Volume += t.SizeUSD()
		cur.TradeCount++
	}

	out := make([]TraderActivity, 0, len(by))
	for _, a := range by {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Volume != out[j].Volume {
			return out[i].Volume > out[j].Volume
		}
		return out[i].User < out[j].User
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// toFloat coerces a decoded JSON value to a finite number; anything else is 0.
func toFloat(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		f, _ = x.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(x), 64)
	case bool:
		if x {
			f = 1
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
