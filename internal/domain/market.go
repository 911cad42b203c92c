package domain

import (
	"fmt"
	"strings"
)

// Market is the canonical shape of a Polymarket market after normalization of
// the heterogeneous Gamma field names. Numeric figures are nil when upstream
// omitted them or sent something unparseable; they are never NaN.
type Market struct {
	ID                string   `json:"id"`
	Slug              string   `json:"slug,omitempty"`
	Question          string   `json:"question,omitempty"`
	Category          string   `json:"category,omitempty"`
	EventID           string   `json:"event_id,omitempty"`
	EventSlug         string   `json:"event_slug,omitempty"`
	Volume24hr        *float64 `json:"volume24hr,omitempty"`
	Volume            *float64 `json:"volume,omitempty"`
	Liquidity         *float64 `json:"liquidity,omitempty"`
	IsOpen            bool     `json:"is_open"`
	IsActive          bool     `json:"is_active"`
	IsClosed          bool     `json:"is_closed"`
	BestBid           *float64 `json:"bestBid,omitempty"`
	BestAsk           *float64 `json:"bestAsk,omitempty"`
	LastTradePrice    *float64 `json:"lastTradePrice,omitempty"`
	OneDayPriceChange *float64 `json:"oneDayPriceChange,omitempty"`
	ClobTokenIDs      []string `json:"clobTokenIds"`
	EndDate           string   `json:"endDate,omitempty"`
	Image             string   `json:"image,omitempty"`
}

// Title returns the best human label for the market.
func (m Market) Title() string {
	switch {
	case m.Question != "":
		return m.Question
	case m.Slug != "":
		return m.Slug
	default:
		return "Market #" + m.ID
	}
}

// MarketColumns is the preferred column order for exported market rows.
var MarketColumns = []string{
	"id", "slug", "question", "category",
	"volume24hr", "volume", "liquidity",
	"is_open", "is_active", "is_closed",
	"bestBid", "bestAsk", "lastTradePrice", "oneDayPriceChange",
	"clobTokenIds",
}

// Row flattens the market into a string-keyed record for tabular export.
// Nil numeric fields are left out.
func (m Market) Row() map[string]any {
	row := map[string]any{
		"id":        m.ID,
		"slug":      m.Slug,
		"question":  m.Question,
		"category":  m.Category,
		"is_open":   m.IsOpen,
		"is_active": m.IsActive,
		"is_closed": m.IsClosed,
	}
	put := func(k string, v *float64) {
		if v != nil {
			row[k] = *v
		}
	}
	put("volume24hr", m.Volume24hr)
	put("volume", m.Volume)
	put("liquidity", m.Liquidity)
	put("bestBid", m.BestBid)
	put("bestAsk", m.BestAsk)
	put("lastTradePrice", m.LastTradePrice)
	put("oneDayPriceChange", m.OneDayPriceChange)
	if len(m.ClobTokenIDs) > 0 {
		row["clobTokenIds"] = strings.Join(m.ClobTokenIDs, " ")
	}
	return row
}

// Tradable reports whether the market accepts trades: explicitly open, or
// active and not closed.
func (m Market) Tradable() bool {
	return m.IsOpen || (m.IsActive && !m.IsClosed)
}

// MarketSummary aggregates a market listing. Missing figures count as zero.
type MarketSummary struct {
	Total        int     `json:"totalMarkets"`
	Open         int     `json:"openMarkets"`
	Volume24h    float64 `json:"volume24h"`
	AvgLiquidity float64 `json:"avgLiquidity"`
}

// Summarize computes the listing aggregates of markets.
func Summarize(markets []Market) MarketSummary {
	var (
		sum       MarketSummary
		liquidity float64
	)
	sum.Total = len(markets)
	for _, m := range markets {
		if m.Tradable() {
			sum.Open++
		}
		if m.Volume24hr != nil {
			sum.Volume24h += *m.Volume24hr
		}
		if m.Liquidity != nil {
			liquidity += *m.Liquidity
		}
	}
	if sum.Total > 0 {
		sum.AvgLiquidity = liquidity / float64(sum.Total)
	}
	return sum
}

// Tag is a Gamma category tag.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// PricePoint is one bucket of a CLOB token's price history.
type PricePoint struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
}

// Interval is a price-history bucket width accepted by the CLOB.
type Interval string

const (
	Interval1h  Interval = "1h"
	Interval6h  Interval = "6h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
	Interval1m  Interval = "1m"
	IntervalMax Interval = "max"
)

// ParseInterval validates s, returning def when s is empty.
func ParseInterval(s string, def Interval) (Interval, error) {
	if s == "" {
		return def, nil
	}
	switch iv := Interval(s); iv {
	case Interval1h, Interval6h, Interval1d, Interval1w, Interval1m, IntervalMax:
		return iv, nil
	default:
		return "", fmt.Errorf("invalid interval %q", s)
	}
}
