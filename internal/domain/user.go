package domain

import "time"

// ProfileStats is the headline P&L and trade count shown for a profile.
type ProfileStats struct {
	PnL        float64 `json:"pnl"`
	TradeCount int     `json:"tradeCount"`
}

// StatsSnapshot is a ProfileStats observation persisted for history charts.
type StatsSnapshot struct {
	ID         int64        `json:"id"`
	Address    string       `json:"address"`
	Stats      ProfileStats `json:"stats"`
	Source     string       `json:"source"`
	CapturedAt time.Time    `json:"capturedAt"`
}

// Leaderboard is the set of handles and addresses scraped from the public
// leaderboard page, or the top traders of the global feed when scraping
// yields nothing.
type Leaderboard struct {
	Handles   []string `json:"handles"`
	Addresses []string `json:"addresses"`
}
