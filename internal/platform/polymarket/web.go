package polymarket

import (
	"context"
	"fmt"
	"net/url"
)

// LeaderboardPath is the public profit leaderboard page.
const LeaderboardPath = "/leaderboard/overall/all/profit"

// WebClient fetches server-rendered pages from polymarket.com for scraping.
type WebClient struct {
	base
}

// NewWebClient creates a client for the public website. Pages are requested
// with a browser User-Agent unless overridden.
//
// baseURL is the site root, e.g. "https://polymarket.com".
func NewWebClient(baseURL string, opts ...Option) *WebClient {
	opts = append([]Option{WithUserAgent("Mozilla/5.0")}, opts...)
	return &WebClient{base: newBase(baseURL, opts)}
}

// HandlePage returns the HTML of the profile page for a handle (without "@").
func (w *WebClient) HandlePage(ctx context.Context, handle string) (string, error) {
	body, err := w.doGet(ctx, "/@"+url.PathEscape(handle), "text/html")
	if err != nil {
		return "", fmt.Errorf("polymarket/web: handle page %s: %w", handle, err)
	}
	return string(body), nil
}

// ProfilePage returns the HTML of the profile page for an address.
func (w *WebClient) ProfilePage(ctx context.Context, address string) (string, error) {
	body, err := w.doGet(ctx, "/profile/"+url.PathEscape(address), "text/html")
	if err != nil {
		return "", fmt.Errorf("polymarket/web: profile page %s: %w", address, err)
	}
	return string(body), nil
}

// LeaderboardPage returns the HTML of the profit leaderboard.
func (w *WebClient) LeaderboardPage(ctx context.Context) (string, error) {
	body, err := w.doGet(ctx, LeaderboardPath, "text/html")
	if err != nil {
		return "", fmt.Errorf("polymarket/web: leaderboard page: %w", err)
	}
	return string(body), nil
}
