package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/alanyoungcy/polydash/internal/domain"
)

// ClobClient reads public price history from the Polymarket CLOB API.
type ClobClient struct {
	base
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string, opts ...Option) *ClobClient {
	return &ClobClient{base: newBase(baseURL, opts)}
}

type priceHistoryResponse struct {
	History []struct {
		T flexNumber `json:"t"`
		P flexNumber `json:"p"`
	} `json:"history"`
}

// PriceHistory returns the price series of a CLOB token at the given bucket
// interval, oldest first. Points missing a timestamp or price are dropped.
func (c *ClobClient) PriceHistory(ctx context.Context, tokenID string, interval domain.Interval) ([]domain.PricePoint, error) {
	params := url.Values{}
	params.Set("market", tokenID)
	params.Set("interval", string(interval))

	body, err := c.doGet(ctx, "/prices-history?"+params.Encode(), "application/json")
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: price history %s: %w", tokenID, err)
	}

	var resp priceHistoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode price history: %w", err)
	}

	points := make([]domain.PricePoint, 0, len(resp.History))
	for _, h := range resp.History {
		if !h.T.Set || !h.P.Set {
			continue
		}
		points = append(points, domain.PricePoint{T: int64(h.T.Value), P: h.P.Value})
	}
	return points, nil
}
