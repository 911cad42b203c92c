package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/polydash/internal/domain"
)

// DataClient reads the public trades feed from the Polymarket data API.
type DataClient struct {
	base
}

// NewDataClient creates a new data API client.
//
// baseURL is the data API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string, opts ...Option) *DataClient {
	return &DataClient{base: newBase(baseURL, opts)}
}

// TradeQuery filters the trades feed. The zero value asks for the global feed
// with upstream defaults.
type TradeQuery struct {
	User   string
	Limit  int
	Offset int
}

// Trades returns trade records. A body that is not a JSON array yields an
// empty slice rather than an error, as does any element that is not an
// object.
func (d *DataClient) Trades(ctx context.Context, q TradeQuery) ([]domain.Trade, error) {
	params := url.Values{}
	if q.User != "" {
		params.Set("user", q.User)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/trades"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, err := d.doGet(ctx, path, "application/json")
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get trades: %w", err)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return []domain.Trade{}, nil
	}
	trades := make([]domain.Trade, 0, len(raws))
	for _, raw := range raws {
		var t domain.Trade
		if err := json.Unmarshal(raw, &t); err != nil || t == nil {
			continue
		}
		trades = append(trades, t)
	}
	return trades, nil
}
