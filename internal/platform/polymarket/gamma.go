package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polydash/internal/domain"
)

const (
	// DefaultPageSize is the page size used when walking every market of a tag.
	DefaultPageSize = 200
	// maxPages bounds AllMarketsByTag.
	maxPages = 50
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata.
type GammaClient struct {
	base
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, opts ...Option) *GammaClient {
	return &GammaClient{base: newBase(baseURL, opts)}
}

// MarketQuery filters a market listing. Closed defaults to false (open
// markets only) when nil.
type MarketQuery struct {
	TagID  string
	Slug   string
	Closed *bool
	Limit  int
	Offset int
}

func (q MarketQuery) values() url.Values {
	params := url.Values{}
	if q.TagID != "" {
		params.Set("tag_id", q.TagID)
	}
	if q.Slug != "" {
		params.Set("slug", q.Slug)
	}
	closed := false
	if q.Closed != nil {
		closed = *q.Closed
	}
	params.Set("closed", strconv.FormatBool(closed))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	return params
}

// Markets returns one page of normalized markets.
func (g *GammaClient) Markets(ctx context.Context, q MarketQuery) ([]domain.Market, error) {
	body, err := g.doGet(ctx, "/markets?"+q.values().Encode(), "application/json")
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get markets: %w", err)
	}

	markets, err := decodeMarkets(body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	return markets, nil
}

// MarketBySlug returns the single market with the given slug.
func (g *GammaClient) MarketBySlug(ctx context.Context, slug string) (domain.Market, error) {
	params := url.Values{}
	params.Set("slug", slug)
	params.Set("limit", "1")

	body, err := g.doGet(ctx, "/markets?"+params.Encode(), "application/json")
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: get market by slug %s: %w", slug, err)
	}

	markets, err := decodeMarkets(body)
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	if len(markets) == 0 {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: %w: slug=%s", domain.ErrNotFound, slug)
	}
	return markets[0], nil
}

// AllMarketsByTag walks the listing for tagID page by page until a short or
// empty page, up to 50 pages.
func (g *GammaClient) AllMarketsByTag(ctx context.Context, tagID string, pageSize int) ([]domain.Market, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var out []domain.Market
	offset := 0
	for i := 0; i < maxPages; i++ {
		batch, err := g.Markets(ctx, MarketQuery{TagID: tagID, Limit: pageSize, Offset: offset})
		if err != nil {
			return out, err
		}
		if len(batch) == 0 {
			break
		}
		out = append(out, batch...)
		offset += len(batch)
		if len(batch) < pageSize {
			break
		}
	}
	return out, nil
}

// Tags returns every Gamma tag.
func (g *GammaClient) Tags(ctx context.Context) ([]domain.Tag, error) {
	body, err := g.doGet(ctx, "/tags", "application/json")
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get tags: %w", err)
	}

	raws, err := decodeList(body, "tags")
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode tags: %w", err)
	}
	tags := make([]domain.Tag, 0, len(raws))
	for _, raw := range raws {
		var at APITag
		if err := json.Unmarshal(raw, &at); err != nil {
			continue
		}
		tags = append(tags, at.ToDomainTag())
	}
	return tags, nil
}

// TagIDByName returns the id of the tag whose name matches case-insensitively.
func (g *GammaClient) TagIDByName(ctx context.Context, name string) (string, error) {
	tags, err := g.Tags(ctx)
	if err != nil {
		return "", err
	}
	for _, t := range tags {
		if strings.EqualFold(t.Name, name) {
			return t.ID, nil
		}
	}
	return "", fmt.Errorf("polymarket/gamma: tag %q: %w", name, domain.ErrNotFound)
}
