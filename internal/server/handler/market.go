package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/export"
	"github.com/alanyoungcy/polydash/internal/service"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	CryptoMarkets(ctx context.Context, limit int) ([]domain.Market, error)
	MarketsByTag(ctx context.Context, tagName string) ([]domain.Market, error)
	MarketBySlug(ctx context.Context, slug string) (domain.Market, error)
	TickerMarkets(ctx context.Context, ticker string) (service.TickerView, error)
	PriceHistory(ctx context.Context, tokenID string, interval domain.Interval) ([]domain.PricePoint, error)
}

// maxMarketLimit bounds the listing request size.
const maxMarketLimit = 1000

// MarketHandler serves market listing, lookup and price history.
type MarketHandler struct {
	markets      MarketService
	defaultLimit int
	logger       *slog.Logger
}

// NewMarketHandler creates a MarketHandler. defaultLimit applies when a
// request carries no limit.
func NewMarketHandler(markets MarketService, defaultLimit int, logger *slog.Logger) *MarketHandler {
	if defaultLimit <= 0 {
		defaultLimit = 500
	}
	return &MarketHandler{
		markets:      markets,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

type listMarketsResponse struct {
	Markets []domain.Market      `json:"markets"`
	Count   int                  `json:"count"`
	Tag     string               `json:"tag,omitempty"`
	Summary domain.MarketSummary `json:"summary"`
}

// ListMarkets returns open crypto markets, or every open market under tag.
// GET /api/markets?limit=500&tag=crypto
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, tag, err := h.list(r)
	if err != nil {
		h.writeListError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Count:   len(markets),
		Tag:     tag,
		Summary: domain.Summarize(markets),
	})
}

// ExportMarkets downloads the same listing as CSV (default) or JSON.
// GET /api/markets/export?format=csv
func (h *MarketHandler) ExportMarkets(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(queryString(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_format")
		return
	}

	markets, _, err := h.list(r)
	if err != nil {
		h.writeListError(w, r, err)
		return
	}

	rows := make([]map[string]any, 0, len(markets))
	for _, m := range markets {
		rows = append(rows, m.Row())
	}
	body, err := export.Encode(format, rows, domain.MarketColumns)
	if err != nil {
		requestLogger(h.logger, r, "export_markets").ErrorContext(r.Context(), "handler: encode export failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	name := fmt.Sprintf("markets-%s.%s", time.Now().UTC().Format("20060102-150405"), format.Ext())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	noStore(w)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// GetMarket returns a single market by slug.
// GET /api/markets/{slug}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "missing_slug")
		return
	}

	market, err := h.markets.MarketBySlug(r.Context(), slug)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, market)
	case errors.Is(err, domain.ErrMissingInput):
		writeError(w, http.StatusBadRequest, "missing_slug")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "market_not_found")
	default:
		requestLogger(h.logger, r, "get_market").ErrorContext(r.Context(), "handler: get market failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "market_fetch_failed")
	}
}

// TickerMarkets returns the crypto markets of one coin with their aggregates.
// GET /api/markets/ticker/{ticker}
func (h *MarketHandler) TickerMarkets(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	view, err := h.markets.TickerMarkets(r.Context(), ticker)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, view)
	case errors.Is(err, domain.ErrMissingInput):
		writeError(w, http.StatusBadRequest, "missing_ticker")
	default:
		requestLogger(h.logger, r, "ticker_markets").ErrorContext(r.Context(), "handler: ticker markets failed",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "markets_failed")
	}
}

// PriceHistory returns the price series of one CLOB token.
// GET /api/price-history?clobTokenId=...&interval=1h
func (h *MarketHandler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	tokenID := queryString(r, "clobTokenId")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "missing_clob_token_id")
		return
	}
	interval, err := domain.ParseInterval(queryString(r, "interval"), domain.Interval1h)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_interval")
		return
	}

	points, err := h.markets.PriceHistory(r.Context(), tokenID, interval)
	if err != nil {
		requestLogger(h.logger, r, "price_history").ErrorContext(r.Context(), "handler: price history failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "price_history_failed")
		return
	}
	if points == nil {
		points = []domain.PricePoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *MarketHandler) list(r *http.Request) ([]domain.Market, string, error) {
	if tag := queryString(r, "tag"); tag != "" {
		markets, err := h.markets.MarketsByTag(r.Context(), tag)
		return markets, tag, err
	}
	limit := min(queryInt(r, "limit", h.defaultLimit), maxMarketLimit)
	markets, err := h.markets.CryptoMarkets(r.Context(), limit)
	return markets, "", err
}

func (h *MarketHandler) writeListError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tag_not_found")
		return
	}
	requestLogger(h.logger, r, "list_markets").ErrorContext(r.Context(), "handler: list markets failed",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusBadGateway, "markets_failed")
}
