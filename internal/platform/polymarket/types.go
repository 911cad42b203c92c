package polymarket

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polydash/internal/domain"
)

// Gamma is loose about types: ids arrive as numbers or strings, figures as
// numbers or formatted strings, flags as bools or "true"/"false". The flex*
// types below accept any of these and never fail to decode, so one odd field
// cannot drop a whole market.

// flexString decodes a JSON string or number into its text form.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	if data[0] == '-' || (data[0] >= '0' && data[0] <= '9') {
		*f = flexString(data)
		return nil
	}
	*f = ""
	return nil
}

// flexBool decodes a JSON bool or "true"/"false" string. Set reports whether
// a usable value was present.
type flexBool struct {
	Set   bool
	Value bool
}

func (f *flexBool) UnmarshalJSON(data []byte) error {
	*f = flexBool{}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool{Set: true, Value: b}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1":
			*f = flexBool{Set: true, Value: true}
		case "false", "0":
			*f = flexBool{Set: true, Value: false}
		}
	}
	return nil
}

// flexNumber decodes a finite JSON number, or a string from which every
// character other than digits, '.' and '-' is removed before parsing the
// longest numeric prefix ("$1,234.5" reads as 1234.5).
type flexNumber struct {
	Set   bool
	Value float64
}

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	*f = flexNumber{}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		if !math.IsNaN(n) && !math.IsInf(n, 0) {
			*f = flexNumber{Set: true, Value: n}
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, ok := parseLooseNumber(s); ok {
			*f = flexNumber{Set: true, Value: v}
		}
	}
	return nil
}

func (f flexNumber) ptr() *float64 {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

var (
	looseStripRe  = regexp.MustCompile(`[^0-9.\-]`)
	loosePrefixRe = regexp.MustCompile(`^-?(?:[0-9]+\.?[0-9]*|\.[0-9]+)`)
)

// parseLooseNumber strips non-numeric characters from s and parses the
// longest leading number.
func parseLooseNumber(s string) (float64, bool) {
	cleaned := looseStripRe.ReplaceAllString(s, "")
	m := loosePrefixRe.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// flexStringList decodes a JSON array of strings/numbers, or a string that
// itself holds a JSON-encoded array. Anything else yields an empty list.
type flexStringList []string

func (f *flexStringList) UnmarshalJSON(data []byte) error {
	*f = flexStringList{}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		data = []byte(s)
	}
	var items []flexString
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make(flexStringList, 0, len(items))
	for _, it := range items {
		if it != "" {
			out = append(out, string(it))
		}
	}
	*f = out
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket is a market as returned by the Gamma API, covering both the
// camelCase and snake_case variants seen across API versions.
type APIMarket struct {
	ID                flexString     `json:"id"`
	Slug              flexString     `json:"slug"`
	Question          flexString     `json:"question"`
	Category          flexString     `json:"category"`
	EventID           flexString     `json:"event_id"`
	EventSlug         flexString     `json:"event_slug"`
	Events            eventRefs      `json:"events"`
	Volume24hr        flexNumber     `json:"volume24hr"`
	Volume1Day        flexNumber     `json:"volume1day"`
	Volume            flexNumber     `json:"volume"`
	VolumeNum         flexNumber     `json:"volumeNum"`
	Liquidity         flexNumber     `json:"liquidity"`
	LiquidityNum      flexNumber     `json:"liquidityNum"`
	Closed            flexBool       `json:"closed"`
	Active            flexBool       `json:"active"`
	IsClosed          flexBool       `json:"is_closed"`
	IsActive          flexBool       `json:"is_active"`
	IsOpen            flexBool       `json:"is_open"`
	BestBid           flexNumber     `json:"bestBid"`
	BestAsk           flexNumber     `json:"bestAsk"`
	LastTradePrice    flexNumber     `json:"lastTradePrice"`
	OneDayPriceChange flexNumber     `json:"oneDayPriceChange"`
	ClobTokenIDs      flexStringList `json:"clobTokenIds"`
	EndDate           flexString     `json:"endDate"`
	Image             flexString     `json:"image"`
}

// APIEventRef is the parent-event stub embedded in a Gamma market.
type APIEventRef struct {
	ID   flexString `json:"id"`
	Slug flexString `json:"slug"`
}

// eventRefs ignores an events field of the wrong shape.
type eventRefs []APIEventRef

func (e *eventRefs) UnmarshalJSON(data []byte) error {
	var refs []APIEventRef
	if err := json.Unmarshal(data, &refs); err != nil {
		*e = nil
		return nil
	}
	*e = refs
	return nil
}

// ToDomainMarket normalizes the Gamma record into a domain.Market.
func (m *APIMarket) ToDomainMarket() domain.Market {
	closed := m.Closed.Value
	if !m.Closed.Set {
		closed = m.IsClosed.Value
	}
	active := m.Active.Value
	if !m.Active.Set {
		active = m.IsActive.Value
	}
	open := active && !closed
	if m.IsOpen.Set {
		open = m.IsOpen.Value
	}

	out := domain.Market{
		ID:                string(m.ID),
		Slug:              string(m.Slug),
		Question:          string(m.Question),
		Category:          string(m.Category),
		EventID:           string(m.EventID),
		EventSlug:         string(m.EventSlug),
		Volume24hr:        firstNumber(m.Volume24hr, m.Volume1Day),
		Volume:            firstNumber(m.Volume, m.VolumeNum),
		Liquidity:         firstNumber(m.Liquidity, m.LiquidityNum),
		IsOpen:            open,
		IsActive:          active,
		IsClosed:          closed,
		BestBid:           m.BestBid.ptr(),
		BestAsk:           m.BestAsk.ptr(),
		LastTradePrice:    m.LastTradePrice.ptr(),
		OneDayPriceChange: m.OneDayPriceChange.ptr(),
		ClobTokenIDs:      []string(m.ClobTokenIDs),
		EndDate:           string(m.EndDate),
		Image:             string(m.Image),
	}
	if out.ClobTokenIDs == nil {
		out.ClobTokenIDs = []string{}
	}
	if out.EventID == "" && len(m.Events) > 0 {
		out.EventID = string(m.Events[0].ID)
		out.EventSlug = string(m.Events[0].Slug)
	}
	return out
}

func firstNumber(vals ...flexNumber) *float64 {
	for _, v := range vals {
		if v.Set {
			return v.ptr()
		}
	}
	return nil
}

// APITag is a Gamma tag. Older responses carry the display name as "title".
type APITag struct {
	ID    flexString `json:"id"`
	Name  flexString `json:"name"`
	Title flexString `json:"title"`
	Slug  flexString `json:"slug"`
}

// ToDomainTag converts an APITag to a domain.Tag.
func (t *APITag) ToDomainTag() domain.Tag {
	name := string(t.Name)
	if name == "" {
		name = string(t.Title)
	}
	return domain.Tag{ID: string(t.ID), Name: name, Slug: string(t.Slug)}
}

var errNotList = errors.New("response is neither an array nor a wrapped array")

// decodeList accepts either a bare JSON array or an object wrapping the array
// under key, and returns the raw elements.
func decodeList(body []byte, key string) ([]json.RawMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(body, &arr); err == nil {
		return arr, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, errNotList
	}
	inner, ok := wrapped[key]
	if !ok {
		return nil, errNotList
	}
	if err := json.Unmarshal(inner, &arr); err != nil {
		return nil, errNotList
	}
	return arr, nil
}

// decodeMarkets decodes a market list, skipping elements that are not objects.
func decodeMarkets(body []byte) ([]domain.Market, error) {
	raws, err := decodeList(body, "markets")
	if err != nil {
		return nil, err
	}
	markets := make([]domain.Market, 0, len(raws))
	for _, raw := range raws {
		var am APIMarket
		if err := json.Unmarshal(raw, &am); err != nil {
			continue
		}
		markets = append(markets, am.ToDomainMarket())
	}
	return markets, nil
}
