package domain

import "time"

// Sentiment values the analysis schema allows.
const (
	SentimentBullish = "Bullish"
	SentimentBearish = "Bearish"
	SentimentNeutral = "Neutral"
)

// Risk levels the analysis schema allows.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// KeyPriceLevels are the support/resistance figures of an analysis.
type KeyPriceLevels struct {
	Resistance float64 `json:"resistance"`
	Current    float64 `json:"current"`
	Support    float64 `json:"support"`
}

// TradingSignals are the free-text signal labels of an analysis.
type TradingSignals struct {
	BuySignal string `json:"buySignal"`
	Momentum  string `json:"momentum"`
	Volume    string `json:"volume"`
	Trend     string `json:"trend"`
}

// StructuredAnalysis is the fixed schema the LLM is asked to fill.
type StructuredAnalysis struct {
	MarketSentiment   string         `json:"marketSentiment"`
	RiskLevel         string         `json:"riskLevel"`
	VolatilityIndex   float64        `json:"volatilityIndex"`
	TechnicalAnalysis string         `json:"technicalAnalysis"`
	KeyPriceLevels    KeyPriceLevels `json:"keyPriceLevels"`
	Recommendation    string         `json:"recommendation"`
	TradingSignals    TradingSignals `json:"tradingSignals"`
}

// NeutralAnalysis wraps free-form text in the schema with neutral defaults.
func NeutralAnalysis(text string) StructuredAnalysis {
	return StructuredAnalysis{
		MarketSentiment:   SentimentNeutral,
		RiskLevel:         RiskMedium,
		VolatilityIndex:   50,
		TechnicalAnalysis: text,
		Recommendation:    "Review fundamentals; add on pullbacks if trend confirms.",
		TradingSignals: TradingSignals{
			BuySignal: "N/A",
			Momentum:  "N/A",
			Volume:    "N/A",
			Trend:     "N/A",
		},
	}
}

// EventAnalysis is the schema used for questions about events rather than
// price levels.
type EventAnalysis struct {
	Topic          string   `json:"topic"`
	Outcome        string   `json:"outcome"`
	Confidence     string   `json:"confidence"`
	Summary        string   `json:"summary"`
	WhyLikely      []string `json:"whyLikely"`
	Counterpoints  []string `json:"counterpoints"`
	KeyFactors     []string `json:"keyFactors"`
	References     []string `json:"references"`
	Recommendation string   `json:"recommendation"`
}

// Analysis kinds.
const (
	AnalysisKindPrice = "price"
	AnalysisKindEvent = "event"
)

// Analysis sources.
const (
	AnalysisSourceStructured = "structured"
	AnalysisSourcePlain      = "plain"
	AnalysisSourceEvent      = "event"
	AnalysisSourceCache      = "cache"
	AnalysisSourceStore      = "store"
)

// AnalysisResult is what callers receive for an analysis request. ErrorCode
// is set when OK is false. Data carries a price analysis and Event an event
// analysis; Kind says which.
type AnalysisResult struct {
	OK        bool                `json:"ok"`
	Kind      string              `json:"kind,omitempty"`
	Data      *StructuredAnalysis `json:"data,omitempty"`
	Event     *EventAnalysis      `json:"event,omitempty"`
	ErrorCode string              `json:"errorCode,omitempty"`
	LatencyMs int64               `json:"latencyMs"`
	Source    string              `json:"source,omitempty"`
}

// AnalysisRecord is a persisted analysis.
type AnalysisRecord struct {
	Question  string             `json:"question"`
	Model     string             `json:"model"`
	Analysis  StructuredAnalysis `json:"analysis"`
	Source    string             `json:"source"`
	LatencyMs int64              `json:"latencyMs"`
	CreatedAt time.Time          `json:"createdAt"`
}
