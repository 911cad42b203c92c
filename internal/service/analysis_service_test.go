package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/platform/openrouter"
)

const structuredJSON = `{
  "marketSentiment": "Bullish",
  "riskLevel": "High",
  "volatilityIndex": 72,
  "technicalAnalysis": "Momentum is strong.",
  "keyPriceLevels": {"resistance": 0.8, "current": 0.62, "support": 0.5},
  "recommendation": "Buy dips.",
  "tradingSignals": {"buySignal": "Yes", "momentum": "Up", "volume": "Rising", "trend": "Up"}
}`

func TestAnalyzeStructured(t *testing.T) {
	llm := &fakeLLM{structured: []llmReply{{content: structuredJSON}}}
	cache := &memAnalysisCache{}
	store := &memAnalysisStore{}
	svc := NewAnalysisService(llm, cache, store, time.Hour, testLogger())

	res := svc.Analyze(context.Background(), "  Will BTC hit 100k?  ", AnalysisModeStructured)
	if !res.OK || res.Source != domain.AnalysisSourceStructured || res.ErrorCode != "" {
		t.Fatalf("result = %+v", res)
	}
	if res.Data.MarketSentiment != domain.SentimentBullish || res.Data.KeyPriceLevels.Current != 0.62 {
		t.Errorf("data = %+v", res.Data)
	}
	f := llm.formats[0]
	if f == nil || f.Type != "json_schema" || f.JSONSchema == nil || !f.JSONSchema.Strict {
		t.Errorf("format = %+v", f)
	}
	if len(store.records) != 1 || store.records[0].Model != "test-model" || store.records[0].Question != "Will BTC hit 100k?" {
		t.Errorf("records = %+v", store.records)
	}

	again := svc.Analyze(context.Background(), "Will BTC hit 100k?", AnalysisModeStructured)
	if !again.OK || again.Source != domain.AnalysisSourceCache {
		t.Errorf("second result = %+v", again)
	}
	if n := llm.callCount(); n != 1 {
		t.Errorf("llm calls = %d, want 1", n)
	}
}

func TestAnalyzeFallsBackToPlain(t *testing.T) {
	llm := &fakeLLM{
		structured: []llmReply{{err: &openrouter.Error{Code: "http_500", Status: 500}}},
		plain:      []llmReply{{content: "<|begin_of_sentence|>  Likely yes.<|begin_of_sentence|> "}},
	}
	svc := NewAnalysisService(llm, nil, nil, 0, testLogger())

	res := svc.Analyze(context.Background(), "Will ETH flip BTC?", AnalysisModeStructured)
	if !res.OK || res.Source != domain.AnalysisSourcePlain {
		t.Fatalf("result = %+v", res)
	}
	if res.ErrorCode != "http_500" {
		t.Errorf("error code = %q, want structured failure code", res.ErrorCode)
	}
	want := domain.NeutralAnalysis("Likely yes.")
	if *res.Data != want {
		t.Errorf("data = %+v, want %+v", *res.Data, want)
	}
}

func TestAnalyzeParseErrorThenPlainFailure(t *testing.T) {
	llm := &fakeLLM{
		structured: []llmReply{{content: "not json"}},
		plain:      []llmReply{{err: &openrouter.Error{Code: openrouter.CodeTimeout}}},
	}
	svc := NewAnalysisService(llm, nil, nil, 0, testLogger())

	res := svc.Analyze(context.Background(), "q", AnalysisModeStructured)
	if res.OK || res.Data != nil {
		t.Fatalf("result = %+v", res)
	}
	if res.ErrorCode != openrouter.CodeTimeout {
		t.Errorf("error code = %q", res.ErrorCode)
	}
}

func TestAnalyzeFencedJSON(t *testing.T) {
	llm := &fakeLLM{structured: []llmReply{{content: "```json\n" + structuredJSON + "\n```"}}}
	svc := NewAnalysisService(llm, nil, nil, 0, testLogger())

	res := svc.Analyze(context.Background(), "q", AnalysisModeStructured)
	if !res.OK || res.Source != domain.AnalysisSourceStructured {
		t.Fatalf("result = %+v", res)
	}
}

func TestAnalyzePlainModeSkipsStructured(t *testing.T) {
	llm := &fakeLLM{plain: []llmReply{{content: "text"}}}
	svc := NewAnalysisService(llm, nil, nil, 0, testLogger())

	res := svc.Analyze(context.Background(), "q", ParseAnalysisMode("PLAIN"))
	if !res.OK || res.Source != domain.AnalysisSourcePlain || res.ErrorCode != "" {
		t.Fatalf("result = %+v", res)
	}
	if llm.formats[0] != nil {
		t.Error("plain mode must not send a response format")
	}
}

func TestAnalyzeEmptyQuestion(t *testing.T) {
	llm := &fakeLLM{}
	svc := NewAnalysisService(llm, nil, nil, 0, testLogger())

	res := svc.Analyze(context.Background(), "   ", AnalysisModeStructured)
	if res.OK || res.ErrorCode != CodeNoQuestion {
		t.Errorf("result = %+v", res)
	}
	if llm.callCount() != 0 {
		t.Error("llm should not be called")
	}
}

func TestAnalyzeServesFromStore(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &memAnalysisStore{records: []domain.AnalysisRecord{
		{Question: "fresh", Analysis: domain.NeutralAnalysis("stored"), CreatedAt: now.Add(-time.Hour)},
		{Question: "stale", Analysis: domain.NeutralAnalysis("old"), CreatedAt: now.Add(-48 * time.Hour)},
	}}
	cache := &memAnalysisCache{}
	llm := &fakeLLM{plain: []llmReply{{content: "new"}}}
	svc := NewAnalysisService(llm, cache, store, 24*time.Hour, testLogger())
	svc.now = func() time.Time { return now }

	res := svc.Analyze(context.Background(), "fresh", AnalysisModePlain)
	if res.Source != domain.AnalysisSourceStore || res.Data.TechnicalAnalysis != "stored" {
		t.Fatalf("fresh = %+v", res)
	}
	if _, err := cache.Get(context.Background(), "fresh"); err != nil {
		t.Errorf("store hit should fill cache: %v", err)
	}

	res = svc.Analyze(context.Background(), "stale", AnalysisModePlain)
	if res.Source != domain.AnalysisSourcePlain || res.Data.TechnicalAnalysis != "new" {
		t.Errorf("stale = %+v", res)
	}
}

func TestCleanCompletion(t *testing.T) {
	in := "\n<|begin_of_sentence|>Hello <|begin_of_sentence|>world\t"
	if got := CleanCompletion(in); got != "Hello world" {
		t.Errorf("got %q", got)
	}
	if strings.Contains(CleanCompletion(sentenceToken), "begin") {
		t.Error("token survived")
	}
}

const eventJSON = `{
  "topic": "Ethereum upgrade",
  "outcome": "Yes",
  "confidence": "High",
  "summary": "Client teams have shipped testnet releases.",
  "whyLikely": ["Testnets are live"],
  "counterpoints": ["Dates have slipped before"],
  "keyFactors": ["Core dev calls"],
  "references": null,
  "recommendation": "Lean yes."
}`

func TestClassifyQuestion(t *testing.T) {
	tests := []struct {
		q    string
		want string
	}{
		{"Will the Pectra upgrade ship in Q2?", domain.AnalysisKindEvent},
		{"Will BTC price close above 100k?", domain.AnalysisKindPrice},
		{"Will ETH hit $5,000?", domain.AnalysisKindPrice},
		{"Will the stablecoin bill pass the Senate?", domain.AnalysisKindEvent},
		{"Is the SEC lawsuit settled? Buy the news?", domain.AnalysisKindPrice},
	}
	for _, tt := range tests {
		if got := ClassifyQuestion(tt.q); got != tt.want {
			t.Errorf("ClassifyQuestion(%q) = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestParseAnalysisMode(t *testing.T) {
	tests := map[string]AnalysisMode{
		"":           AnalysisModeStructured,
		"structured": AnalysisModeStructured,
		" Event ":    AnalysisModeEvent,
		"AUTO":       AnalysisModeAuto,
		"plain":      AnalysisModePlain,
		"bogus":      AnalysisModeStructured,
	}
	for in, want := range tests {
		if got := ParseAnalysisMode(in); got != want {
			t.Errorf("ParseAnalysisMode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAnalyzeEventMode(t *testing.T) {
	llm := &fakeLLM{event: []llmReply{{content: eventJSON}}}
	store := &memAnalysisStore{}
	svc := NewAnalysisService(llm, nil, store, 0, testLogger())

	res := svc.Analyze(context.Background(), "Will BTC price top 100k?", AnalysisModeEvent)
	if !res.OK || res.Kind != domain.AnalysisKindEvent || res.Source != domain.AnalysisSourceEvent || res.Data != nil {
		t.Fatalf("result = %+v", res)
	}
	ev := res.Event
	if ev.Topic != "Ethereum upgrade" || ev.Confidence != domain.RiskHigh || len(ev.WhyLikely) != 1 {
		t.Errorf("event = %+v", ev)
	}
	if ev.References == nil {
		t.Error("null references should decode to an empty list")
	}
	f := llm.formats[0]
	if f == nil || f.JSONSchema == nil || f.JSONSchema.Name != "event_analysis" {
		t.Errorf("format = %+v", f)
	}
	if len(store.records) != 0 {
		t.Errorf("event analyses are not archived: %+v", store.records)
	}
}

func TestAnalyzeAutoRoutesByQuestion(t *testing.T) {
	t.Run("event question", func(t *testing.T) {
		llm := &fakeLLM{event: []llmReply{{content: eventJSON}}}
		svc := NewAnalysisService(llm, nil, nil, 0, testLogger())

		res := svc.Analyze(context.Background(), "Will the Pectra upgrade go live?", AnalysisModeAuto)
		if !res.OK || res.Kind != domain.AnalysisKindEvent || res.ErrorCode != "" {
			t.Fatalf("result = %+v", res)
		}
		if llm.callCount() != 1 {
			t.Errorf("llm calls = %d, want 1", llm.callCount())
		}
	})

	t.Run("price question", func(t *testing.T) {
		llm := &fakeLLM{structured: []llmReply{{content: structuredJSON}}}
		svc := NewAnalysisService(llm, nil, nil, 0, testLogger())

		res := svc.Analyze(context.Background(), "Will BTC price top 100k?", AnalysisModeAuto)
		if !res.OK || res.Kind != domain.AnalysisKindPrice || res.Data == nil || res.Event != nil {
			t.Fatalf("result = %+v", res)
		}
	})

	t.Run("price falls back to event", func(t *testing.T) {
		llm := &fakeLLM{
			structured: []llmReply{{err: &openrouter.Error{Code: "http_500", Status: 500}}},
			event:      []llmReply{{content: eventJSON}},
		}
		svc := NewAnalysisService(llm, nil, nil, 0, testLogger())

		res := svc.Analyze(context.Background(), "Will BTC price top 100k?", AnalysisModeAuto)
		if !res.OK || res.Kind != domain.AnalysisKindEvent || res.Event == nil {
			t.Fatalf("result = %+v", res)
		}
		if res.ErrorCode != "http_500" {
			t.Errorf("error code = %q, want the price failure", res.ErrorCode)
		}
	})
}

func TestAnalyzeEventFailure(t *testing.T) {
	llm := &fakeLLM{event: []llmReply{{content: "{broken"}}}
	svc := NewAnalysisService(llm, nil, nil, 0, testLogger())

	res := svc.Analyze(context.Background(), "Will the merge happen?", AnalysisModeEvent)
	if res.OK || res.Event != nil || res.Kind != domain.AnalysisKindEvent {
		t.Fatalf("result = %+v", res)
	}
	if res.ErrorCode != CodeParseError {
		t.Errorf("error code = %q", res.ErrorCode)
	}
}
