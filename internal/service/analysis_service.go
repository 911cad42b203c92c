package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/platform/openrouter"
)

// Analysis error codes that do not come from the completion client.
const (
	CodeNoQuestion = "no_question"
	CodeParseError = "parse_error"
)

// AnalysisMode selects which analysis is requested.
//
// structured asks for a price analysis and falls back to plain text; plain
// skips the schema-constrained call; event asks for an event analysis; auto
// classifies the question and falls back from price to event analysis.
type AnalysisMode string

const (
	AnalysisModeStructured AnalysisMode = "structured"
	AnalysisModePlain      AnalysisMode = "plain"
	AnalysisModeEvent      AnalysisMode = "event"
	AnalysisModeAuto       AnalysisMode = "auto"
)

// ParseAnalysisMode maps a query value to a mode; unknown values mean structured.
func ParseAnalysisMode(s string) AnalysisMode {
	switch m := AnalysisMode(strings.ToLower(strings.TrimSpace(s))); m {
	case AnalysisModePlain, AnalysisModeEvent, AnalysisModeAuto:
		return m
	default:
		return AnalysisModeStructured
	}
}

var priceHints = []string{"price", "$", "usd", "resistance", "support", "ma", "macd", "trend", "buy", "sell"}

// ClassifyQuestion returns domain.AnalysisKindPrice when the question mentions
// a price hint, else domain.AnalysisKindEvent.
func ClassifyQuestion(question string) string {
	q := strings.ToLower(question)
	for _, h := range priceHints {
		if strings.Contains(q, h) {
			return domain.AnalysisKindPrice
		}
	}
	return domain.AnalysisKindEvent
}

const sentenceToken = "<|begin_of_sentence|>"

// CleanCompletion removes model control tokens and surrounding whitespace.
func CleanCompletion(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, sentenceToken, ""))
}

func plainPrompt(question string) string {
	return "You are a market analyst. Provide a brief analysis of the following market question. " +
		"The analysis should include a prediction, a short explanation of why the prediction is likely, " +
		"and a short explanation of why it might not be. The question is: " + question
}

func structuredPrompt(question string) string {
	return "You are a crypto prediction-market analyst. Analyse the market question below and answer " +
		"only with a JSON object matching the provided schema. volatilityIndex is 0-100; " +
		"keyPriceLevels are implied probabilities between 0 and 1. The question is: " + question
}

func eventPrompt(question string) string {
	return "You are a prediction-market analyst. Assess how the event in the market question below is likely " +
		"to resolve and answer only with a JSON object matching the provided schema. confidence is Low, Medium " +
		"or High; references are URLs or source names and may be empty. The question is: " + question
}

var stringList = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

var eventSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required": []string{
		"topic", "outcome", "confidence", "summary", "whyLikely",
		"counterpoints", "keyFactors", "references", "recommendation",
	},
	"properties": map[string]any{
		"topic":          map[string]any{"type": "string"},
		"outcome":        map[string]any{"type": "string"},
		"confidence":     map[string]any{"type": "string", "enum": []string{domain.RiskLow, domain.RiskMedium, domain.RiskHigh}},
		"summary":        map[string]any{"type": "string"},
		"whyLikely":      stringList,
		"counterpoints":  stringList,
		"keyFactors":     stringList,
		"references":     stringList,
		"recommendation": map[string]any{"type": "string"},
	},
}

var analysisSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required": []string{
		"marketSentiment", "riskLevel", "volatilityIndex", "technicalAnalysis",
		"keyPriceLevels", "recommendation", "tradingSignals",
	},
	"properties": map[string]any{
		"marketSentiment": map[string]any{
			"type": "string",
			"enum": []string{domain.SentimentBullish, domain.SentimentBearish, domain.SentimentNeutral},
		},
		"riskLevel": map[string]any{
			"type": "string",
			"enum": []string{domain.RiskLow, domain.RiskMedium, domain.RiskHigh},
		},
		"volatilityIndex":   map[string]any{"type": "number"},
		"technicalAnalysis": map[string]any{"type": "string"},
		"recommendation":    map[string]any{"type": "string"},
		"keyPriceLevels": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"resistance", "current", "support"},
			"properties": map[string]any{
				"resistance": map[string]any{"type": "number"},
				"current":    map[string]any{"type": "number"},
				"support":    map[string]any{"type": "number"},
			},
		},
		"tradingSignals": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"buySignal", "momentum", "volume", "trend"},
			"properties": map[string]any{
				"buySignal": map[string]any{"type": "string"},
				"momentum":  map[string]any{"type": "string"},
				"volume":    map[string]any{"type": "string"},
				"trend":     map[string]any{"type": "string"},
			},
		},
	},
}

// AnalysisService answers market questions with an LLM. Finished analyses are
// served from the cache, then the store, before a completion is requested.
type AnalysisService struct {
	llm      Completer
	cache    domain.AnalysisCache
	store    domain.AnalysisStore
	cacheTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewAnalysisService creates an AnalysisService. cache and store may be nil.
func NewAnalysisService(
	llm Completer,
	cache domain.AnalysisCache,
	store domain.AnalysisStore,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *AnalysisService {
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &AnalysisService{
		llm:      llm,
		cache:    cache,
		store:    store,
		cacheTTL: cacheTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// Analyze returns an analysis for question. It never returns a Go error;
// failures are reported through AnalysisResult.ErrorCode.
func (s *AnalysisService) Analyze(ctx context.Context, question string, mode AnalysisMode) domain.AnalysisResult {
	start := s.now()
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.AnalysisResult{ErrorCode: CodeNoQuestion}
	}

	switch {
	case mode == AnalysisModeEvent:
		return s.analyzeEvent(ctx, question, start, "")
	case mode == AnalysisModeAuto && ClassifyQuestion(question) == domain.AnalysisKindEvent:
		return s.analyzeEvent(ctx, question, start, "")
	}

	if a, ok := s.lookupCache(ctx, question); ok {
		return s.result(start, a, domain.AnalysisSourceCache, "")
	}
	if a, ok := s.lookupStore(ctx, question); ok {
		s.fillCache(ctx, question, a)
		return s.result(start, a, domain.AnalysisSourceStore, "")
	}

	var structuredCode string
	if mode != AnalysisModePlain {
		a, err := s.structured(ctx, question)
		if err == nil {
			s.remember(ctx, question, a, domain.AnalysisSourceStructured, start)
			return s.result(start, a, domain.AnalysisSourceStructured, "")
		}
		if ctx.Err() != nil {
			return domain.AnalysisResult{Kind: domain.AnalysisKindPrice, ErrorCode: openrouter.ErrorCode(err), LatencyMs: s.since(start)}
		}
		structuredCode = errorCode(err)
		if mode == AnalysisModeAuto {
			s.logger.WarnContext(ctx, "analysis: structured call failed, falling back to event",
				slog.String("code", structuredCode),
				slog.String("error", err.Error()),
			)
			return s.analyzeEvent(ctx, question, start, structuredCode)
		}
		s.logger.WarnContext(ctx, "analysis: structured call failed, falling back to plain",
			slog.String("code", structuredCode),
			slog.String("error", err.Error()),
		)
	}

	a, err := s.plain(ctx, question)
	if err != nil {
		code := errorCode(err)
		s.logger.ErrorContext(ctx, "analysis: plain call failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
		return domain.AnalysisResult{Kind: domain.AnalysisKindPrice, ErrorCode: code, LatencyMs: s.since(start)}
	}
	s.remember(ctx, question, a, domain.AnalysisSourcePlain, start)
	return s.result(start, a, domain.AnalysisSourcePlain, structuredCode)
}

func (s *AnalysisService) structured(ctx context.Context, question string) (domain.StructuredAnalysis, error) {
	format := &openrouter.ResponseFormat{
		Type: "json_schema",
		JSONSchema: &openrouter.JSONSchema{
			Name:   "market_analysis",
			Strict: true,
			Schema: analysisSchema,
		},
	}
	c, err := s.llm.Complete(ctx, []openrouter.Message{
		{Role: "system", Content: structuredPrompt(question)},
	}, format)
	if err != nil {
		return domain.StructuredAnalysis{}, err
	}

	var a domain.StructuredAnalysis
	if err := json.Unmarshal([]byte(stripFences(CleanCompletion(c.Content))), &a); err != nil {
		return domain.StructuredAnalysis{}, &parseError{err: err}
	}
	if a.MarketSentiment == "" {
		a.MarketSentiment = domain.SentimentNeutral
	}
	if a.RiskLevel == "" {
		a.RiskLevel = domain.RiskMedium
	}
	return a, nil
}

// analyzeEvent requests an event analysis. priorCode is the failure code of
// an earlier price attempt, reported alongside a successful result.
func (s *AnalysisService) analyzeEvent(ctx context.Context, question string, start time.Time, priorCode string) domain.AnalysisResult {
	ev, err := s.event(ctx, question)
	if err != nil {
		code := errorCode(err)
		s.logger.ErrorContext(ctx, "analysis: event call failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
		return domain.AnalysisResult{Kind: domain.AnalysisKindEvent, ErrorCode: code, LatencyMs: s.since(start)}
	}
	return domain.AnalysisResult{
		OK:        true,
		Kind:      domain.AnalysisKindEvent,
		Event:     &ev,
		ErrorCode: priorCode,
		LatencyMs: s.since(start),
		Source:    domain.AnalysisSourceEvent,
	}
}

func (s *AnalysisService) event(ctx context.Context, question string) (domain.EventAnalysis, error) {
	format := &openrouter.ResponseFormat{
		Type: "json_schema",
		JSONSchema: &openrouter.JSONSchema{
			Name:   "event_analysis",
			Strict: true,
			Schema: eventSchema,
		},
	}
	c, err := s.llm.Complete(ctx, []openrouter.Message{
		{Role: "system", Content: eventPrompt(question)},
	}, format)
	if err != nil {
		return domain.EventAnalysis{}, err
	}

	var ev domain.EventAnalysis
	if err := json.Unmarshal([]byte(stripFences(CleanCompletion(c.Content))), &ev); err != nil {
		return domain.EventAnalysis{}, &parseError{err: err}
	}
	if ev.Confidence == "" {
		ev.Confidence = domain.RiskMedium
	}
	for _, list := range []*[]string{&ev.WhyLikely, &ev.Counterpoints, &ev.KeyFactors, &ev.References} {
		if *list == nil {
			*list = []string{}
		}
	}
	return ev, nil
}

func (s *AnalysisService) plain(ctx context.Context, question string) (domain.StructuredAnalysis, error) {
	c, err := s.llm.Complete(ctx, []openrouter.Message{
		{Role: "system", Content: plainPrompt(question)},
	}, nil)
	if err != nil {
		return domain.StructuredAnalysis{}, err
	}
	text := CleanCompletion(c.Content)
	if text == "" {
		return domain.StructuredAnalysis{}, &openrouter.Error{
			Code:     openrouter.CodeEmptyResponse,
			Attempts: c.Attempts,
			Err:      errors.New("completion was blank after cleanup"),
		}
	}
	return domain.NeutralAnalysis(text), nil
}

func (s *AnalysisService) lookupCache(ctx context.Context, question string) (domain.StructuredAnalysis, bool) {
	if s.cache == nil {
		return domain.StructuredAnalysis{}, false
	}
	a, err := s.cache.Get(ctx, question)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "analysis: cache get failed", slog.String("error", err.Error()))
		}
		return domain.StructuredAnalysis{}, false
	}
	return a, true
}

func (s *AnalysisService) lookupStore(ctx context.Context, question string) (domain.StructuredAnalysis, bool) {
	if s.store == nil {
		return domain.StructuredAnalysis{}, false
	}
	rec, err := s.store.Latest(ctx, question)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "analysis: store lookup failed", slog.String("error", err.Error()))
		}
		return domain.StructuredAnalysis{}, false
	}
	if s.now().Sub(rec.CreatedAt) > s.cacheTTL {
		return domain.StructuredAnalysis{}, false
	}
	return rec.Analysis, true
}

func (s *AnalysisService) fillCache(ctx context.Context, question string, a domain.StructuredAnalysis) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, question, a, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "analysis: cache set failed", slog.String("error", err.Error()))
	}
}

func (s *AnalysisService) remember(ctx context.Context, question string, a domain.StructuredAnalysis, source string, start time.Time) {
	s.fillCache(ctx, question, a)
	if s.store == nil {
		return
	}
	rec := domain.AnalysisRecord{
		Question:  question,
		Model:     s.llm.Model(),
		Analysis:  a,
		Source:    source,
		LatencyMs: s.since(start),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "analysis: store save failed", slog.String("error", err.Error()))
	}
}

func (s *AnalysisService) result(start time.Time, a domain.StructuredAnalysis, source, code string) domain.AnalysisResult {
	return domain.AnalysisResult{
		OK:        true,
		Kind:      domain.AnalysisKindPrice,
		Data:      &a,
		ErrorCode: code,
		LatencyMs: s.since(start),
		Source:    source,
	}
}

func (s *AnalysisService) since(start time.Time) int64 {
	return s.now().Sub(start).Milliseconds()
}

type parseError struct{ err error }

func (e *parseError) Error() string {
	return fmt.Sprintf("analysis: parse schema output: %v", e.err)
}
func (e *parseError) Unwrap() error { return e.err }

func errorCode(err error) string {
	var pe *parseError
	if errors.As(err, &pe) {
		return CodeParseError
	}
	return openrouter.ErrorCode(err)
}

// stripFences removes a ```json ... ``` wrapper some models add despite the schema.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
