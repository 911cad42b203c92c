// Package openrouter is a minimal client for the OpenRouter chat-completions
// API with bounded retry on transient failures.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// Error codes surfaced to callers.
const (
	CodeNoAPIKey      = "no_api_key"
	CodeNetwork       = "network"
	CodeTimeout       = "timeout"
	CodeDecode        = "decode_failed"
	CodeEmptyResponse = "empty_response"
)

// Error is a failed completion. Code is a short machine-readable reason such
// as "http_429" or "network".
type Error struct {
	Code     string
	Status   int
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("openrouter: %s after %d attempt(s): %v", e.Code, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the Code of an *Error in err's chain, or "unknown".
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "unknown"
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxRetries  int
	BaseBackoff time.Duration
	Timeout     time.Duration
}

// Client calls POST {BaseURL}/chat/completions.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxRetries  int
	baseBackoff time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

// New creates a Client. Zero values fall back to three retries, a 500ms base
// backoff and a 60s request timeout.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger.With(slog.String("component", "openrouter")),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// JSONSchema is the json_schema member of a structured response_format.
type JSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

// ResponseFormat asks the model for structured output.
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Completion is a successful completion.
type Completion struct {
	Content  string
	Model    string
	Attempts int
}

// Complete sends messages and returns the first choice's content. HTTP 429,
// 408 and 503 and connection resets are retried up to MaxRetries times with
// exponential backoff; any other failure is returned immediately.
func (c *Client) Complete(ctx context.Context, messages []Message, format *ResponseFormat) (Completion, error) {
	if c.apiKey == "" {
		return Completion{}, &Error{Code: CodeNoAPIKey, Err: errors.New("api key not configured")}
	}

	payload, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, ResponseFormat: format})
	if err != nil {
		return Completion{}, &Error{Code: CodeDecode, Err: fmt.Errorf("encode request: %w", err)}
	}

	var lastErr *Error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseBackoff << (attempt - 1)
			c.logger.WarnContext(ctx, "retrying completion",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.String("code", lastErr.Code),
			)
			select {
			case <-ctx.Done():
				lastErr.Attempts = attempt
				return Completion{}, lastErr
			case <-time.After(delay):
			}
		}

		comp, cerr := c.do(ctx, payload)
		if cerr == nil {
			comp.Attempts = attempt + 1
			return comp, nil
		}
		cerr.Attempts = attempt + 1
		lastErr = cerr
		if !isRetryable(cerr) || ctx.Err() != nil {
			return Completion{}, cerr
		}
	}
	return Completion{}, lastErr
}

func (c *Client) do(ctx context.Context, payload []byte) (Completion, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Completion{}, &Error{Code: CodeNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		code := CodeNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			code = CodeTimeout
		}
		return Completion{}, &Error{Code: code, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Completion{}, &Error{Code: CodeNetwork, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Completion{}, &Error{
			Code:   fmt.Sprintf("http_%d", resp.StatusCode),
			Status: resp.StatusCode,
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 256)),
		}
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return Completion{}, &Error{Code: CodeDecode, Err: err}
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return Completion{}, &Error{Code: CodeEmptyResponse, Err: errors.New("no content in response")}
	}
	return Completion{Content: cr.Choices[0].Message.Content, Model: cr.Model}, nil
}

// isRetryable reports whether a failure looks transient.
func isRetryable(e *Error) bool {
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusServiceUnavailable:
		return true
	}
	if e.Code != CodeNetwork {
		return false
	}
	if errors.Is(e.Err, syscall.ECONNRESET) {
		return true
	}
	return strings.Contains(strings.ToLower(e.Err.Error()), "connection reset")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
