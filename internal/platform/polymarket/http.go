package polymarket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/polydash/internal/domain"
)

// maxBodyBytes caps how much of any upstream response is read.
const maxBodyBytes = 16 << 20

// StatusError is returned for non-2xx upstream responses. It unwraps to one
// of the domain sentinels so callers can use errors.Is.
type StatusError struct {
	Code int
	Body string
	err  error
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("HTTP %d: %v: %s", e.Code, e.err, body)
}

func (e *StatusError) Unwrap() error { return e.err }

// StatusCode extracts the upstream status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Option customises a client.
type Option func(*base)

// WithHTTPClient replaces the default 30s-timeout client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) {
		if c != nil {
			b.httpClient = c
		}
	}
}

// WithTimeout sets the request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(b *base) { b.userAgent = ua }
}

// base carries what every Polymarket client shares.
type base struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

func newBase(baseURL string, opts []Option) base {
	b := base{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// doGet issues a GET for path relative to the base URL and returns the body
// of a 2xx response.
func (b *base) doGet(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var sentinel error
	switch statusCode {
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = domain.ErrUnauthorized
	case http.StatusTooManyRequests:
		sentinel = domain.ErrRateLimited
	default:
		sentinel = domain.ErrUpstream
	}
	return &StatusError{Code: statusCode, Body: string(body), err: sentinel}
}
