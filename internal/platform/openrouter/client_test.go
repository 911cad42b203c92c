package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func testClient(url string, retries int) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{
		BaseURL:     url,
		APIKey:      "sk-test",
		Model:       "test/model",
		MaxRetries:  retries,
		BaseBackoff: time.Millisecond,
		Timeout:     5 * time.Second,
	}, logger)
}

func okBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"model":   "test/model",
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	})
	return string(b)
}

func TestCompleteSendsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "test/model" || len(req.Messages) != 1 {
			t.Errorf("req = %+v", req)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" || req.ResponseFormat.JSONSchema.Name != "analysis" {
			t.Errorf("response_format = %+v", req.ResponseFormat)
		}
		fmt.Fprint(w, okBody("hello"))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3)
	comp, err := c.Complete(context.Background(),
		[]Message{{Role: "system", Content: "hi"}},
		&ResponseFormat{Type: "json_schema", JSONSchema: &JSONSchema{Name: "analysis", Schema: map[string]any{"type": "object"}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if comp.Content != "hello" || comp.Attempts != 1 {
		t.Errorf("comp = %+v", comp)
	}
}

func TestCompleteRetriesTransient(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusServiceUnavailable} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.WriteHeader(status)
					return
				}
				fmt.Fprint(w, okBody("done"))
			}))
			defer srv.Close()

			comp, err := testClient(srv.URL, 3).Complete(context.Background(), []Message{{Role: "user", Content: "q"}}, nil)
			if err != nil {
				t.Fatal(err)
			}
			if comp.Attempts != 3 || calls.Load() != 3 {
				t.Errorf("attempts = %d calls = %d", comp.Attempts, calls.Load())
			}
		})
	}
}

func TestCompleteGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).Complete(context.Background(), []Message{{Role: "user", Content: "q"}}, nil)
	if ErrorCode(err) != "http_429" {
		t.Errorf("code = %s (%v)", ErrorCode(err), err)
	}
	if calls.Load() != 4 {
		t.Errorf("calls = %d, want 1 + 3 retries", calls.Load())
	}
}

func TestCompleteDoesNotRetryPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).Complete(context.Background(), []Message{{Role: "user", Content: "q"}}, nil)
	var oe *Error
	if !errors.As(err, &oe) || oe.Code != "http_500" || oe.Status != 500 {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestCompleteEmptyAndMissingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 0).Complete(context.Background(), nil, nil)
	if ErrorCode(err) != CodeEmptyResponse {
		t.Errorf("code = %s", ErrorCode(err))
	}

	c := New(Config{BaseURL: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := c.Complete(context.Background(), nil, nil); ErrorCode(err) != CodeNoAPIKey {
		t.Errorf("code = %s", ErrorCode(err))
	}
}

func TestCompleteStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3)
	c.baseBackoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Complete(ctx, []Message{{Role: "user", Content: "q"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("backoff did not honour context cancellation")
	}
}

func TestIsRetryableConnReset(t *testing.T) {
	reset := &Error{Code: CodeNetwork, Err: &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}}
	if !isRetryable(reset) {
		t.Error("ECONNRESET should be retryable")
	}
	refused := &Error{Code: CodeNetwork, Err: &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}}
	if isRetryable(refused) {
		t.Error("ECONNREFUSED should not be retryable")
	}
	if isRetryable(&Error{Code: CodeDecode, Err: errors.New("connection reset")}) {
		t.Error("decode errors are never retryable")
	}
}
