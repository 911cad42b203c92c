package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/service"
)

// fakeStreamer emits one price point per token, tagged by token length, then
// holds the stream open until cancelled.
type fakeStreamer struct {
	mu     sync.Mutex
	tokens []string
}

func (f *fakeStreamer) Stream(ctx context.Context, tokenID string, _ domain.Interval) <-chan service.StreamEvent {
	f.mu.Lock()
	f.tokens = append(f.tokens, tokenID)
	f.mu.Unlock()

	out := make(chan service.StreamEvent, 2)
	out <- service.StreamEvent{Kind: service.EventPrice, Point: domain.PricePoint{T: int64(len(tokenID)), P: 0.5}}
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out
}

func newTestHub(s PriceStreamer) *Hub {
	return NewHub(s, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandlePriceStreamRejectsMissingToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHub(&fakeStreamer{}).HandlePriceStream(rec, httptest.NewRequest(http.MethodGet, "/ws/price-stream", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Missing clobTokenId") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestHandlePriceStreamRejectsBadInterval(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHub(&fakeStreamer{}).HandlePriceStream(rec, httptest.NewRequest(http.MethodGet, "/ws/price-stream?clobTokenId=a&interval=2h", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return m
}

func TestPriceStreamAndResubscribe(t *testing.T) {
	streamer := &fakeStreamer{}
	hub := newTestHub(streamer)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandlePriceStream))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?clobTokenId=abc"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	m := readMessage(t, conn)
	if m.Type != "price" || m.ClobTokenID != "abc" || m.Data == nil || m.Data.T != 3 {
		t.Fatalf("first message = %+v", m)
	}

	if err := conn.WriteJSON(controlMsg{Action: "subscribe", ClobTokenID: "abcdef", Interval: "1d"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	m = readMessage(t, conn)
	if m.ClobTokenID != "abcdef" || m.Data == nil || m.Data.T != 6 {
		t.Fatalf("after resubscribe = %+v", m)
	}

	if err := conn.WriteJSON(controlMsg{Action: "subscribe"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	m = readMessage(t, conn)
	if m.Type != "error" || m.Message != "invalid_subscription" {
		t.Fatalf("rejection = %+v", m)
	}

	if n := hub.ClientCount(); n != 1 {
		t.Fatalf("clients = %d", n)
	}
	hub.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if !check(req) {
		t.Fatal("no origin should pass")
	}
	req.Header.Set("Origin", "http://localhost:3000")
	if !check(req) {
		t.Fatal("listed origin rejected")
	}
	req.Header.Set("Origin", "http://other.example")
	if check(req) {
		t.Fatal("unlisted origin accepted")
	}
}
