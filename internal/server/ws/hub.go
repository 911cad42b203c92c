// Package ws serves live CLOB price points over WebSocket. Each connection
// follows one token at a time and may switch tokens by sending a subscribe
// message.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/service"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 64
)

// PriceStreamer produces price events for one token.
type PriceStreamer interface {
	Stream(ctx context.Context, tokenID string, interval domain.Interval) <-chan service.StreamEvent
}

// Hub tracks open price-stream connections so they can be counted and torn
// down on shutdown.
type Hub struct {
	streamer PriceStreamer
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a Hub. allowedOrigins follows the CORS setting: empty or
// "*" accepts any origin.
func NewHub(streamer PriceStreamer, allowedOrigins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		streamer: streamer,
		logger:   logger,
		clients:  make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close ends every open connection. Hijacked connections are not covered by
// http.Server.Shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.cancel()
	}
}

// HandlePriceStream validates the query, upgrades the connection and starts
// streaming the requested token.
// GET /ws/price-stream?clobTokenId=...&interval=1h
func (h *Hub) HandlePriceStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenID := strings.TrimSpace(q.Get("clobTokenId"))
	if tokenID == "" {
		http.Error(w, "Missing clobTokenId", http.StatusBadRequest)
		return
	}
	interval, err := domain.ParseInterval(strings.TrimSpace(q.Get("interval")), domain.Interval1h)
	if err != nil {
		http.Error(w, "Invalid interval", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	// The request context ends when the handler returns; the connection
	// outlives it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan outbound, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
	h.register(c)
	c.subscribe(tokenID, interval)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client connected", slog.Int("total_clients", n))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// controlMsg is what a client may send: switch to another token or stop.
type controlMsg struct {
	Action      string `json:"action"`
	ClobTokenID string `json:"clobTokenId"`
	Interval    string `json:"interval"`
}

// Message is the JSON text frame sent for price and error events.
type Message struct {
	Type        string             `json:"type"`
	ClobTokenID string             `json:"clobTokenId"`
	Data        *domain.PricePoint `json:"data,omitempty"`
	Message     string             `json:"message,omitempty"`
}

type outbound struct {
	kind int
	data []byte
}

// client is one WebSocket connection.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan outbound
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	stopStream context.CancelFunc
}

// subscribe replaces the current stream with one for tokenID.
func (c *client) subscribe(tokenID string, interval domain.Interval) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopStream != nil {
		c.stopStream()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.stopStream = cancel
	go c.forward(ctx, tokenID, c.hub.streamer.Stream(ctx, tokenID, interval))
}

func (c *client) unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopStream != nil {
		c.stopStream()
		c.stopStream = nil
	}
}

// forward turns stream events into frames. Heartbeats become ping control
// frames.
func (c *client) forward(ctx context.Context, tokenID string, events <-chan service.StreamEvent) {
	for ev := range events {
		var out outbound
		switch ev.Kind {
		case service.EventPing:
			out = outbound{kind: websocket.PingMessage}
		case service.EventPrice:
			pt := ev.Point
			out = c.text(Message{Type: "price", ClobTokenID: tokenID, Data: &pt})
		case service.EventError:
			out = c.text(Message{Type: "error", ClobTokenID: tokenID, Message: ev.Message})
		default:
			continue
		}
		if out.kind == 0 {
			continue
		}
		select {
		case c.send <- out:
		case <-ctx.Done():
			return
		default:
			c.hub.logger.Warn("ws: dropping message for slow client",
				slog.String("token_id", tokenID),
			)
		}
	}
}

func (c *client) text(m Message) outbound {
	data, err := json.Marshal(m)
	if err != nil {
		return outbound{}
	}
	return outbound{kind: websocket.TextMessage, data: data}
}

// readPump reads control messages until the connection fails or closes.
func (c *client) readPump() {
	defer func() {
		c.cancel()
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg controlMsg
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		c.handleControl(msg)
	}
}

func (c *client) handleControl(msg controlMsg) {
	switch strings.ToLower(msg.Action) {
	case "subscribe":
		tokenID := strings.TrimSpace(msg.ClobTokenID)
		interval, err := domain.ParseInterval(msg.Interval, domain.Interval1h)
		if tokenID == "" || err != nil {
			c.reject(tokenID, "invalid_subscription")
			return
		}
		c.subscribe(tokenID, interval)
	case "unsubscribe":
		c.unsubscribe()
	}
}

func (c *client) reject(tokenID, reason string) {
	select {
	case c.send <- c.text(Message{Type: "error", ClobTokenID: tokenID, Message: reason}):
	default:
	}
}

// writePump serialises all writes to the connection and keeps it alive with
// periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
