package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/service"
)

// PriceStreamer is the subset of service.PriceStreamer the stream handler
// needs.
type PriceStreamer interface {
	Stream(ctx context.Context, tokenID string, interval domain.Interval) <-chan service.StreamEvent
}

var errUnknownEvent = errors.New("handler: unknown stream event")

// PriceStreamHandler serves live price points as server-sent events.
type PriceStreamHandler struct {
	streamer PriceStreamer
	logger   *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewPriceStreamHandler creates a PriceStreamHandler.
func NewPriceStreamHandler(streamer PriceStreamer, logger *slog.Logger) *PriceStreamHandler {
	return &PriceStreamHandler{
		streamer: streamer,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Close ends every open stream. http.Server.Shutdown does not cancel request
// contexts, so streams would otherwise hold shutdown open.
func (h *PriceStreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Stream pushes the latest point, then each newer point, error events and
// heartbeats until the client goes away.
// GET /api/price-stream?clobTokenId=...&interval=1h
func (h *PriceStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	tokenID := queryString(r, "clobTokenId")
	if tokenID == "" {
		http.Error(w, "Missing clobTokenId", http.StatusBadRequest)
		return
	}
	interval, err := domain.ParseInterval(queryString(r, "interval"), domain.Interval1h)
	if err != nil {
		http.Error(w, "Invalid interval", http.StatusBadRequest)
		return
	}

	rc := http.NewResponseController(w)
	// The server-wide write timeout would cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache, no-transform")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(r.Context(), "price_stream: flush unsupported",
			slog.String("error", err.Error()),
		)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		select {
		case <-h.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	log := requestLogger(h.logger, r, "price_stream").With(slog.String("token_id", tokenID))
	log.DebugContext(ctx, "price_stream: client connected")

	for ev := range h.streamer.Stream(ctx, tokenID, interval) {
		frame, err := sseFrame(ev)
		if err != nil {
			continue
		}
		if _, err := w.Write(frame); err != nil {
			log.DebugContext(ctx, "price_stream: write failed", slog.String("error", err.Error()))
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
	log.DebugContext(ctx, "price_stream: client disconnected")
}

// sseFrame renders one event in text/event-stream framing. Price points use
// the default event type; errors and heartbeats are named events.
func sseFrame(ev service.StreamEvent) ([]byte, error) {
	var buf bytes.Buffer
	switch ev.Kind {
	case service.EventPrice:
		data, err := json.Marshal(ev.Point)
		if err != nil {
			return nil, err
		}
		buf.WriteString("data: ")
		buf.Write(data)
	case service.EventError:
		data, err := json.Marshal(map[string]string{"message": ev.Message})
		if err != nil {
			return nil, err
		}
		buf.WriteString("event: error\ndata: ")
		buf.Write(data)
	case service.EventPing:
		buf.WriteString("event: ping\ndata: {}")
	default:
		return nil, errUnknownEvent
	}
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}
