package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polydash/internal/domain"
)

// StreamEventKind distinguishes events on a price stream.
type StreamEventKind string

const (
	EventPrice StreamEventKind = "price"
	EventError StreamEventKind = "error"
	EventPing  StreamEventKind = "ping"
)

// Stream error messages.
const (
	StreamInitFailed = "init_failed"
	StreamPollFailed = "poll_failed"
)

// StreamEvent is one message for a price-stream subscriber. Point is set for
// EventPrice and Message for EventError.
type StreamEvent struct {
	Kind    StreamEventKind
	Point   domain.PricePoint
	Message string
}

// PriceStreamer turns repeated price-history polls into a stream of new
// points for a single CLOB token.
type PriceStreamer struct {
	clob      PriceHistoryFetcher
	poll      time.Duration
	heartbeat time.Duration
	buffer    int
	logger    *slog.Logger
}

// NewPriceStreamer creates a PriceStreamer. Non-positive settings fall back to
// a 2s poll, a 10s heartbeat and a 64-event buffer.
func NewPriceStreamer(clob PriceHistoryFetcher, poll, heartbeat time.Duration, buffer int, logger *slog.Logger) *PriceStreamer {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	if heartbeat <= 0 {
		heartbeat = 10 * time.Second
	}
	if buffer < 1 {
		buffer = 64
	}
	return &PriceStreamer{
		clob:      clob,
		poll:      poll,
		heartbeat: heartbeat,
		buffer:    buffer,
		logger:    logger,
	}
}

// Stream starts polling tokenID and returns the event channel. The latest
// known point is sent first; afterwards a point is sent only when its
// timestamp is strictly greater than the last one sent. Events are dropped
// when the subscriber falls a full buffer behind. The channel is closed once
// ctx is done.
func (s *PriceStreamer) Stream(ctx context.Context, tokenID string, interval domain.Interval) <-chan StreamEvent {
	out := make(chan StreamEvent, s.buffer)
	go s.run(ctx, tokenID, interval, out)
	return out
}

func (s *PriceStreamer) run(ctx context.Context, tokenID string, interval domain.Interval, out chan<- StreamEvent) {
	defer close(out)

	logger := s.logger.With(slog.String("token_id", tokenID), slog.String("interval", string(interval)))
	var prevT int64

	if last, ok, err := s.latest(ctx, tokenID, interval); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.WarnContext(ctx, "price_stream: initial fetch failed", slog.String("error", err.Error()))
		s.send(ctx, out, StreamEvent{Kind: EventError, Message: StreamInitFailed})
	} else if ok {
		prevT = last.T
		s.send(ctx, out, StreamEvent{Kind: EventPrice, Point: last})
	}

	pollTicker := time.NewTicker(s.poll)
	defer pollTicker.Stop()
	hbTicker := time.NewTicker(s.heartbeat)
	defer hbTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-hbTicker.C:
			s.send(ctx, out, StreamEvent{Kind: EventPing})
		case <-pollTicker.C:
			last, ok, err := s.latest(ctx, tokenID, interval)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.WarnContext(ctx, "price_stream: poll failed", slog.String("error", err.Error()))
				s.send(ctx, out, StreamEvent{Kind: EventError, Message: StreamPollFailed})
				continue
			}
			if ok && last.T > prevT {
				prevT = last.T
				s.send(ctx, out, StreamEvent{Kind: EventPrice, Point: last})
			}
		}
	}
}

func (s *PriceStreamer) latest(ctx context.Context, tokenID string, interval domain.Interval) (domain.PricePoint, bool, error) {
	pts, err := s.clob.PriceHistory(ctx, tokenID, interval)
	if err != nil {
		return domain.PricePoint{}, false, err
	}
	if len(pts) == 0 {
		return domain.PricePoint{}, false, nil
	}
	return pts[len(pts)-1], true, nil
}

// send never blocks; a full buffer drops the event.
func (s *PriceStreamer) send(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) {
	if ctx.Err() != nil {
		return
	}
	select {
	case out <- ev:
	default:
		s.logger.DebugContext(ctx, "price_stream: subscriber slow, event dropped",
			slog.String("kind", string(ev.Kind)),
		)
	}
}
