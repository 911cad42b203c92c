// Package pipeline runs the periodic crypto-market snapshot: refresh the
// listing (which warms the market cache) and archive it to object storage.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/export"
	"github.com/alanyoungcy/polydash/internal/notify"
)

// snapshotLockKey serialises snapshots across replicas.
const snapshotLockKey = "snapshot:markets"

// MarketSource fetches a fresh crypto-market listing, bypassing caches.
type MarketSource interface {
	Refresh(ctx context.Context, limit int) ([]domain.Market, error)
}

// Result summarises one snapshot run.
type Result struct {
	Skipped bool
	Markets int
	Keys    []string
}

// Snapshotter takes market snapshots. blob, locks and notifier are optional.
type Snapshotter struct {
	source   MarketSource
	blob     domain.BlobWriter
	locks    domain.LockManager
	notifier *notify.Notifier
	limit    int
	lockTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewSnapshotter creates a Snapshotter.
func NewSnapshotter(
	source MarketSource,
	blob domain.BlobWriter,
	locks domain.LockManager,
	notifier *notify.Notifier,
	limit int,
	logger *slog.Logger,
) *Snapshotter {
	return &Snapshotter{
		source:   source,
		blob:     blob,
		locks:    locks,
		notifier: notifier,
		limit:    limit,
		lockTTL:  2 * time.Minute,
		now:      time.Now,
		logger:   logger,
	}
}

// Run performs one snapshot. When another replica holds the snapshot lock the
// run is skipped without error.
func (s *Snapshotter) Run(ctx context.Context) (Result, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, snapshotLockKey, s.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.InfoContext(ctx, "snapshot skipped, lock held elsewhere")
				return Result{Skipped: true}, nil
			}
			return Result{}, fmt.Errorf("pipeline: acquire lock: %w", err)
		}
		defer unlock()
	}

	taken := s.now()
	markets, err := s.source.Refresh(ctx, s.limit)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: refresh markets: %w", err)
	}
	res := Result{Markets: len(markets)}

	if s.blob != nil {
		keys, err := s.archive(ctx, taken, markets)
		if err != nil {
			return res, err
		}
		res.Keys = keys
	}
	return res, nil
}

func (s *Snapshotter) archive(ctx context.Context, taken time.Time, markets []domain.Market) ([]string, error) {
	rows := make([]map[string]any, len(markets))
	for i, m := range markets {
		rows[i] = m.Row()
	}

	jsonBody, err := export.JSON(markets)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	csvBody, err := export.CSV(rows, domain.MarketColumns)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	objects := []struct {
		key, contentType string
		body             []byte
	}{
		{domain.SnapshotKey(taken, string(export.FormatJSON)), export.FormatJSON.ContentType(), jsonBody},
		{domain.SnapshotKey(taken, string(export.FormatCSV)), export.FormatCSV.ContentType(), csvBody},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, obj := range objects {
		g.Go(func() error {
			if err := s.blob.Put(gctx, obj.key, bytes.NewReader(obj.body), obj.contentType); err != nil {
				return fmt.Errorf("pipeline: upload %s: %w", obj.key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	keys := make([]string, len(objects))
	for i, obj := range objects {
		keys[i] = obj.key
	}
	return keys, nil
}

// RunLoop snapshots immediately and then every interval until ctx is done.
// Failures are logged and reported; they do not stop the loop.
func (s *Snapshotter) RunLoop(ctx context.Context, interval time.Duration) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("snapshot loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Snapshotter) runOnce(ctx context.Context) {
	start := s.now()
	res, err := s.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.ErrorContext(ctx, "snapshot failed", slog.String("error", err.Error()))
		s.report(ctx, notify.EventSnapshotFailed, "Market snapshot failed", err.Error())
		return
	}
	if res.Skipped {
		return
	}

	s.logger.InfoContext(ctx, "snapshot complete",
		slog.Int("markets", res.Markets),
		slog.Int("objects", len(res.Keys)),
		slog.Duration("elapsed", s.now().Sub(start)),
	)
	s.report(ctx, notify.EventSnapshotOK, "Market snapshot complete",
		fmt.Sprintf("%d crypto markets, %d objects archived", res.Markets, len(res.Keys)))
}

func (s *Snapshotter) report(ctx context.Context, event, title, message string) {
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "snapshot notification failed", slog.String("error", err.Error()))
	}
}
