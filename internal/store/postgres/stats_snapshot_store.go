package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polydash/internal/domain"
)

// StatsSnapshotStore implements domain.StatsSnapshotStore using PostgreSQL.
// Addresses are stored lower-cased.
type StatsSnapshotStore struct {
	pool *pgxpool.Pool
}

// NewStatsSnapshotStore creates a new StatsSnapshotStore backed by the given pool.
func NewStatsSnapshotStore(pool *pgxpool.Pool) *StatsSnapshotStore {
	return &StatsSnapshotStore{pool: pool}
}

// Insert appends one observation.
func (s *StatsSnapshotStore) Insert(ctx context.Context, snap domain.StatsSnapshot) error {
	const query = `
		INSERT INTO user_stats_snapshots (address, pnl, trade_count, source, captured_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, query,
		strings.ToLower(snap.Address), snap.Stats.PnL, snap.Stats.TradeCount, snap.Source, snap.CapturedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert stats snapshot %s: %w", snap.Address, err)
	}
	return nil
}

// ListByAddress returns up to limit observations for address, newest first.
func (s *StatsSnapshotStore) ListByAddress(ctx context.Context, address string, limit int) ([]domain.StatsSnapshot, error) {
	const query = `
		SELECT id, address, pnl, trade_count, source, captured_at
		FROM user_stats_snapshots
		WHERE address = $1
		ORDER BY captured_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, strings.ToLower(address), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stats snapshots %s: %w", address, err)
	}
	snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StatsSnapshot, error) {
		var snap domain.StatsSnapshot
		err := row.Scan(&snap.ID, &snap.Address, &snap.Stats.PnL, &snap.Stats.TradeCount, &snap.Source, &snap.CapturedAt)
		return snap, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan stats snapshots %s: %w", address, err)
	}
	if snaps == nil {
		snaps = []domain.StatsSnapshot{}
	}
	return snaps, nil
}

var _ domain.StatsSnapshotStore = (*StatsSnapshotStore)(nil)
