package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polydash/internal/domain"
)

// AnalysisStore implements domain.AnalysisStore using PostgreSQL.
type AnalysisStore struct {
	pool *pgxpool.Pool
}

// NewAnalysisStore creates a new AnalysisStore backed by the given pool.
func NewAnalysisStore(pool *pgxpool.Pool) *AnalysisStore {
	return &AnalysisStore{pool: pool}
}

// questionKey folds case and whitespace so trivially different phrasings of
// a question share history.
func questionKey(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// Save appends an analysis record.
func (s *AnalysisStore) Save(ctx context.Context, rec domain.AnalysisRecord) error {
	body, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("postgres: marshal analysis: %w", err)
	}

	const query = `
		INSERT INTO analyses (question, question_key, model, source, analysis, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, query,
		rec.Question, questionKey(rec.Question), rec.Model, rec.Source, body, rec.LatencyMs, createdAt,
	); err != nil {
		return fmt.Errorf("postgres: insert analysis: %w", err)
	}
	return nil
}

// Latest returns the newest record for question, or domain.ErrNotFound.
func (s *AnalysisStore) Latest(ctx context.Context, question string) (domain.AnalysisRecord, error) {
	const query = `
		SELECT question, model, source, analysis, latency_ms, created_at
		FROM analyses
		WHERE question_key = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var (
		rec  domain.AnalysisRecord
		body []byte
	)
	err := s.pool.QueryRow(ctx, query, questionKey(question)).Scan(
		&rec.Question, &rec.Model, &rec.Source, &body, &rec.LatencyMs, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AnalysisRecord{}, domain.ErrNotFound
		}
		return domain.AnalysisRecord{}, fmt.Errorf("postgres: latest analysis: %w", err)
	}
	if err := json.Unmarshal(body, &rec.Analysis); err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("postgres: unmarshal analysis: %w", err)
	}
	return rec, nil
}

var _ domain.AnalysisStore = (*AnalysisStore)(nil)
