package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"cargo_ingest/internal/domain"
)

type RunStore struct {
	db *sqlx.DB
}

func NewRunStore(db *sqlx.DB) *RunStore {
	return &RunStore{db: db}
}

// Record inserts the run, or overwrites it when a run with the same id exists.
func (s *RunStore) Record(ctx context.Context, run *domain.IngestionRun) error {
	query := `
		INSERT INTO ingestion_runs (id, started_at, finished_at, status, discovered, processed, failed, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			discovered = EXCLUDED.discovered,
			processed = EXCLUDED.processed,
			failed = EXCLUDED.failed,
			error = EXCLUDED.error`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.Status,
		run.Discovered,
		run.Processed,
		run.Failed,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("record ingestion run: %w", err)
	}
	return nil
}

// Latest returns the most recently started run, or nil when none exist yet.
func (s *RunStore) Latest(ctx context.Context) (*domain.IngestionRun, error) {
	var run domain.IngestionRun
	query := `
		SELECT id, started_at, finished_at, status, discovered, processed, failed, error
		FROM ingestion_runs
		ORDER BY started_at DESC
		LIMIT 1`

	err := s.db.GetContext(ctx, &run, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest ingestion run: %w", err)
	}
	return &run, nil
}
