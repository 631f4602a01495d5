package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"cargo_ingest/internal/domain"
)

type runRow struct {
	ID         string         `db:"id"`
	StartedAt  string         `db:"started_at"`
	FinishedAt sql.NullString `db:"finished_at"`
	Status     string         `db:"status"`
	Discovered int            `db:"discovered"`
	Processed  int            `db:"processed"`
	Failed     int            `db:"failed"`
	Error      *string        `db:"error"`
}

type RunStore struct {
	db *sqlx.DB
}

func NewRunStore(db *sqlx.DB) *RunStore {
	return &RunStore{db: db}
}

// Record inserts the run, or overwrites it when a run with the same id exists.
func (s *RunStore) Record(ctx context.Context, run *domain.IngestionRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_runs (id, started_at, finished_at, status, discovered, processed, failed, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			discovered = excluded.discovered,
			processed = excluded.processed,
			failed = excluded.failed,
			error = excluded.error`,
		run.ID,
		formatTime(run.StartedAt),
		nullTime(run.FinishedAt),
		string(run.Status),
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
	var row runRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, started_at, finished_at, status, discovered, processed, failed, error
		 FROM ingestion_runs
		 ORDER BY started_at DESC
		 LIMIT 1`,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest ingestion run: %w", err)
	}

	run := &domain.IngestionRun{
		ID:         row.ID,
		Status:     domain.RunStatus(row.Status),
		Discovered: row.Discovered,
		Processed:  row.Processed,
		Failed:     row.Failed,
		Error:      row.Error,
	}
	if run.StartedAt, err = parseTime(row.StartedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseNullTime(row.FinishedAt); err != nil {
		return nil, err
	}
	return run, nil
}
