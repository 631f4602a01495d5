package domain

import "time"

type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IngestionRun is the persisted history entry of one cycle.
type IngestionRun struct {
	ID         string     `db:"id" json:"id"`
	StartedAt  time.Time  `db:"started_at" json:"startedAt"`
	FinishedAt *time.Time `db:"finished_at" json:"finishedAt"`
	Status     RunStatus  `db:"status" json:"status"`
	Discovered int        `db:"discovered" json:"discovered"`
	Processed  int        `db:"processed" json:"processed"`
	Failed     int        `db:"failed" json:"failed"`
	Error      *string    `db:"error" json:"error,omitempty"`
}
