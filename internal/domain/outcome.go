package domain

import "time"

// InvalidListingReason is the failure message for rows that do not pass validation.
const InvalidListingReason = "Invalid carga data"

// NewRecord is a persisted listing together with the recipients it could not reach.
type NewRecord struct {
	*LoadRecord
	NotificationErrors []string `json:"notificationErrors,omitempty"`
}

// Failure describes a listing that could not be persisted.
type Failure struct {
	TripID string `json:"tripId"`
	Error  string `json:"error"`
}

// ProcessOutcome summarizes one ingestion cycle.
type ProcessOutcome struct {
	RunID      string        `json:"runId"`
	Discovered int           `json:"discovered"`
	Known      int           `json:"known"`
	Processed  int           `json:"processed"`
	Failed     int           `json:"failed"`
	NewRecords []NewRecord   `json:"newRecords"`
	Failures   []Failure     `json:"failures"`
	Duration   time.Duration `json:"duration"`
}
