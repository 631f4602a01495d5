package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"cargo_ingest/internal/domain"
)

type IngestionService struct {
	source     Source
	loads      LoadStore
	runs       RunStore
	notifier   Notifier
	recipients RecipientDirectory
	publisher  Publisher
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewIngestionService wires a cycle runner. runs and publisher may be nil.
func NewIngestionService(
	source Source,
	loads LoadStore,
	runs RunStore,
	notifier Notifier,
	recipients RecipientDirectory,
	publisher Publisher,
	logger *slog.Logger,
) *IngestionService {
	return &IngestionService{
		source:     source,
		loads:      loads,
		runs:       runs,
		notifier:   notifier,
		recipients: recipients,
		publisher:  publisher,
		validate:   validator.New(),
		logger:     logger.With("source", source.ID()),
	}
}

// Process runs one cycle: fetch, diff against the store, persist new
// listings, notify every recipient and mark each record notified.
// Handshake errors are returned unchanged; per-listing errors end up in the
// outcome.
func (s *IngestionService) Process(ctx context.Context) (*domain.ProcessOutcome, error) {
	startTime := time.Now()
	outcome := &domain.ProcessOutcome{
		RunID:      uuid.NewString(),
		NewRecords: []domain.NewRecord{},
		Failures:   []domain.Failure{},
	}
	logger := s.logger.With("run_id", outcome.RunID)
	logger.Info("starting ingestion", "source_name", s.source.Name())

	listings, err := s.source.FetchListings(ctx)
	if err != nil {
		logger.Error("fetch listings failed", "error", err)
		s.recordRun(ctx, startTime, outcome, err)
		return nil, err
	}

	outcome.Discovered = len(listings)
	logger.Info("fetched listings from portal", "count", len(listings))

	if len(listings) == 0 {
		outcome.Duration = time.Since(startTime)
		s.recordRun(ctx, startTime, outcome, nil)
		return outcome, nil
	}

	fresh, err := s.filterNew(ctx, listings)
	if err != nil {
		logger.Error("existence check failed", "error", err)
		s.recordRun(ctx, startTime, outcome, err)
		return nil, err
	}
	outcome.Known = len(listings) - len(fresh)

	logger.Info("listings to ingest", "new", len(fresh), "known", outcome.Known)

	for i := range fresh {
		s.ingest(ctx, logger, &fresh[i], outcome)
	}

	outcome.Processed = len(outcome.NewRecords)
	outcome.Failed = len(outcome.Failures)
	outcome.Duration = time.Since(startTime)

	logger.Info("ingestion completed",
		"discovered", outcome.Discovered,
		"known", outcome.Known,
		"processed", outcome.Processed,
		"failed", outcome.Failed,
		"duration", outcome.Duration,
	)

	s.recordRun(ctx, startTime, outcome, nil)
	return outcome, nil
}

func (s *IngestionService) filterNew(ctx context.Context, listings []domain.ScrapedListing) ([]domain.ScrapedListing, error) {
	tripIDs := make([]string, len(listings))
	for i, l := range listings {
		tripIDs[i] = l.TripID
	}

	existing, err := s.loads.ExistsBatch(ctx, tripIDs)
	if err != nil {
		return nil, err
	}

	var fresh []domain.ScrapedListing
	for _, l := range listings {
		if _, ok := existing[l.TripID]; !ok {
			fresh = append(fresh, l)
		}
	}
	return fresh, nil
}

func (s *IngestionService) ingest(ctx context.Context, logger *slog.Logger, listing *domain.ScrapedListing, outcome *domain.ProcessOutcome) {
	logger = logger.With("trip_id", listing.TripID)

	if err := s.validateListing(listing); err != nil {
		logger.Warn("skipping invalid listing", "error", err)
		outcome.Failures = append(outcome.Failures, domain.Failure{
			TripID: listing.TripID,
			Error:  domain.InvalidListingReason,
		})
		return
	}

	record, err := s.loads.Save(ctx, listing.ToRecord())
	if err != nil {
		logger.Error("failed to save load", "error", err)
		outcome.Failures = append(outcome.Failures, domain.Failure{
			TripID: listing.TripID,
			Error:  err.Error(),
		})
		return
	}

	s.publish(ctx, logger, record)

	notificationErrors := s.notify(ctx, logger, record)

	// Marking happens even when the cycle's context is already done.
	if err := s.loads.MarkNotified(context.WithoutCancel(ctx), record.TripID); err != nil {
		logger.Error("failed to mark load notified", "error", err)
	} else {
		notifiedAt := time.Now()
		record.NotifiedAt = &notifiedAt
	}

	outcome.NewRecords = append(outcome.NewRecords, domain.NewRecord{
		LoadRecord:         record,
		NotificationErrors: notificationErrors,
	})
}

func (s *IngestionService) validateListing(listing *domain.ScrapedListing) error {
	err := s.validate.Struct(listing)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
	}
	return &domain.ValidationError{TripID: listing.TripID, Fields: fields}
}

// notify sends to each recipient in turn. A failing recipient never stops
// the others.
func (s *IngestionService) notify(ctx context.Context, logger *slog.Logger, record *domain.LoadRecord) []string {
	var errs []string
	for _, name := range s.recipients.Recipients() {
		phone, err := s.recipients.Lookup(name)
		if err == nil {
			err = s.notifier.Send(ctx, phone, record)
		}
		if err != nil {
			logger.Warn("notification failed", "recipient", name, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	return errs
}

func (s *IngestionService) publish(ctx context.Context, logger *slog.Logger, record *domain.LoadRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, record); err != nil {
		logger.Warn("failed to publish load event", "error", err)
	}
}

func (s *IngestionService) recordRun(ctx context.Context, startTime time.Time, outcome *domain.ProcessOutcome, cycleErr error) {
	if s.runs == nil {
		return
	}

	finished := time.Now()
	run := &domain.IngestionRun{
		ID:         outcome.RunID,
		StartedAt:  startTime,
		FinishedAt: &finished,
		Status:     domain.RunStatusCompleted,
		Discovered: outcome.Discovered,
		Processed:  outcome.Processed,
		Failed:     outcome.Failed,
	}
	if cycleErr != nil {
		msg := cycleErr.Error()
		run.Status = domain.RunStatusFailed
		run.Error = &msg
	}

	if err := s.runs.Record(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("failed to record ingestion run", "run_id", run.ID, "error", err)
	}
}
