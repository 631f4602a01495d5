package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"cargo_ingest/internal/cache"
	"cargo_ingest/internal/domain"
)

// ErrCycleInProgress is returned by RunOnce while another cycle holds the guard.
var ErrCycleInProgress = errors.New("ingestion cycle already in progress")

// Processor defines the interface for one ingestion cycle.
type Processor interface {
	Process(ctx context.Context) (*domain.ProcessOutcome, error)
}

// Invalidator drops cached responses by tag.
type Invalidator interface {
	InvalidateByTag(tag string) int
}

// Window is the daily span of whole hours, StartHour through EndHour
// inclusive, in which scheduled cycles fire.
type Window struct {
	StartHour    int
	EndHour      int
	Location     *time.Location
	WeekdaysOnly bool
}

func (w Window) Contains(t time.Time) bool {
	if w.Location != nil {
		t = t.In(w.Location)
	}
	if w.WeekdaysOnly {
		if day := t.Weekday(); day == time.Saturday || day == time.Sunday {
			return false
		}
	}
	h := t.Hour()
	return h >= w.StartHour && h <= w.EndHour
}

type Config struct {
	Interval time.Duration
	Window   Window
}

type Scheduler struct {
	processor   Processor
	invalidator Invalidator
	cfg         Config
	running     atomic.Bool
	inflight    sync.WaitGroup
	now         func() time.Time
	logger      *slog.Logger
}

func NewScheduler(processor Processor, invalidator Invalidator, cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		processor:   processor,
		invalidator: invalidator,
		cfg:         cfg,
		now:         time.Now,
		logger:      logger.With("component", "scheduler"),
	}
}

// Start fires a cycle on every tick inside the window until ctx is done,
// then waits for the in-flight cycle to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"interval", s.cfg.Interval,
		"start_hour", s.cfg.Window.StartHour,
		"end_hour", s.cfg.Window.EndHour,
		"weekdays_only", s.cfg.Window.WeekdaysOnly,
	)

	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.inflight.Wait()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.cfg.Window.Contains(s.now()) {
		s.logger.Debug("outside active window, skipping tick")
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.Trigger(ctx)
	}()
}

// Trigger runs one cycle unless one is already running, in which case the
// call is a logged no-op. It reports whether a cycle ran.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	_, err := s.RunOnce(ctx)
	if errors.Is(err, ErrCycleInProgress) {
		s.logger.Warn("previous cycle still running, skipping trigger")
		return false
	}
	if err != nil {
		s.logger.Error("ingestion cycle failed", "error", err)
	}
	return true
}

// RunOnce runs a guarded cycle and invalidates cached reads when it succeeds.
func (s *Scheduler) RunOnce(ctx context.Context) (*domain.ProcessOutcome, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer s.running.Store(false)

	outcome, err := s.processor.Process(ctx)
	if err != nil {
		return nil, err
	}

	Invalidate(s.invalidator)
	return outcome, nil
}

// Running reports whether a guarded cycle is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Invalidate drops the cached reads a completed cycle makes stale.
func Invalidate(inv Invalidator) {
	if inv == nil {
		return
	}
	inv.InvalidateByTag(cache.TagLoads)
	inv.InvalidateByTag(cache.TagStatus)
}
