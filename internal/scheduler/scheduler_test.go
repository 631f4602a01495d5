package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargo_ingest/internal/cache"
	"cargo_ingest/internal/domain"
)

type blockingProcessor struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
}

func (p *blockingProcessor) Process(ctx context.Context) (*domain.ProcessOutcome, error) {
	p.calls.Add(1)
	p.started <- struct{}{}
	select {
	case <-p.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return &domain.ProcessOutcome{Processed: 1}, nil
}

type recordingInvalidator struct {
	mu   sync.Mutex
	tags []string
}

func (r *recordingInvalidator) InvalidateByTag(tag string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tag)
	return 0
}

func (r *recordingInvalidator) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tags...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrigger_OverlappingCycleIsSkipped(t *testing.T) {
	proc := newBlockingProcessor()
	inv := &recordingInvalidator{}
	s := NewScheduler(proc, inv, Config{Interval: time.Minute}, testLogger())
	ctx := context.Background()

	done := make(chan bool)
	go func() { done <- s.Trigger(ctx) }()
	<-proc.started

	assert.True(t, s.Running())
	assert.False(t, s.Trigger(ctx))
	_, err := s.RunOnce(ctx)
	assert.ErrorIs(t, err, ErrCycleInProgress)
	assert.Equal(t, int32(1), proc.calls.Load())

	close(proc.release)
	assert.True(t, <-done)
	assert.False(t, s.Running())

	assert.True(t, s.Trigger(ctx))
	<-proc.started
	assert.Equal(t, int32(2), proc.calls.Load())
	assert.Equal(t, []string{cache.TagLoads, cache.TagStatus, cache.TagLoads, cache.TagStatus}, inv.Tags())
}

func TestRunOnce_FailureClearsGuardWithoutInvalidating(t *testing.T) {
	proc := newBlockingProcessor()
	proc.err = &domain.FetchError{Status: 503, StatusText: "Service Unavailable"}
	close(proc.release)
	inv := &recordingInvalidator{}
	s := NewScheduler(proc, inv, Config{Interval: time.Minute}, testLogger())

	outcome, err := s.RunOnce(context.Background())

	assert.Nil(t, outcome)
	var fetchErr *domain.FetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.False(t, s.Running())
	assert.Empty(t, inv.Tags())
}

func TestRunOnce_RunsToCompletionWithoutDeadline(t *testing.T) {
	proc := &deadlineProcessor{}
	inv := &recordingInvalidator{}
	s := NewScheduler(proc, inv, Config{Interval: time.Minute}, testLogger())

	outcome, err := s.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)
	assert.False(t, proc.hadDeadline)
	assert.Equal(t, []string{cache.TagLoads, cache.TagStatus}, inv.Tags())
}

type deadlineProcessor struct {
	hadDeadline bool
}

func (p *deadlineProcessor) Process(ctx context.Context) (*domain.ProcessOutcome, error) {
	_, p.hadDeadline = ctx.Deadline()
	return &domain.ProcessOutcome{Processed: 1}, nil
}

func TestWindow_Contains(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	w := Window{StartHour: 8, EndHour: 18, Location: loc}
	weekdays := w
	weekdays.WeekdaysOnly = true

	tests := []struct {
		name   string
		window Window
		at     time.Time
		want   bool
	}{
		{name: "before start", window: w, at: time.Date(2024, 3, 4, 7, 59, 0, 0, loc), want: false},
		{name: "at start", window: w, at: time.Date(2024, 3, 4, 8, 0, 0, 0, loc), want: true},
		{name: "last hour", window: w, at: time.Date(2024, 3, 4, 18, 50, 0, 0, loc), want: true},
		{name: "after end", window: w, at: time.Date(2024, 3, 4, 19, 0, 0, 0, loc), want: false},
		{name: "utc converted to local", window: w, at: time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC), want: true},
		{name: "saturday allowed", window: w, at: time.Date(2024, 3, 2, 10, 0, 0, 0, loc), want: true},
		{name: "saturday weekdays only", window: weekdays, at: time.Date(2024, 3, 2, 10, 0, 0, 0, loc), want: false},
		{name: "monday weekdays only", window: weekdays, at: time.Date(2024, 3, 4, 10, 0, 0, 0, loc), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.window.Contains(tt.at))
		})
	}
}

func TestStart_SkipsTicksOutsideWindow(t *testing.T) {
	proc := newBlockingProcessor()
	close(proc.release)
	s := NewScheduler(proc, nil, Config{
		Interval: 5 * time.Millisecond,
		Window:   Window{StartHour: 8, EndHour: 18, Location: time.UTC},
	}, testLogger())
	s.now = func() time.Time { return time.Date(2024, 3, 4, 3, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := s.Start(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(0), proc.calls.Load())
}

func TestStart_RunsInsideWindowAndWaitsOnShutdown(t *testing.T) {
	proc := newBlockingProcessor()
	close(proc.release)
	inv := &recordingInvalidator{}
	s := NewScheduler(proc, inv, Config{
		Interval: time.Hour,
		Window:   Window{StartHour: 0, EndHour: 23, Location: time.UTC},
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	<-proc.started
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, int32(1), proc.calls.Load())
}
