// Package retry runs outbound calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy controls how many times an operation is attempted and how long to
// wait between attempts. Backoff doubles from InitialBackoff up to MaxBackoff.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Bypass runs the operation once and returns whatever it produced.
	Bypass bool
}

// DefaultPolicy is six attempts (five retries) waiting 5s, 10s, 20s, 30s, 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    6,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Executor applies a Policy to named operations and logs failed attempts.
type Executor struct {
	policy Policy
	logger *slog.Logger
}

func New(policy Policy, logger *slog.Logger) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Executor{
		policy: policy,
		logger: logger,
	}
}

// Permanent marks err as not worth retrying. Do returns err itself, unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a Permanent error, or the policy is
// exhausted. The last error is returned as-is so callers can match on it.
func Do[T any](ctx context.Context, e *Executor, name string, op func(ctx context.Context) (T, error)) (T, error) {
	if e.policy.Bypass {
		res, err := op(ctx)
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return res, perm.Err
		}
		return res, err
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		return op(ctx)
	}

	notify := func(err error, wait time.Duration) {
		e.logger.Warn("operation failed, retrying",
			"operation", name,
			"attempt", attempt,
			"max_attempts", e.policy.MaxAttempts,
			"backoff", wait,
			"error", err,
		)
	}

	return backoff.RetryNotifyWithData(operation, e.newBackOff(ctx), notify)
}

func (e *Executor) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.policy.InitialBackoff
	exp.MaxInterval = e.policy.MaxBackoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(
		backoff.WithMaxRetries(exp, uint64(e.policy.MaxAttempts-1)),
		ctx,
	)
}
