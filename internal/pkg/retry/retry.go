// Package retry runs fallible operations with exponential backoff and jitter.
// It is used around settings-store reads and writes, where a single transient
// failure should not abort an admin action.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/ignite/feed-aggregator/internal/pkg/logger"
)

// Policy configures how an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy retries once after a short pause.
func DefaultPolicy() Policy {
	return Policy{Attempts: 2, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// permanent marks an error that must not be retried.
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts are
// exhausted, or ctx is done. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		if attempt > 0 {
			delay := p.delay(attempt)
			logger.Warn("retrying operation",
				"op", op, "attempt", attempt+1, "max_attempts", p.Attempts,
				"delay", delay.String(), "error", lastErr.Error())

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		var perm permanent
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
	}
	return lastErr
}

// delay returns the backoff for the given retry attempt.
// Uses exponential backoff with full jitter: random(0, min(maxDelay, baseDelay * 2^(attempt-1))).
func (p Policy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	expDelay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && expDelay > float64(p.MaxDelay) {
		expDelay = float64(p.MaxDelay)
	}
	return time.Duration(rand.Float64() * expDelay)
}
