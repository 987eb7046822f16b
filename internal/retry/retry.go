// Package retry re-runs short transactional closures that failed on a
// serialization conflict. The policy is deliberately small: a fixed
// attempt count with exponential backoff, and everything injectable so
// tests never sleep.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy drives Do. Sleep is swappable in tests; the zero value of
// either func field falls back to the defaults.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Sleep       func(d time.Duration)
}

// Default matches the write path: three attempts with 1s, 2s, 4s waits.
func Default() Policy {
	return Policy{MaxAttempts: 3, Backoff: Exponential(time.Second), Sleep: time.Sleep}
}

// Exponential returns base<<attempt: base, 2*base, 4*base, ...
func Exponential(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base << attempt
	}
}

// Do runs fn up to MaxAttempts times, sleeping between attempts, as
// long as retryable reports the returned error as transient. A
// non-retryable error is returned as-is immediately. When attempts run
// out, the last error is wrapped with the attempt count so callers and
// logs can tell a retried failure from a first-try one.
func (p Policy) Do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = Exponential(time.Second)
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			sleep(backoff(attempt - 1))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}
