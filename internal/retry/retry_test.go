package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func instantPolicy(attempts int) (Policy, *[]time.Duration) {
	var waits []time.Duration
	p := Policy{
		MaxAttempts: attempts,
		Backoff:     Exponential(time.Second),
		Sleep:       func(d time.Duration) { waits = append(waits, d) },
	}
	return p, &waits
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	p, waits := instantPolicy(3)

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, func(err error) bool { return errors.Is(err, errTransient) })

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(*waits) != 2 || (*waits)[0] != time.Second || (*waits)[1] != 2*time.Second {
		t.Fatalf("expected 1s,2s backoff, got %v", *waits)
	}
}

func TestDoExhaustionWrapsAttemptCount(t *testing.T) {
	p, waits := instantPolicy(3)

	err := p.Do(context.Background(), func() error {
		return errTransient
	}, func(err error) bool { return errors.Is(err, errTransient) })

	if err == nil {
		t.Fatalf("expected an error after exhausting attempts")
	}
	if !errors.Is(err, errTransient) {
		t.Fatalf("exhaustion error must wrap the cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "3 attempts") {
		t.Fatalf("error should report the attempt count, got %q", err)
	}
	if len(*waits) != 2 {
		t.Fatalf("expected 2 sleeps for 3 attempts, got %d", len(*waits))
	}
}

func TestDoNonRetryableFailsImmediately(t *testing.T) {
	p, waits := instantPolicy(3)
	permanent := errors.New("permanent")

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return permanent
	}, func(err error) bool { return errors.Is(err, errTransient) })

	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error as-is, got %v", err)
	}
	if calls != 1 || len(*waits) != 0 {
		t.Fatalf("non-retryable errors must not be retried: calls=%d waits=%d", calls, len(*waits))
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	p, _ := instantPolicy(5)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := p.Do(ctx, func() error {
		calls++
		cancel()
		return errTransient
	}, func(err error) bool { return errors.Is(err, errTransient) })

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no further attempts after cancel, got %d", calls)
	}
}

func TestExponentialDoubles(t *testing.T) {
	backoff := Exponential(time.Second)
	for i, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		if got := backoff(i); got != want {
			t.Fatalf("attempt %d: expected %v, got %v", i, want, got)
		}
	}
}
