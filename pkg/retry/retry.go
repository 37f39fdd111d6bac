// Package retry runs an operation under an exponential backoff policy.
//
// The loop is iterative: a failed attempt waits min(Base*2^(a-1), Max) and
// runs the operation again until MaxRetries retries have been spent.
package retry

import (
	"context"
	"time"
)

const (
	DefaultBase = time.Second
	DefaultMax  = 10 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// NotifyFunc is called after a failed attempt that will be retried.
// attempt is 1-based; remaining counts retries still available including
// the one about to run.
type NotifyFunc func(attempt, remaining int, err error, delay time.Duration)

// Policy describes how many times and how long to wait between attempts.
type Policy struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration

	// Sleep defaults to a context-aware timer. Tests substitute a fake.
	Sleep SleepFunc
}

// New returns a policy with the default 1s base and 10s cap.
func New(maxRetries int) Policy {
	return Policy{MaxRetries: maxRetries, Base: DefaultBase, Max: DefaultMax}
}

// Backoff returns the delay after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	base, max := p.Base, p.Max
	if base <= 0 {
		base = DefaultBase
	}
	if max <= 0 {
		max = DefaultMax
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Do runs fn until it succeeds or MaxRetries retries are exhausted.
// It returns the number of attempts made and the error of the final attempt.
// If ctx is done during a backoff wait, Do stops and returns the last
// attempt's error.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error, notify NotifyFunc) (int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	attempts := 0
	for {
		err := fn(ctx, attempts+1)
		attempts++
		if err == nil {
			return attempts, nil
		}
		if attempts > maxRetries {
			return attempts, err
		}

		delay := p.Backoff(attempts)
		if notify != nil {
			notify(attempts, maxRetries-attempts+1, err, delay)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return attempts, err
		}
	}
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
