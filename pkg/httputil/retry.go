package httputil

import (
	"context"
	"time"
)

// Backoff retries an operation with a doubling delay.
type Backoff struct {
	// Attempts is the total number of tries. Values below 1 mean one try.
	Attempts int

	// Delay is the wait before the second try. It doubles after each
	// failure, up to MaxDelay when that is positive.
	Delay    time.Duration
	MaxDelay time.Duration

	// Retryable decides whether a failure earns another try. Nil means
	// [Transient].
	Retryable func(error) bool

	// OnRetry, if set, is called before each wait with the failed attempt
	// number (from 1) and its error.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Do runs fn until it succeeds, fails with an error Retryable rejects, or
// the attempts run out; the last error is returned. Cancelling ctx during a
// wait returns ctx.Err().
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	retryable := b.Retryable
	if retryable == nil {
		retryable = Transient
	}
	attempts := max(b.Attempts, 1)
	delay := b.Delay

	for i := 1; ; i++ {
		err := fn()
		if err == nil || i >= attempts || !retryable(err) {
			return err
		}
		if b.OnRetry != nil {
			b.OnRetry(i, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if b.MaxDelay > 0 && delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
}

// Retry runs fn up to attempts times, doubling delay between tries and
// retrying only [Transient] failures.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	return Backoff{Attempts: attempts, Delay: delay}.Do(ctx, fn)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
