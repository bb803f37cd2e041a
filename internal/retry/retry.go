package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Notify is called after a failed attempt that will be retried
type Notify func(err error, next time.Duration)

// Do runs fn up to attempts times with a constant delay between attempts.
// fn receives the 1-based attempt number. An error wrapped with Permanent stops
// the loop and is returned unwrapped.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error) error {
	return DoNotify(ctx, attempts, delay, fn, nil)
}

func DoNotify(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error, notify Notify) error {
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		return fn(attempt)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)),
		ctx,
	)

	return backoff.RetryNotify(operation, policy, backoff.Notify(notify))
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
