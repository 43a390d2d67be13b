package shared

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a retryable failure is attempted again
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // Doubled after every failed attempt
}

// Retry calls fn until it succeeds, fails with a non-retryable error or the
// policy is exhausted. Callers must make fn safe to repeat, for example by
// passing the same request token on every attempt.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(policy.MaxAttempts, 1)

	var (
		out T
		err error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && policy.Backoff > 0 {
			timer := time.NewTimer(policy.Backoff << (attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return out, ctx.Err()
			case <-timer.C:
			}
		}

		out, err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return out, err
		}
	}
	return out, err
}
