package llm

import (
	"context"
	"math/rand/v2"
	"time"
)

const maxBackoff = 30 * time.Second

// Backoff returns the wait before attempt n (0-indexed): base doubled per
// attempt, capped, plus up to 50% jitter.
func Backoff(attempt int, base time.Duration) time.Duration {
	d := base << uint(attempt)
	if d > maxBackoff || d <= 0 && base > 0 {
		d = maxBackoff
	}
	if d < 2 {
		return d
	}
	return d + time.Duration(rand.Int64N(int64(d)/2))
}

// retry calls fn until it succeeds, fails with a non-retryable error, or
// maxRetries extra attempts are spent.
func retry(ctx context.Context, maxRetries int, base time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(Backoff(attempt, base)):
		}
	}
	return err
}
