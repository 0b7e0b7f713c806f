package providers

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryConfig controls exponential backoff for transient generation failures.
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first (default 3)
	BaseDelay   time.Duration // initial backoff delay (default 1s)
	MaxDelay    time.Duration // backoff ceiling (default 30s)
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// withRetry runs fn up to cfg.MaxAttempts times, backing off between
// attempts with doubling delay plus jitter. Auth and content-safety
// failures are surfaced immediately, never retried.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() (string, error)) (string, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err

		var ge *GenerationError
		if errors.As(err, &ge) && !ge.Retryable() {
			return "", err
		}

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-time.After(backoffWithJitter(cfg.BaseDelay, cfg.MaxDelay, attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", lastErr
}

// backoffWithJitter computes min(base * 2^attempt, max) +/- 25% jitter.
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt)
	if delay > max {
		delay = max
	}
	quarter := delay / 4
	if quarter > 0 {
		delay += time.Duration(rand.Int63n(int64(quarter*2))) - quarter
	}
	return delay
}
