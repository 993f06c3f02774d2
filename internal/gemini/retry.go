package gemini

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/gemini-router/api-gateway/internal/config"
)

// backoffDelay calculates the wait before the next attempt: exponential
// growth from InitialDelay capped at MaxDelay, with symmetric jitter so
// concurrent retries do not synchronize against the provider.
func backoffDelay(cfg config.RetryConfig, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(2, float64(attempt-1)))
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	if cfg.JitterFactor > 0 {
		jitter := float64(delay) * cfg.JitterFactor * (rand.Float64()*2 - 1)
		delay = time.Duration(float64(delay) + jitter)
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

// sleep waits for the given duration unless the caller goes away first
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
