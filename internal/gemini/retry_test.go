package gemini

import (
	"testing"
	"time"

	"github.com/gemini-router/api-gateway/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay_ExponentialGrowth(t *testing.T) {
	cfg := config.RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}

	assert.Equal(t, 100*time.Millisecond, backoffDelay(cfg, 1))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(cfg, 2))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(cfg, 3))
}

func TestBackoffDelay_CappedAtMaxDelay(t *testing.T) {
	cfg := config.RetryConfig{
		InitialDelay: time.Second,
		MaxDelay:     2 * time.Second,
	}

	assert.Equal(t, 2*time.Second, backoffDelay(cfg, 10))
}

func TestBackoffDelay_JitterStaysWithinBounds(t *testing.T) {
	cfg := config.RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		JitterFactor: 0.25,
	}

	for i := 0; i < 100; i++ {
		delay := backoffDelay(cfg, 2)
		assert.GreaterOrEqual(t, delay, 150*time.Millisecond)
		assert.LessOrEqual(t, delay, 250*time.Millisecond)
	}
}

func TestBackoffDelay_ZeroAttempt(t *testing.T) {
	cfg := config.RetryConfig{InitialDelay: time.Second, MaxDelay: time.Minute}
	assert.Equal(t, time.Duration(0), backoffDelay(cfg, 0))
}
