package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/portfolio-ledger/internal/errors"
)

func fastConfig() *RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func TestWithExponentialBackoff(t *testing.T) {
	t.Run("succeeds after retryable failures", func(t *testing.T) {
		calls := 0
		result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
			calls++
			if attempt < 3 {
				return apperrors.NewDatabaseError("insert", errors.New("connection reset"))
			}
			return nil
		})

		assert.True(t, result.Success)
		assert.Equal(t, 3, result.Attempts)
		assert.Equal(t, 3, calls)
		assert.NoError(t, result.LastError)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
			calls++
			return apperrors.NewInvalidParameterError("period", "must be positive")
		})

		assert.False(t, result.Success)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		cfg := fastConfig()
		cfg.MaxAttempts = 3
		err := Do(context.Background(), cfg, func(ctx context.Context, attempt int) error {
			return apperrors.NewCacheError("get", errors.New("timeout"))
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 3 attempts")
	})

	t.Run("honours cancellation during backoff", func(t *testing.T) {
		cfg := fastConfig()
		cfg.InitialDelay = time.Hour
		cfg.MaxDelay = time.Hour
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := WithExponentialBackoff(ctx, cfg, func(ctx context.Context, attempt int) error {
			return apperrors.NewDatabaseError("select", errors.New("down"))
		})

		assert.False(t, result.Success)
		assert.ErrorIs(t, result.LastError, context.Canceled)
	})
}

func TestBackoffDelayIsCapped(t *testing.T) {
	cfg := &RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, backoffDelay(cfg, 1))
	assert.Equal(t, 4*time.Second, backoffDelay(cfg, 3))
	assert.Equal(t, 5*time.Second, backoffDelay(cfg, 10))
}
