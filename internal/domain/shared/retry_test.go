package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}
	fault := NewStorageError("insert", errors.New("connection reset"))

	t.Run("RetriesStorageFaults", func(t *testing.T) {
		calls := 0
		out, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", fault
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, 3, calls)
	})

	t.Run("StopsOnDomainError", func(t *testing.T) {
		calls := 0
		_, err := Retry(context.Background(), policy, func(ctx context.Context) (int, error) {
			calls++
			return 0, ErrInvalidInput{Field: "name", Reason: "must not be empty"}
		})
		assert.Equal(t, KindInvalidInput, KindOf(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("GivesUpAfterMaxAttempts", func(t *testing.T) {
		calls := 0
		_, err := Retry(context.Background(), policy, func(ctx context.Context) (int, error) {
			calls++
			return 0, fault
		})
		assert.True(t, IsRetryable(err))
		assert.Equal(t, 3, calls)
	})

	t.Run("StopsWhenContextCanceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := Retry(ctx, RetryPolicy{MaxAttempts: 5, Backoff: time.Hour}, func(ctx context.Context) (int, error) {
			calls++
			cancel()
			return 0, fault
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("ZeroPolicyRunsOnce", func(t *testing.T) {
		calls := 0
		_, _ = Retry(context.Background(), RetryPolicy{}, func(ctx context.Context) (int, error) {
			calls++
			return 0, fault
		})
		assert.Equal(t, 1, calls)
	})
}
