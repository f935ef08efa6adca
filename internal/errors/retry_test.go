package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsAfterTransientError(t *testing.T) {
	// Given: a function that fails twice then succeeds
	attempts := 0
	fn := func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", New(ErrCodeDaemonNotRunning, "not yet", nil)
		}
		return "ok", nil
	}

	// When: retrying
	got, err := Retry(context.Background(), fastRetry(), true, fn)

	// Then: succeeds on the third attempt
	assert.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestRetry_FailsAfterMaxRetries(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastRetry(), false, func() (int, error) {
		attempts++
		return 0, errors.New("persistent")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 retries")
	assert.Equal(t, 4, attempts)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastRetry(), true, func() (int, error) {
		attempts++
		return 0, New(ErrCodeConfigInvalid, "bad config", nil)
	})

	assert.True(t, IsCode(err, ErrCodeConfigInvalid))
	assert.Equal(t, 1, attempts)
}

func TestRetry_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, fastRetry(), false, func() (int, error) {
		return 1, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}
