package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  2.0,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	data, err := Retry(context.Background(), fastRetryConfig(3), func() ([]byte, *ServiceError) {
		attempts++
		if attempts < 3 {
			return nil, NewServiceError("stats", "t", CategoryNetwork, errors.New("reset"))
		}
		return []byte("ok"), nil
	})

	require.Nil(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.Equal(t, 3, attempts)
}

func TestRetryDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastRetryConfig(5), func() ([]byte, *ServiceError) {
		attempts++
		return nil, NewServiceError("stats", "t", CategoryHTTPClient, errors.New("400"))
	})

	require.NotNil(t, err)
	assert.Equal(t, CategoryHTTPClient, err.Category)
	assert.Equal(t, 1, attempts, "client errors must not be retried")
}

func TestRetryDoesNotRetryCircuitOpen(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastRetryConfig(5), func() ([]byte, *ServiceError) {
		attempts++
		return nil, NewServiceError("stats", "t", CategoryCircuitOpen, ErrCircuitOpen)
	})

	require.NotNil(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastRetryConfig(2), func() ([]byte, *ServiceError) {
		attempts++
		return nil, NewServiceError("stats", "t", CategoryTimeout, errors.New("deadline"))
	})

	require.NotNil(t, err)
	assert.Equal(t, 3, attempts, "one initial attempt plus two retries")
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	cfg := RetryConfig{MaxRetries: 10, InitialBackoff: time.Hour, BackoffFactor: 2}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := Retry(ctx, cfg, func() ([]byte, *ServiceError) {
			attempts++
			return nil, NewServiceError("stats", "t", CategoryNetwork, errors.New("reset"))
		})
		assert.NotNil(t, err)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retry did not abort on context cancellation")
	}
	assert.Equal(t, 1, attempts)
}
