package resilience

import (
	"context"
	"time"
)

// RetryConfig bounds the retry loop for recoverable failures.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first call.
	MaxRetries int `json:"max_retries"`
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration `json:"initial_backoff"`
	// BackoffFactor multiplies the delay after each retry.
	BackoffFactor float64 `json:"backoff_factor"`
	// MaxBackoff caps exponential growth.
	MaxBackoff time.Duration `json:"max_backoff"`
}

// DefaultRetryConfig returns conservative retry settings: two retries with
// 500ms initial backoff doubling up to 8s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		BackoffFactor:  2.0,
		MaxBackoff:     8 * time.Second,
	}
}

// Retry executes fn with bounded exponential backoff. Only failures whose
// category is recoverable are retried; client errors, parse failures and
// circuit-open rejections return immediately. Context cancellation aborts
// the backoff wait.
func Retry(ctx context.Context, cfg RetryConfig, fn func() ([]byte, *ServiceError)) ([]byte, *ServiceError) {
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	factor := cfg.BackoffFactor
	if factor < 1 {
		factor = 2.0
	}

	var lastErr *ServiceError
	for attempt := 0; ; attempt++ {
		data, err := fn()
		if err == nil {
			return data, nil
		}
		if !err.Category.Recoverable() || attempt >= cfg.MaxRetries {
			return nil, err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * factor)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
}
