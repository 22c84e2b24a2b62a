package usecase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/domain"
)

// RetryConfig bounds the retry policy for transient storage failures.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig returns the policy used when none is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     1 * time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// BackoffRetrier implements Retrier with exponential backoff. Only errors
// classified as transient storage failures are retried.
type BackoffRetrier struct {
	cfg     RetryConfig
	metrics Metrics
	logger  zerolog.Logger
}

// NewBackoffRetrier creates a retrier. A nil metrics sink is allowed.
func NewBackoffRetrier(cfg RetryConfig, metrics Metrics, logger zerolog.Logger) *BackoffRetrier {
	if metrics == nil {
		metrics = NopMetrics{}
	}

	return &BackoffRetrier{cfg: cfg, metrics: metrics, logger: logger}
}

// Retry executes operation, retrying while it fails transiently.
func (r *BackoffRetrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = r.cfg.MaxElapsedTime

	retryCount := 0

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if !domain.IsTransientStorageError(err) {
			return backoff.Permanent(err)
		}

		retryCount++
		if retryCount > r.cfg.MaxRetries {
			return backoff.Permanent(err)
		}

		r.metrics.AppendRetried()
		r.logger.Warn().
			Err(err).
			Int("retry", retryCount).
			Msg("transient storage error, retrying")

		return err
	}, backoff.WithContext(b, ctx))
}
