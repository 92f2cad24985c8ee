package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Backend = (*RetryingBackend)(nil)

// RetryConfig configures exponential backoff for storage transfers.
type RetryConfig struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig returns the retry settings used when none are configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
	}
}

// RetryingBackend retries transfers that fail with a retryable error.
// Other errors are returned after the first attempt.
type RetryingBackend struct {
	next   storage.Backend
	config RetryConfig
	logger *slog.Logger
}

// WithRetry wraps a backend with exponential backoff retries.
func WithRetry(next storage.Backend, cfg RetryConfig, logger *slog.Logger) *RetryingBackend {
	defaults := DefaultRetryConfig()
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaults.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaults.MaxInterval
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = defaults.MaxElapsedTime
	}
	return &RetryingBackend{next: next, config: cfg, logger: logger}
}

// Upload uploads with retries.
func (b *RetryingBackend) Upload(ctx context.Context, localPath, key string) (int64, error) {
	return b.retry(ctx, "upload", key, func() (int64, error) {
		return b.next.Upload(ctx, localPath, key)
	})
}

// Download downloads with retries.
func (b *RetryingBackend) Download(ctx context.Context, key, localPath string) (int64, error) {
	return b.retry(ctx, "download", key, func() (int64, error) {
		return b.next.Download(ctx, key, localPath)
	})
}

func (b *RetryingBackend) retry(ctx context.Context, operation, key string, op func() (int64, error)) (int64, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.config.InitialInterval
	policy.MaxInterval = b.config.MaxInterval

	attempt := 0
	return backoff.Retry(ctx, func() (int64, error) {
		attempt++
		n, err := op()
		if err != nil && !errors.IsRetryable(err) {
			return 0, backoff.Permanent(err)
		}
		return n, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(b.config.MaxAttempts),
		backoff.WithMaxElapsedTime(b.config.MaxElapsedTime),
		backoff.WithNotify(func(err error, wait time.Duration) {
			b.logger.Warn("storage transfer failed, retrying",
				"operation", operation,
				"key", key,
				"attempt", attempt,
				"retry_in", wait,
				"error", err,
			)
		}),
	)
}

// Close closes the wrapped backend.
func (b *RetryingBackend) Close() error {
	return b.next.Close()
}
