package retry

import (
	"context"
	"fmt"
	"time"

	"hiring-pipeline/internal/common/logger"
)

// Config defines retry behavior for transient failures.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultConfig = Config{
	MaxRetries: 2,
	BaseDelay:  250 * time.Millisecond,
	MaxDelay:   5 * time.Second,
}

// Do runs fn until it succeeds, the error is not retryable, the retry budget
// is spent or ctx is done. A nil retryable retries every error.
func Do[T any](
	ctx context.Context,
	cfg Config,
	operationName string,
	fn func(context.Context) (T, error),
	retryable func(error) bool,
) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-time.After(backoff(cfg, attempt)):
		case <-ctx.Done():
			return zero, fmt.Errorf("operation %s cancelled after %d attempts: %w", operationName, attempt+1, lastErr)
		}
	}

	if cfg.MaxRetries == 0 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("operation %s failed after %d retries: %w", operationName, cfg.MaxRetries, lastErr)
}

func backoff(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseDelay * time.Duration(1<<attempt)
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

// WithBackoff retries a startup step such as opening a database connection.
func WithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
