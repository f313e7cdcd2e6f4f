package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiring-pipeline/internal/common/logger"
)

var errTransient = errors.New("connection reset")

func fastConfig(retries int) Config {
	return Config{MaxRetries: retries, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(2), "fetch", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("not found")
	calls := 0
	_, err := Do(context.Background(), fastConfig(5), "fetch", func(context.Context) (int, error) {
		calls++
		return 0, permanent
	}, func(err error) bool { return errors.Is(err, errTransient) })

	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(2), "fetch", func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Equal(t, 3, calls)
}

func TestDo_ZeroBudgetReturnsErrorUnwrapped(t *testing.T) {
	_, err := Do(context.Background(), fastConfig(0), "write", func(context.Context) (int, error) {
		return 0, errTransient
	}, nil)
	assert.Same(t, errTransient, err)
}

func TestDo_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, BaseDelay: time.Hour}

	calls := 0
	_, err := Do(ctx, cfg, "fetch", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.Equal(t, 1, calls)
}

func TestBackoff_Capped(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, backoff(cfg, 0))
	assert.Equal(t, 200*time.Millisecond, backoff(cfg, 1))
	assert.Equal(t, 300*time.Millisecond, backoff(cfg, 2))
}

func TestWithBackoff(t *testing.T) {
	log := logger.NewTestLogger(t)

	attempts := 0
	err := WithBackoff(func() error {
		attempts++
		if attempts < 2 {
			return errTransient
		}
		return nil
	}, 3, time.Millisecond, log, "PostgreSQL connection")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	err = WithBackoff(func() error { return errTransient }, 2, time.Millisecond, log, "Redis connection")
	assert.ErrorContains(t, err, "Redis connection failed after 2 attempts")
}
