package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fast(opts ...Option) []Option {
	return append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond)}, opts...)
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errTransient)
		}
		return nil
	}, fast(WithMaxAttempts(5))...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPlainAndPermanentErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	}, fast()...)
	assert.Equal(t, errTransient, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errTransient)
	}, fast(WithRetryIf(func(error) bool { return true }))...)
	assert.Equal(t, errTransient, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	var attempts []int
	err := Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errTransient)
	}, fast(WithMaxAttempts(3), WithOnRetry(func(attempt int, err error, d time.Duration) {
		attempts = append(attempts, attempt)
	}))...)

	assert.Equal(t, errTransient, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransactionRetrierUsesPredicate(t *testing.T) {
	calls := 0
	r := TransactionRetrier(func(err error) bool { return errors.Is(err, errTransient) })
	r.config.InitialDelay = time.Millisecond

	value, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errTransient
		}
		return 42, nil
	}, WithRetryIf(r.Config().RetryIf), WithInitialDelay(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 5, r.Config().MaxAttempts)
}

func TestBackoffIsCapped(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond), WithJitter(0))

	assert.Equal(t, 100*time.Millisecond, r.backoff(1))
	assert.Equal(t, 200*time.Millisecond, r.backoff(2))
	assert.Equal(t, 300*time.Millisecond, r.backoff(3))
	assert.Equal(t, 300*time.Millisecond, r.backoff(8))
}
