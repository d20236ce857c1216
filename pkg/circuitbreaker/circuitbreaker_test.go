package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func failing(ctx context.Context) error { return errBoom }
func passing(ctx context.Context) error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	var transitions []string
	cb := New("test",
		WithFailureThreshold(3),
		WithTimeout(time.Minute),
		WithMaxHalfOpenRequests(2),
		WithClock(clock.Now),
		WithOnStateChange(func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, failing), errBoom)
	}
	assert.True(t, cb.IsOpen())
	assert.ErrorIs(t, cb.Execute(ctx, passing), ErrCircuitOpen)

	clock.Advance(time.Minute)
	require.NoError(t, cb.Execute(ctx, passing))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, passing))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clock.Now))
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	clock.Advance(time.Second)

	assert.ErrorIs(t, cb.Execute(ctx, failing), errBoom)
	assert.True(t, cb.IsOpen())
	assert.ErrorIs(t, cb.Execute(ctx, passing), ErrCircuitOpen)
}

func TestBreakerIgnoresCancellationAndMisses(t *testing.T) {
	errMiss := errors.New("miss")
	cb := CacheBreaker(nil, func(err error) bool { return errors.Is(err, errMiss) })
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return errMiss })
		_ = cb.Execute(ctx, func(context.Context) error { return context.Canceled })
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Counts().TotalFailures)
}

func TestCallRecordsOutcome(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	ctx := context.Background()

	v, err := Call(ctx, cb, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = Call(ctx, cb, func(context.Context) (int, error) { return 0, errBoom })
	assert.ErrorIs(t, err, errBoom)

	for i := 0; i < 2; i++ {
		_, err = Call(ctx, cb, func(context.Context) (int, error) { return 1, nil })
		assert.True(t, IsRejected(err))
	}
	assert.Equal(t, 2, cb.Counts().Requests)
}
