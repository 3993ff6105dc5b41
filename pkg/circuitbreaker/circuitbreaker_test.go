package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("redis down")

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []string
	cb := New("test",
		WithFailureThreshold(2),
		WithTimeout(time.Hour),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.True(t, cb.IsClosed())
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.True(t, cb.IsOpen())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
	assert.Equal(t, 2, cb.Counts().TotalFailures)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithTimeout(10*time.Millisecond),
	)

	require.Error(t, cb.Execute(context.Background(), fail))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Execute(context.Background(), ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithTimeout(10*time.Millisecond),
	)

	require.Error(t, cb.Execute(context.Background(), fail))
	time.Sleep(20 * time.Millisecond)

	require.Error(t, cb.Execute(context.Background(), fail))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_Fallback(t *testing.T) {
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Hour))
	_ = cb.Execute(context.Background(), fail)

	var fallbackErr error
	err := cb.ExecuteWithFallback(context.Background(), ok, func(err error) error {
		fallbackErr = err
		return nil
	})
	assert.NoError(t, err)
	assert.ErrorIs(t, fallbackErr, ErrCircuitOpen)

	cb.Reset()
	assert.True(t, cb.IsClosed())
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	miss := errors.New("cache miss")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, miss) }),
	)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return miss }), miss)
	}
	assert.True(t, cb.IsClosed())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestCacheBreaker_IgnoresCancellation(t *testing.T) {
	cb := CacheBreaker(nil)
	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	}
	assert.True(t, cb.IsClosed())

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	assert.True(t, cb.IsOpen())
	assert.True(t, IsRejected(cb.Execute(context.Background(), ok)))
}
