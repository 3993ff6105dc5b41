package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConflict = errors.New("conflict")

func TestConflictRetrier_RetriesUntilSuccess(t *testing.T) {
	r := ConflictRetrier(func(err error) bool { return errors.Is(err, errConflict) })

	calls := 0
	got, err := DoWithData(context.Background(), r, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errConflict
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestConflictRetrier_GivesUp(t *testing.T) {
	r := ConflictRetrier(func(err error) bool { return errors.Is(err, errConflict) })

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errConflict
	})
	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, 5, calls)
}

func TestDo_OtherErrorsAreNotRetried(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	}, WithInitialDelay(time.Millisecond))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryableAndPermanent(t *testing.T) {
	boom := errors.New("boom")

	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return Retryable(boom)
		}
		return Permanent(boom)
	}, WithInitialDelay(time.Millisecond))
	assert.Equal(t, boom, err)
	assert.Equal(t, 2, calls)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestCalculateDelay_CappedAndGrowing(t *testing.T) {
	r := New(WithInitialDelay(10*time.Millisecond), WithMaxDelay(50*time.Millisecond), WithJitter(0))

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 50*time.Millisecond, r.calculateDelay(5))
}

func TestStartupRetrier_PermanentStops(t *testing.T) {
	unknown := errors.New("unknown driver")
	var retries []int

	calls := 0
	err := StartupRetrier(
		WithInitialDelay(time.Millisecond),
		WithOnRetry(func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) }),
	).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return Permanent(unknown)
	})

	assert.Equal(t, unknown, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}
