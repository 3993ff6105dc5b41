package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-gamification/internal/domain/leaderboard"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/infrastructure/messaging"
)

type fakeCache struct {
	invalidations int
	err           error
}

func (c *fakeCache) Generation(context.Context) (int64, error) {
	return int64(c.invalidations), nil
}

func (c *fakeCache) GetTop(context.Context, int64, leaderboard.Scope, int) (*leaderboard.Board, bool, error) {
	return nil, false, nil
}

func (c *fakeCache) SetTop(context.Context, int64, leaderboard.Scope, int, *leaderboard.Board, time.Duration) error {
	return nil
}

func (c *fakeCache) InvalidateAll(context.Context) error {
	c.invalidations++
	return c.err
}

func newBus() *messaging.InMemoryEventBus {
	return messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
}

func TestOnXPAwarded_InvalidatesCache(t *testing.T) {
	cache := &fakeCache{}
	bus := newBus()
	require.NoError(t, NewOnXPAwardedHandler(cache, nil).Register(bus))

	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("s1", "inst", "session_attendance", "sess-1", 5)))
	require.NoError(t, bus.Publish(shared.NewStreakMilestoneEvent("s1", 7, 25)))

	assert.Equal(t, 1, cache.invalidations)
}

func TestOnXPAwarded_StreakAndBadgeChangesInvalidateToo(t *testing.T) {
	cache := &fakeCache{}
	bus := newBus()
	require.NoError(t, NewOnXPAwardedHandler(cache, nil).Register(bus))

	d := shared.NewCalendarDate(2024, time.March, 1)
	require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("s1", 2, 2, 1, d, false)))
	require.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("s1", "inst", "first-steps", "First Steps", 0)))

	assert.Equal(t, 2, cache.invalidations)
}

func TestOnXPAwarded_Errors(t *testing.T) {
	h := NewOnXPAwardedHandler(&fakeCache{err: errors.New("redis down")}, nil)
	assert.Error(t, h.Handle(shared.NewXPAwardedEvent("s1", "inst", "session_attendance", "", 5)))

	// no cache configured
	assert.NoError(t, NewOnXPAwardedHandler(nil, nil).Handle(shared.NewXPAwardedEvent("s1", "inst", "session_attendance", "", 5)))
}

func TestAuditHandler_Stats(t *testing.T) {
	bus := newBus()
	audit := NewAuditHandler(nil)
	require.NoError(t, audit.Register(bus))

	d := shared.NewCalendarDate(2024, time.March, 1)
	events := []shared.Event{
		shared.NewBadgeUnlockedEvent("s1", "inst", "first-steps", "First Steps", 10),
		shared.NewStreakMilestoneEvent("s1", 7, 25),
		shared.NewStreakUpdatedEvent("s1", 1, 4, 4, d, true),
		shared.NewStreakUpdatedEvent("s1", 2, 4, 1, d.AddDays(1), false),
		shared.NewXPAwardedEvent("s1", "inst", "session_attendance", "", 5),
	}
	for _, e := range events {
		require.NoError(t, bus.Publish(e))
	}

	assert.Equal(t, AuditStats{BadgesUnlocked: 1, MilestonesReached: 1, StreakResets: 1}, audit.Stats())
}
