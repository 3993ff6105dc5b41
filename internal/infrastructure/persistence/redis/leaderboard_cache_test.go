package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-gamification/internal/domain/leaderboard"
)

func TestLeaderboardCache_KeysIncludeGenerationScopeAndLimit(t *testing.T) {
	c := NewLeaderboardCache(NewCacheFromClient(nil, "test:"))

	scope := leaderboard.Scope{InstitutionID: "inst-1", ClassID: "c1"}
	assert.Equal(t, "test:leaderboard:gen", c.generationKey())
	assert.Equal(t, "test:leaderboard:3:inst-1:c1:20", c.entryKey(3, scope, 20))
	assert.NotEqual(t, c.entryKey(3, scope, 20), c.entryKey(4, scope, 20))
	assert.Equal(t, "test:leaderboard:0:*:*:10", c.entryKey(0, leaderboard.Scope{}, 10))
}

func TestConfig_URLOverridesAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "redis://:secret@cache.internal:6380/2"

	opts, err := cfg.options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
}

// TestLeaderboardCache_RoundTrip runs against a live server when REDIS_ADDR is set.
func TestLeaderboardCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	prefix := "test:" + time.Now().Format("150405.000000") + ":"
	c := NewLeaderboardCache(NewCacheFromClient(client, prefix))
	ctx := context.Background()
	t.Cleanup(func() { _ = c.Purge(ctx) })

	scope := leaderboard.Scope{InstitutionID: "inst-1"}

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen)

	_, hit, err := c.GetTop(ctx, gen, scope, 5)
	require.NoError(t, err)
	assert.False(t, hit)

	board := &leaderboard.Board{
		Entries:    []*leaderboard.Entry{{Rank: 1, StudentID: "s1", TotalPoints: 100}},
		TotalCount: 42,
	}
	require.NoError(t, c.SetTop(ctx, gen, scope, 5, board, time.Minute))

	got, hit, err := c.GetTop(ctx, gen, scope, 5)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, int64(100), got.Entries[0].TotalPoints)
	assert.Equal(t, 42, got.TotalCount)

	require.NoError(t, c.InvalidateAll(ctx))
	next, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, gen+1, next)

	_, hit, err = c.GetTop(ctx, next, scope, 5)
	require.NoError(t, err)
	assert.False(t, hit)

	// a board computed before the invalidation is stored under the old
	// generation and never served
	require.NoError(t, c.SetTop(ctx, gen, scope, 5, board, time.Minute))
	_, hit, err = c.GetTop(ctx, next, scope, 5)
	require.NoError(t, err)
	assert.False(t, hit)
}
