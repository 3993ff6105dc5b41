package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/alem-hub/alem-gamification/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// Stores finished leaderboard responses keyed by scope and limit.
//
// Keys:
//   - "{prefix}leaderboard:gen"                     generation counter
//   - "{prefix}leaderboard:{gen}:{scope}:{limit}"   JSON Board
//
// InvalidateAll bumps the generation instead of scanning: stale keys become
// unreachable at once and expire on their own TTL.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache implements leaderboard.Cache.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

func (c *LeaderboardCache) generationKey() string {
	return c.cache.Key("leaderboard", "gen")
}

func (c *LeaderboardCache) entryKey(gen int64, scope leaderboard.Scope, limit int) string {
	return c.cache.Key("leaderboard", strconv.FormatInt(gen, 10), scope.Key(), strconv.Itoa(limit))
}

// Generation returns the current generation; 0 before the first
// invalidation.
func (c *LeaderboardCache) Generation(ctx context.Context) (int64, error) {
	return c.cache.GetInt64(ctx, c.generationKey())
}

// GetTop returns the board cached under gen for scope and limit.
func (c *LeaderboardCache) GetTop(ctx context.Context, gen int64, scope leaderboard.Scope, limit int) (*leaderboard.Board, bool, error) {
	var board leaderboard.Board
	err := c.cache.Get(ctx, c.entryKey(gen, scope, limit), &board)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &board, true, nil
}

// SetTop stores board under gen, which the caller read before computing it.
// A board computed across an InvalidateAll lands under a dead generation.
func (c *LeaderboardCache) SetTop(ctx context.Context, gen int64, scope leaderboard.Scope, limit int, board *leaderboard.Board, ttl time.Duration) error {
	stored := leaderboard.Board{Entries: []*leaderboard.Entry{}}
	if board != nil {
		stored = *board
		if stored.Entries == nil {
			stored.Entries = []*leaderboard.Entry{}
		}
	}
	return c.cache.Set(ctx, c.entryKey(gen, scope, limit), stored, ttl)
}

// InvalidateAll makes every cached leaderboard unreachable.
func (c *LeaderboardCache) InvalidateAll(ctx context.Context) error {
	_, err := c.cache.Incr(ctx, c.generationKey())
	return err
}

// Purge deletes every leaderboard key, including the generation counter.
// Used by the admin tool after a bulk import.
func (c *LeaderboardCache) Purge(ctx context.Context) error {
	return c.cache.DeleteByPattern(ctx, c.cache.Key("leaderboard", "*"))
}

var _ leaderboard.Cache = (*LeaderboardCache)(nil)
