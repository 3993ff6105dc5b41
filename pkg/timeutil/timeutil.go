// Package timeutil provides the institution time zone and a clock abstraction.
// Streak and ledger dates are calendar dates in the institution zone, so every
// "today" in the codebase is derived through a Clock and a *time.Location.
package timeutil

import (
	"sync"
	"time"
)

// AlmatyTZ is the Almaty timezone (UTC+5, no DST).
// Used when the tz database is not available in the runtime image.
var AlmatyTZ = time.FixedZone("Asia/Almaty", 5*60*60)

// DefaultTimezone is the default institution zone name.
const DefaultTimezone = "Asia/Almaty"

// LoadLocation resolves a zone name. "Asia/Almaty" falls back to AlmatyTZ when
// the tz database is missing; other unknown names return an error.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if name == DefaultTimezone {
			return AlmatyTZ, nil
		}
		return nil, err
	}
	return loc, nil
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// ══════════════════════════════════════════════════════════════════════════════
// Clock
// ══════════════════════════════════════════════════════════════════════════════

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a settable time. Used in tests and backfills.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock stopped at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
