package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 5*60*60, offset)

	_, err = LoadLocation("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestStartOfDay(t *testing.T) {
	// 20:30 UTC is already the next day in Almaty
	ts := time.Date(2024, 3, 1, 20, 30, 0, 0, time.UTC)
	got := StartOfDay(ts, AlmatyTZ)

	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, AlmatyTZ), got)
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, AlmatyTZ)
	c := NewFixedClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(24 * time.Hour)
	assert.Equal(t, start.Add(24*time.Hour), c.Now())

	c.Advance(-48 * time.Hour)
	assert.Equal(t, start.Add(-24*time.Hour), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}
