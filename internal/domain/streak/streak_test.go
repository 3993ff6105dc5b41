package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

var d0 = shared.NewCalendarDate(2024, time.February, 27)

func TestRecord_FirstActivity(t *testing.T) {
	s, out := New("s1").Record(d0)

	assert.True(t, out.Advanced)
	assert.False(t, out.WasReset)
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, 1, s.Longest)
	assert.True(t, s.LastActivityDate.Equal(d0))
}

func TestRecord_Transitions(t *testing.T) {
	tests := []struct {
		name     string
		days     []int // offsets from d0, applied in order
		current  int
		longest  int
		advanced bool
		reset    bool
	}{
		{name: "consecutive", days: []int{0, 1, 2}, current: 3, longest: 3, advanced: true},
		{name: "same day twice", days: []int{0, 1, 1}, current: 2, longest: 2},
		{name: "gap resets", days: []int{0, 5}, current: 1, longest: 1, advanced: true, reset: true},
		{name: "gap keeps longest", days: []int{0, 1, 2, 4}, current: 1, longest: 3, advanced: true, reset: true},
		{name: "late event ignored", days: []int{0, 1, 0}, current: 2, longest: 2},
		{name: "across month end", days: []int{0, 1, 2, 3}, current: 4, longest: 4, advanced: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("s1")
			var out Outcome
			for _, off := range tt.days {
				s, out = s.Record(d0.AddDays(off))
			}
			assert.Equal(t, tt.current, s.Current)
			assert.Equal(t, tt.longest, s.Longest)
			assert.Equal(t, tt.advanced, out.Advanced)
			assert.Equal(t, tt.reset, out.WasReset)
		})
	}
}

func TestRecord_LongestNeverDecreases(t *testing.T) {
	s := New("s1")
	prev := 0
	for _, off := range []int{0, 1, 2, 3, 10, 11, 30, 29, 31, 32, 33, 34, 35} {
		s, _ = s.Record(d0.AddDays(off))
		assert.GreaterOrEqual(t, s.Longest, prev)
		assert.GreaterOrEqual(t, s.Longest, s.Current)
		prev = s.Longest
	}
	assert.Equal(t, 6, s.Current)
	assert.Equal(t, 6, s.Longest)
}

func TestEffectiveCurrent(t *testing.T) {
	s, _ := New("s1").Record(d0)
	s, _ = s.Record(d0.AddDays(1))

	assert.Equal(t, 2, s.EffectiveCurrent(d0.AddDays(1)))
	assert.Equal(t, 2, s.EffectiveCurrent(d0.AddDays(2)))
	assert.Equal(t, 0, s.EffectiveCurrent(d0.AddDays(3)))
	assert.Equal(t, 0, New("s2").EffectiveCurrent(d0))

	assert.True(t, s.IsActiveOn(d0.AddDays(1)))
	assert.False(t, s.IsActiveOn(d0.AddDays(2)))
}
