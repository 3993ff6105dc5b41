package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_UsesLocation(t *testing.T) {
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)
	// 19:30 UTC on Feb 29 is 00:30 on Mar 1 in Almaty
	ts := time.Date(2024, time.February, 29, 19, 30, 0, 0, time.UTC)

	assert.Equal(t, NewCalendarDate(2024, time.March, 1), DateOf(ts, almaty))
	assert.Equal(t, NewCalendarDate(2024, time.February, 29), DateOf(ts, nil))
}

func TestCalendarDate_Arithmetic(t *testing.T) {
	d := NewCalendarDate(2024, time.February, 28)

	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, "2023-12-31", NewCalendarDate(2024, time.January, 1).AddDays(-1).String())

	assert.Equal(t, 2, d.DaysUntil(d.AddDays(2)))
	assert.Equal(t, -3, d.DaysUntil(d.AddDays(-3)))
	assert.Equal(t, 366, NewCalendarDate(2024, 1, 1).DaysUntil(NewCalendarDate(2025, 1, 1)))

	assert.True(t, d.Before(d.AddDays(1)))
	assert.False(t, d.Before(d))
	assert.True(t, NewCalendarDate(2024, time.February, 30).Equal(NewCalendarDate(2024, time.March, 1)))
}

func TestParseCalendarDate(t *testing.T) {
	d, err := ParseCalendarDate(" 2024-03-05 ")
	require.NoError(t, err)
	assert.Equal(t, NewCalendarDate(2024, time.March, 5), d)

	_, err = ParseCalendarDate("05.03.2024")
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.True(t, IsValidation(err))
}

func TestCalendarDate_Text(t *testing.T) {
	var d CalendarDate
	require.NoError(t, d.UnmarshalText([]byte("2024-03-05")))
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", string(b))

	require.NoError(t, d.UnmarshalText(nil))
	assert.True(t, d.IsZero())
	assert.Equal(t, "", d.String())
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-1))
	assert.Equal(t, 5, NormalizeLimit(5))
	assert.Equal(t, MaxLimit, NormalizeLimit(1000))
}

func TestClassOf(t *testing.T) {
	storage := errors.New("connection reset")

	tests := []struct {
		err  error
		want Class
	}{
		{ErrUnknownActivityType, ClassValidation},
		{fmt.Errorf("award: %w", ErrMissingStudent), ClassValidation},
		{ErrInvalidLimit, ClassValidation},
		{Unavailable("ledger", "Append", storage), ClassUnavailable},
		{ErrStreakConflict, ClassUnavailable},
		{WrapError("badge", "Insert", ErrAlreadyExists, "dup", storage), ClassConflict},
		{NewDomainError("ledger", "Get", ErrNotFound, "missing"), ClassNotFound},
		{storage, ClassInternal},
		{nil, ClassInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassOf(tt.err), "%v", tt.err)
	}

	assert.True(t, IsRetryable(ErrStreakConflict))
	// the cause chain is searched too
	assert.ErrorIs(t, WrapError("policy", "Validate", ErrInvalidInput, "bad", ErrUnknownActivityType), ErrUnknownActivityType)
}
