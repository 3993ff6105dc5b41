package shared

import (
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// StudentID identifies a student. Identity is owned by the roster provider,
// so no format is imposed beyond being non-empty.
type StudentID string

// String returns the string representation.
func (s StudentID) String() string {
	return string(s)
}

// IsEmpty checks if the ID is empty.
func (s StudentID) IsEmpty() bool {
	return strings.TrimSpace(string(s)) == ""
}

// InstitutionID identifies an institution (school, campus).
type InstitutionID string

// String returns the string representation.
func (i InstitutionID) String() string {
	return string(i)
}

// IsEmpty checks if the ID is empty.
func (i InstitutionID) IsEmpty() bool {
	return strings.TrimSpace(string(i)) == ""
}

// ClassID identifies a class (group of students inside an institution).
type ClassID string

// String returns the string representation.
func (c ClassID) String() string {
	return string(c)
}

// IsEmpty checks if the ID is empty.
func (c ClassID) IsEmpty() bool {
	return strings.TrimSpace(string(c)) == ""
}

// ═══════════════════════════════════════════════════════════════════════════
// Calendar Date
// ═══════════════════════════════════════════════════════════════════════════

// DateLayout is the wire and storage format of a CalendarDate.
const DateLayout = "2006-01-02"

// CalendarDate is a day on the calendar with no time-of-day and no zone.
// Streak arithmetic is done on these values only, never on timestamps.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) CalendarDate {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// NewCalendarDate builds a date, normalizing overflow (Feb 30 -> Mar 1/2).
func NewCalendarDate(year int, month time.Month, day int) CalendarDate {
	y, m, d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// ParseCalendarDate parses "YYYY-MM-DD".
func ParseCalendarDate(value string) (CalendarDate, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return CalendarDate{}, WrapError("shared", "ParseCalendarDate", ErrInvalidFormat, "invalid calendar date", err)
	}
	return DateOf(t, time.UTC), nil
}

// IsZero reports whether the date is unset.
func (d CalendarDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String returns "YYYY-MM-DD".
func (d CalendarDate) String() string {
	if d.IsZero() {
		return ""
	}
	return d.midnight().Format(DateLayout)
}

// AddDays returns the date n days later (n may be negative).
func (d CalendarDate) AddDays(n int) CalendarDate {
	return DateOf(d.midnight().AddDate(0, 0, n), time.UTC)
}

// DaysUntil returns the number of whole days from d to other (negative if other is earlier).
func (d CalendarDate) DaysUntil(other CalendarDate) int {
	// UTC midnights have no DST gaps, so the division is exact.
	return int(other.midnight().Sub(d.midnight()).Hours() / 24)
}

// Before reports whether d is strictly earlier than other.
func (d CalendarDate) Before(other CalendarDate) bool {
	return d.DaysUntil(other) > 0
}

// Equal reports whether both values denote the same day.
func (d CalendarDate) Equal(other CalendarDate) bool {
	return d.Year == other.Year && d.Month == other.Month && d.Day == other.Day
}

// Time returns midnight UTC of the date, for drivers that store DATE columns as time.Time.
func (d CalendarDate) Time() time.Time {
	return d.midnight()
}

func (d CalendarDate) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// MarshalText implements encoding.TextMarshaler.
func (d CalendarDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *CalendarDate) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*d = CalendarDate{}
		return nil
	}
	parsed, err := ParseCalendarDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination
// ═══════════════════════════════════════════════════════════════════════════

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// NormalizeLimit applies the default for non-positive values and caps at MaxLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
