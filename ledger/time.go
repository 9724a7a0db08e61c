package ledger

import (
	"time"
)

// =============================================================================
// DATE - Day-granularity time point (statements and payments are day-dated)
// =============================================================================

type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate parses a 2006-01-02 formatted date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{Time: d.normalize().AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.normalize().AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date  { return Date{Time: d.normalize().AddDate(n, 0, 0)} }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// WithDay returns the date anchored to the given day of its month,
// clamped to the month's last day.
func (d Date) WithDay(day int) Date {
	last := daysInMonth(d.Year(), d.Month())
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return NewDate(d.Year(), d.Month(), day)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1).Day()
}

// =============================================================================
// WINDOW - Inclusive date range (promotional-rate windows, run horizons)
// =============================================================================

// Window is an inclusive [Start, End] date range. A zero Start means the
// window is open on the left (active from the beginning of time).
type Window struct {
	Start Date
	End   Date
}

// Contains reports whether the date falls inside [Start, End], both endpoints
// inclusive.
func (w Window) Contains(d Date) bool {
	if w.End.IsZero() {
		return false
	}
	if !w.Start.IsZero() && d.Before(w.Start) {
		return false
	}
	return d.BeforeOrEqual(w.End)
}

// Valid reports whether the window is well formed (End not before Start).
func (w Window) Valid() bool {
	if w.End.IsZero() {
		return true
	}
	if w.Start.IsZero() {
		return true
	}
	return w.Start.BeforeOrEqual(w.End)
}

func (w Window) String() string {
	return "[" + w.Start.String() + ", " + w.End.String() + "]"
}
