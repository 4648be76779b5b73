package compensation

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive whole-day window in UTC
// =============================================================================

// Period is an inclusive date window. From is the first instant of its day and To
// the last instant of its day, both in UTC.
//
// Signed amounts are windowed by the case's sign date; due amounts by each
// installment's due date. Both use Period.
type Period struct {
	From time.Time
	To   time.Time
}

// NewPeriod builds a whole-day window from two dates.
func NewPeriod(from, to time.Time) (Period, error) {
	p := Period{From: StartOfDay(from), To: EndOfDay(to)}
	if p.To.Before(p.From) {
		return Period{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return p, nil
}

// ParsePeriod parses two YYYY-MM-DD dates.
func ParsePeriod(from, to string) (Period, error) {
	f, err := time.Parse(DateLayout, from)
	if err != nil {
		return Period{}, fmt.Errorf("%w: from %q", ErrInvalidPeriod, from)
	}
	t, err := time.Parse(DateLayout, to)
	if err != nil {
		return Period{}, fmt.Errorf("%w: to %q", ErrInvalidPeriod, to)
	}
	return NewPeriod(f, t)
}

// MonthPeriod returns the whole calendar month.
func MonthPeriod(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{From: start, To: EndOfDay(start.AddDate(0, 1, -1))}
}

// Contains returns true if t is within [From, To].
func (p Period) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.From) && !t.After(p.To)
}

// IsZero reports an unset period.
func (p Period) IsZero() bool { return p.From.IsZero() && p.To.IsZero() }

func (p Period) String() string {
	return "[" + p.From.Format(DateLayout) + ", " + p.To.Format(DateLayout) + "]"
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

const DateLayout = "2006-01-02"

func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
