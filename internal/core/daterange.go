package core

import "time"

// DateRange is a closed interval: both Start and End are inside it.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
		return ErrInvalidRange
	}
	return nil
}

// MonthRange covers t's calendar month in t's location, ending one second
// before the next month starts.
func MonthRange(t time.Time) DateRange {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return DateRange{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Second)}
}

// DayRange covers t's calendar day.
func DayRange(t time.Time) DateRange {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return DateRange{Start: start, End: start.AddDate(0, 0, 1).Add(-time.Second)}
}

// PreviousMonth returns the month range before the one containing t.
func PreviousMonth(t time.Time) DateRange {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return MonthRange(first.AddDate(0, -1, 0))
}
