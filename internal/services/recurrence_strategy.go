package services

import (
	"time"

	"walletlens/internal/core"
)

// RecurrenceStrategy advances a due date by one interval
type RecurrenceStrategy interface {
	Next(due time.Time) time.Time
}

type DailyRecurrence struct{}

func (DailyRecurrence) Next(due time.Time) time.Time { return due.AddDate(0, 0, 1) }

type WeeklyRecurrence struct{}

func (WeeklyRecurrence) Next(due time.Time) time.Time { return due.AddDate(0, 0, 7) }

// MonthlyRecurrence clamps to the last day of the target month.
type MonthlyRecurrence struct{}

func (MonthlyRecurrence) Next(due time.Time) time.Time { return addMonthsClamped(due, 1) }

type YearlyRecurrence struct{}

func (YearlyRecurrence) Next(due time.Time) time.Time { return addMonthsClamped(due, 12) }

var recurrenceStrategies = map[core.RecurrenceInterval]RecurrenceStrategy{
	core.EveryDay:   DailyRecurrence{},
	core.EveryWeek:  WeeklyRecurrence{},
	core.EveryMonth: MonthlyRecurrence{},
	core.EveryYear:  YearlyRecurrence{},
}

// NextDue returns due advanced by one interval. ok is false for an unknown
// or missing interval.
func NextDue(due time.Time, interval core.RecurrenceInterval) (time.Time, bool) {
	s, ok := recurrenceStrategies[interval]
	if !ok {
		return time.Time{}, false
	}
	return s.Next(due), true
}

// NextDueAfter advances due until it is after now, so an occurrence missed
// for several intervals is skipped rather than replayed.
func NextDueAfter(due, now time.Time, interval core.RecurrenceInterval) (time.Time, bool) {
	next, ok := NextDue(due, interval)
	if !ok {
		return time.Time{}, false
	}
	for !next.After(now) {
		next, _ = NextDue(next, interval)
	}
	return next, true
}

// addMonthsClamped adds months keeping the day of month when it exists and
// using the month's last day otherwise (Jan 31 + 1 month = Feb 28/29).
func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)
	day := t.Day()
	if last := daysIn(target.Year(), target.Month(), t.Location()); day > last {
		day = last
	}
	return target.AddDate(0, 0, day-1)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
