package services

import (
	"fmt"
	"time"

	"walletlens/internal/core"
)

// DuenessChecker decides whether a recurring transaction template should
// materialise another occurrence. lastRun is the previous occurrence (zero
// when there was none) and anchor is the template's own timestamp, whose day
// of month and month pin monthly and yearly occurrences.
type DuenessChecker interface {
	IsDue(lastRun, now, anchor time.Time) bool
}

// DailyChecker is due once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastRun, now, _ time.Time) bool {
	return lastRun.IsZero() || !core.DayRange(lastRun).Contains(now)
}

// WeeklyChecker is due when a full week has elapsed.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastRun, now, _ time.Time) bool {
	return lastRun.IsZero() || now.Sub(lastRun) >= 7*24*time.Hour
}

// MonthlyChecker is due once per month, from the anchor's day onwards.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastRun, now, anchor time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	if core.MonthRange(lastRun).Contains(now) {
		return false
	}
	return now.Day() >= clampDay(anchor.Day(), now)
}

// YearlyChecker is due once per year, from the anchor's month and day onwards.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(lastRun, now, anchor time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	if lastRun.Year() == now.Year() {
		return false
	}
	switch {
	case now.Month() < anchor.Month():
		return false
	case now.Month() > anchor.Month():
		return true
	default:
		return now.Day() >= clampDay(anchor.Day(), now)
	}
}

// clampDay limits day to the length of now's month
func clampDay(day int, now time.Time) int {
	if last := daysIn(now.Year(), now.Month(), now.Location()); day > last {
		return last
	}
	return day
}

var duenessStrategies = map[core.RecurrenceInterval]DuenessChecker{
	core.EveryDay:   DailyChecker{},
	core.EveryWeek:  WeeklyChecker{},
	core.EveryMonth: MonthlyChecker{},
	core.EveryYear:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for interval
func GetDuenessChecker(interval core.RecurrenceInterval) (DuenessChecker, error) {
	c, ok := duenessStrategies[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidInterval, interval)
	}
	return c, nil
}
