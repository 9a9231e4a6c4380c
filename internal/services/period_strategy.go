package services

import (
	"time"

	"walletlens/internal/core"
)

// WindowStrategy computes the evaluation window of a budget period.
// Windows are closed: End is the last second inside the period.
type WindowStrategy interface {
	Window(b core.Budget, now time.Time) core.DateRange
}

// WeeklyWindow starts on the most recent Monday at midnight.
type WeeklyWindow struct{}

func (WeeklyWindow) Window(_ core.Budget, now time.Time) core.DateRange {
	sinceMonday := (int(now.Weekday()) + 6) % 7
	start := time.Date(now.Year(), now.Month(), now.Day()-sinceMonday, 0, 0, 0, 0, now.Location())
	return core.DateRange{Start: start, End: start.AddDate(0, 0, 7).Add(-time.Second)}
}

type MonthlyWindow struct{}

func (MonthlyWindow) Window(_ core.Budget, now time.Time) core.DateRange {
	return core.MonthRange(now)
}

type YearlyWindow struct{}

func (YearlyWindow) Window(_ core.Budget, now time.Time) core.DateRange {
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	return core.DateRange{Start: start, End: start.AddDate(1, 0, 0).Add(-time.Second)}
}

// CustomWindow uses the budget's stored start and end.
type CustomWindow struct{}

func (CustomWindow) Window(b core.Budget, _ time.Time) core.DateRange {
	return core.DateRange{Start: b.Start, End: b.End}
}

var windowStrategies = map[core.BudgetPeriod]WindowStrategy{
	core.Weekly:  WeeklyWindow{},
	core.Monthly: MonthlyWindow{},
	core.Yearly:  YearlyWindow{},
	core.Custom:  CustomWindow{},
}

// GetWindowStrategy returns the strategy for p. Periods without a registered
// strategy fall back to the stored window.
func GetWindowStrategy(p core.BudgetPeriod) WindowStrategy {
	if s, ok := windowStrategies[p]; ok {
		return s
	}
	return CustomWindow{}
}

// BudgetWindow is the current window of b at now
func BudgetWindow(b core.Budget, now time.Time) core.DateRange {
	return GetWindowStrategy(b.Period).Window(b, now)
}
