package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryTotal is an amount aggregated by category name. Derived, never stored.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
}

// Summary holds the aggregates of one date range.
type Summary struct {
	Range        DateRange
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
	Categories   []CategoryTotal
}

// MonthOverview is the home screen state for one month.
type MonthOverview struct {
	Year          int
	Month         int // 1-12
	Summary       Summary
	ExpenseChange float64 // percent vs previous month
	IncomeChange  float64
	Chart         []CategoryTotal
	Upcoming      []Reminder
	GeneratedAt   time.Time
}

// Widget is the compact at-a-glance view.
type Widget struct {
	Date         time.Time
	TodayExpense decimal.Decimal
	MonthIncome  decimal.Decimal
	MonthExpense decimal.Decimal
	MonthBalance decimal.Decimal
}
