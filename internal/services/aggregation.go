// Package services holds the WalletLens business logic: aggregation, budget
// evaluation, reminder scheduling and the CRUD services the API calls.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/storage"
)

// OtherCategory is the chart bucket for categories beyond the limit
const OtherCategory = "Other"

// Summarize aggregates the transactions whose timestamp falls in r. A zero
// range includes everything. An empty input yields zero totals.
func Summarize(txs []core.Transaction, r core.DateRange) core.Summary {
	s := core.Summary{
		Range:        r,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Balance:      decimal.Zero,
		Categories:   []core.CategoryTotal{},
	}

	inRange := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if !r.IsZero() && !r.Contains(t.Timestamp) {
			continue
		}
		inRange = append(inRange, t)
		switch t.Type {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case core.Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
		}
	}

	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	s.Categories = CategoryTotals(inRange)
	return s
}

// CategoryTotals sums EXPENSE amounts per category, sorted by amount
// descending. Equal totals keep the order in which categories first appear.
func CategoryTotals(txs []core.Transaction) []core.CategoryTotal {
	index := make(map[string]int)
	totals := []core.CategoryTotal{}
	for _, t := range txs {
		if t.Type != core.Expense {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(totals)
			index[t.Category] = i
			totals = append(totals, core.CategoryTotal{Category: t.Category, Amount: decimal.Zero})
		}
		totals[i].Amount = totals[i].Amount.Add(t.Amount)
	}

	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Amount.GreaterThan(totals[j].Amount)
	})
	return totals
}

// PercentChange is (current-previous)/previous*100, or 0 when previous is
// not positive.
func PercentChange(current, previous decimal.Decimal) float64 {
	if !previous.IsPositive() {
		return 0
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// GroupCategories keeps the largest max-1 categories and merges the rest
// into OtherCategory. Input is expected sorted as CategoryTotals returns it.
func GroupCategories(totals []core.CategoryTotal, max int) []core.CategoryTotal {
	if max < 2 || len(totals) <= max {
		return append([]core.CategoryTotal(nil), totals...)
	}

	out := make([]core.CategoryTotal, 0, max)
	out = append(out, totals[:max-1]...)
	other := decimal.Zero
	for _, ct := range totals[max-1:] {
		other = other.Add(ct.Amount)
	}
	return append(out, core.CategoryTotal{Category: OtherCategory, Amount: other})
}

// AggregatorOptions tunes an Aggregator
type AggregatorOptions struct {
	StoreTimeout       time.Duration
	MaxChartCategories int
	ReminderLookahead  time.Duration
	Now                func() time.Time
	Logger             *log.Logger
}

// Aggregator reads from the stores and never surfaces store errors: a failed
// read is logged and treated as an empty result.
type Aggregator struct {
	txs       storage.TransactionStore
	reminders storage.ReminderStore
	timeout   time.Duration
	maxChart  int
	lookahead time.Duration
	now       func() time.Time
	logger    *log.Logger
}

func NewAggregator(txs storage.TransactionStore, reminders storage.ReminderStore, opts AggregatorOptions) *Aggregator {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.MaxChartCategories < 2 {
		opts.MaxChartCategories = 6
	}
	if opts.ReminderLookahead <= 0 {
		opts.ReminderLookahead = 90 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	return &Aggregator{
		txs:       txs,
		reminders: reminders,
		timeout:   opts.StoreTimeout,
		maxChart:  opts.MaxChartCategories,
		lookahead: opts.ReminderLookahead,
		now:       opts.Now,
		logger:    opts.Logger.WithComponent(log.ComponentAggregation),
	}
}

// MaxChartCategories is the slice count charts are grouped to
func (a *Aggregator) MaxChartCategories() int { return a.maxChart }

func (a *Aggregator) query(ctx context.Context, r core.DateRange) ([]core.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	txs, err := a.txs.QueryTransactions(ctx, storage.TransactionFilter{Range: r})
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return txs, nil
}

// Summary aggregates r. On store failure it returns the zero summary.
func (a *Aggregator) Summary(ctx context.Context, r core.DateRange) core.Summary {
	txs, err := a.query(ctx, r)
	if err != nil {
		a.logger.ErrorContext(ctx, "Summary failed, returning empty aggregate",
			log.FieldOperation, log.OpRead, log.FieldError, err)
		return Summarize(nil, r)
	}
	return Summarize(txs, r)
}

// Chart returns the grouped expense categories of r
func (a *Aggregator) Chart(ctx context.Context, r core.DateRange) []core.CategoryTotal {
	return GroupCategories(a.Summary(ctx, r).Categories, a.maxChart)
}

// MonthOverview builds the overview of the month containing now. Parts that
// fail to load are left empty.
func (a *Aggregator) MonthOverview(ctx context.Context, now time.Time) core.MonthOverview {
	ov, err := a.monthOverview(ctx, now)
	if err != nil {
		a.logger.ErrorContext(ctx, "Month overview incomplete",
			log.FieldOperation, log.OpRead, log.FieldError, err)
	}
	return ov
}

// monthOverview loads the current month, the previous month and upcoming
// reminders concurrently. The overview is always usable; err reports whether
// any part had to fall back to empty.
func (a *Aggregator) monthOverview(ctx context.Context, now time.Time) (core.MonthOverview, error) {
	current := core.MonthRange(now)
	previous := core.PreviousMonth(now)
	upcomingRange := core.DateRange{Start: now, End: now.Add(a.lookahead)}

	var (
		curTxs, prevTxs []core.Transaction
		upcoming        []core.Reminder
		curErr, prevErr error
		remErr          error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		curTxs, curErr = a.query(gctx, current)
		return nil
	})
	g.Go(func() error {
		prevTxs, prevErr = a.query(gctx, previous)
		return nil
	})
	g.Go(func() error {
		rctx, cancel := context.WithTimeout(gctx, a.timeout)
		defer cancel()
		upcoming, remErr = a.reminders.ListActiveReminders(rctx, upcomingRange)
		if remErr != nil {
			remErr = fmt.Errorf("list reminders: %w", remErr)
		}
		return nil
	})
	_ = g.Wait()

	cur := Summarize(curTxs, current)
	prev := Summarize(prevTxs, previous)
	if upcoming == nil {
		upcoming = []core.Reminder{}
	}

	ov := core.MonthOverview{
		Year:          now.Year(),
		Month:         int(now.Month()),
		Summary:       cur,
		ExpenseChange: PercentChange(cur.TotalExpense, prev.TotalExpense),
		IncomeChange:  PercentChange(cur.TotalIncome, prev.TotalIncome),
		Chart:         GroupCategories(cur.Categories, a.maxChart),
		Upcoming:      upcoming,
		GeneratedAt:   a.now(),
	}

	return ov, errors.Join(curErr, prevErr, remErr)
}

// Widget returns today's spending and the month totals
func (a *Aggregator) Widget(ctx context.Context, now time.Time) core.Widget {
	month := a.Summary(ctx, core.MonthRange(now))

	today := core.DayRange(now)
	todayExpense := decimal.Zero
	txs, err := a.query(ctx, today)
	if err != nil {
		a.logger.ErrorContext(ctx, "Widget daily total failed", log.FieldError, err)
	}
	for _, t := range txs {
		if t.Type == core.Expense {
			todayExpense = todayExpense.Add(t.Amount)
		}
	}

	return core.Widget{
		Date:         today.Start,
		TodayExpense: todayExpense,
		MonthIncome:  month.TotalIncome,
		MonthExpense: month.TotalExpense,
		MonthBalance: month.Balance,
	}
}
