package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/notify"
	"walletlens/internal/storage"
)

// WarningTier is the severity of a budget's consumption
type WarningTier int

const (
	TierNone WarningTier = iota
	TierWarning
	TierAlmostExceeded
	TierExceeded
)

var (
	warningThreshold  = decimal.NewFromInt(80)
	almostThreshold   = decimal.NewFromInt(90)
	exceededThreshold = decimal.NewFromInt(100)
)

func (t WarningTier) String() string {
	switch t {
	case TierWarning:
		return "warning"
	case TierAlmostExceeded:
		return "almost_exceeded"
	case TierExceeded:
		return "exceeded"
	default:
		return "none"
	}
}

// Title is the notification title for the tier
func (t WarningTier) Title() string {
	switch t {
	case TierWarning:
		return "Budget warning!"
	case TierAlmostExceeded:
		return "Budget almost exceeded!"
	case TierExceeded:
		return "Budget exceeded!"
	default:
		return ""
	}
}

// TierFor maps a percentage used to its tier
func TierFor(pct decimal.Decimal) WarningTier {
	switch {
	case pct.GreaterThanOrEqual(exceededThreshold):
		return TierExceeded
	case pct.GreaterThanOrEqual(almostThreshold):
		return TierAlmostExceeded
	case pct.GreaterThanOrEqual(warningThreshold):
		return TierWarning
	default:
		return TierNone
	}
}

// BudgetStatus is the evaluation of one budget at one instant
type BudgetStatus struct {
	Budget      core.Budget
	Window      core.DateRange
	Spent       decimal.Decimal
	PercentUsed decimal.Decimal
	Tier        WarningTier
}

// Evaluate sums the EXPENSE transactions of b's category inside b's current
// window. A non-positive limit evaluates as 0% used.
func Evaluate(b core.Budget, txs []core.Transaction, now time.Time) BudgetStatus {
	window := BudgetWindow(b, now)
	spent := decimal.Zero
	for _, t := range txs {
		if t.Type != core.Expense || t.Category != b.Category || !window.Contains(t.Timestamp) {
			continue
		}
		spent = spent.Add(t.Amount)
	}

	pct := core.Percent(spent, b.Limit)
	return BudgetStatus{
		Budget:      b,
		Window:      window,
		Spent:       spent,
		PercentUsed: pct,
		Tier:        TierFor(pct),
	}
}

// Notification renders the warning for s. ok is false below the warning tier.
func (s BudgetStatus) Notification() (n notify.Notification, ok bool) {
	if s.Tier == TierNone {
		return n, false
	}
	body := fmt.Sprintf("%s: %s / %s\n%s%% of budget used",
		s.Budget.Category,
		core.FormatAmount(s.Spent),
		core.FormatAmount(s.Budget.Limit),
		s.PercentUsed.StringFixed(1))
	return notify.New(notify.KindBudgetWarning, s.Tier.Title(), body, s.Budget.ID), true
}

// CheckReport summarises one pass over the active budgets
type CheckReport struct {
	Evaluated int
	Warned    int
	Failed    int
	// Unavailable is set when the active budgets could not be listed
	Unavailable bool
}

// NeedsRetry reports whether nothing could be evaluated because the store
// was down, as opposed to a pass with no active budgets.
func (r CheckReport) NeedsRetry() bool {
	return r.Unavailable || (r.Evaluated == 0 && r.Failed > 0)
}

// BudgetEvaluatorOptions tunes a BudgetEvaluator
type BudgetEvaluatorOptions struct {
	Concurrency  int
	StoreTimeout time.Duration
	Now          func() time.Time
	Logger       *log.Logger
}

// BudgetEvaluator checks active budgets and dispatches warnings
type BudgetEvaluator struct {
	budgets     storage.BudgetStore
	txs         storage.TransactionStore
	dispatcher  notify.Dispatcher
	concurrency int
	timeout     time.Duration
	now         func() time.Time
	logger      *log.Logger
}

func NewBudgetEvaluator(budgets storage.BudgetStore, txs storage.TransactionStore, dispatcher notify.Dispatcher, opts BudgetEvaluatorOptions) *BudgetEvaluator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	return &BudgetEvaluator{
		budgets:     budgets,
		txs:         txs,
		dispatcher:  dispatcher,
		concurrency: opts.Concurrency,
		timeout:     opts.StoreTimeout,
		now:         opts.Now,
		logger:      opts.Logger.WithComponent(log.ComponentBudget),
	}
}

func (e *BudgetEvaluator) activeBudgets(ctx context.Context) ([]core.Budget, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	budgets, err := e.budgets.ListActiveBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active budgets: %w", err)
	}
	return budgets, nil
}

// status evaluates one budget against the store
func (e *BudgetEvaluator) status(ctx context.Context, b core.Budget, now time.Time) (st BudgetStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluate budget %d panicked: %v", b.ID, r)
		}
	}()

	if !b.Limit.IsPositive() {
		e.logger.WarnContext(ctx, "Budget has non-positive limit, treating as 0% used",
			log.FieldBudgetID, b.ID, log.FieldCategory, b.Category, log.FieldAmount, b.Limit.String())
	}

	window := BudgetWindow(b, now)
	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	txs, err := e.txs.QueryTransactions(qctx, storage.TransactionFilter{
		Category: b.Category,
		Type:     core.Expense,
		Range:    window,
	})
	if err != nil {
		return BudgetStatus{}, fmt.Errorf("query spend for budget %d: %w", b.ID, err)
	}
	return Evaluate(b, txs, now), nil
}

// Statuses evaluates every active budget without dispatching anything.
// Budgets that fail to evaluate are logged and left out.
func (e *BudgetEvaluator) Statuses(ctx context.Context) ([]BudgetStatus, error) {
	budgets, err := e.activeBudgets(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		st, err := e.status(ctx, b, now)
		if err != nil {
			e.logger.ErrorContext(ctx, "Budget evaluation failed", log.FieldBudgetID, b.ID, log.FieldError, err)
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// CheckAll evaluates every active budget in parallel and dispatches a warning
// for each one at or above 80%. A failing budget never stops the others.
func (e *BudgetEvaluator) CheckAll(ctx context.Context) CheckReport {
	budgets, err := e.activeBudgets(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "Budget check skipped", log.FieldOperation, log.OpEvaluate, log.FieldError, err)
		return CheckReport{Unavailable: true}
	}

	now := e.now()
	var evaluated, warned, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, b := range budgets {
		b := b
		g.Go(func() error {
			w, err := e.check(gctx, b, now)
			if err != nil {
				failed.Add(1)
				e.logger.ErrorContext(gctx, "Budget check failed",
					log.FieldBudgetID, b.ID, log.FieldCategory, b.Category, log.FieldError, err)
				return nil
			}
			evaluated.Add(1)
			if w {
				warned.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := CheckReport{
		Evaluated: int(evaluated.Load()),
		Warned:    int(warned.Load()),
		Failed:    int(failed.Load()),
	}
	e.logger.InfoContext(ctx, "Budget check complete",
		"evaluated", report.Evaluated, "warned", report.Warned, "failed", report.Failed)
	return report
}

// CheckCategory evaluates the active budgets of one category
func (e *BudgetEvaluator) CheckCategory(ctx context.Context, category string) error {
	budgets, err := e.activeBudgets(ctx)
	if err != nil {
		return err
	}
	now := e.now()
	for _, b := range budgets {
		if b.Category != category {
			continue
		}
		if _, err := e.check(ctx, b, now); err != nil {
			e.logger.ErrorContext(ctx, "Budget check failed",
				log.FieldBudgetID, b.ID, log.FieldCategory, b.Category, log.FieldError, err)
		}
	}
	return nil
}

func (e *BudgetEvaluator) check(ctx context.Context, b core.Budget, now time.Time) (bool, error) {
	st, err := e.status(ctx, b, now)
	if err != nil {
		return false, err
	}

	fields := log.NewFields().WithBudget(b.ID, b.Category, st.PercentUsed.InexactFloat64(), st.Tier.String())
	n, ok := st.Notification()
	if !ok {
		e.logger.DebugContext(ctx, "Budget within limits", fields.ToSlice()...)
		return false, nil
	}
	if err := e.dispatcher.Dispatch(ctx, n); err != nil {
		return false, fmt.Errorf("dispatch budget warning: %w", err)
	}
	e.logger.InfoContext(ctx, "Budget warning dispatched", fields.ToSlice()...)
	return true, nil
}

// TransactionChanged re-checks the category's budget when an expense is added
func (e *BudgetEvaluator) TransactionChanged(ctx context.Context, c TransactionChange) error {
	if c.Kind != ChangeCreated || c.Transaction.Type != core.Expense {
		return nil
	}
	return e.CheckCategory(ctx, c.Transaction.Category)
}
