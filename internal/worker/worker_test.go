package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"walletlens/internal/amqp"
	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/notify"
	"walletlens/internal/scheduler"
	"walletlens/internal/services"
	"walletlens/internal/sheets"
	"walletlens/internal/storage"
	"walletlens/internal/storage/memory"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

type fixture struct {
	store     *memory.Store
	tasks     *scheduler.Scheduler
	recorder  *notify.Recorder
	reminders *services.ReminderScheduler
	budgets   *services.BudgetEvaluator
	seen      []services.TransactionChange
	worker    *EventWorker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), recorder: notify.NewRecorder()}
	f.tasks = scheduler.New(scheduler.Config{Logger: quietLogger()})
	t.Cleanup(func() { f.tasks.Stop(context.Background()) })
	f.reminders = services.NewReminderScheduler(f.store, f.tasks, f.recorder, services.ReminderSchedulerOptions{Logger: quietLogger()})
	f.budgets = services.NewBudgetEvaluator(f.store, f.store, f.recorder, services.BudgetEvaluatorOptions{Logger: quietLogger()})
	spy := services.TransactionHookFunc(func(_ context.Context, c services.TransactionChange) error {
		f.seen = append(f.seen, c)
		return nil
	})
	f.worker = NewEventWorker(f.store, f.store, f.reminders, quietLogger(), f.budgets, spy)
	return f
}

func TestHandleTransactionCreatedRunsBudgetCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	f.store.InsertBudget(ctx, core.Budget{Category: "Food", Limit: decimal.NewFromInt(100), Period: core.Monthly, Active: true})
	tx, _ := f.store.InsertTransaction(ctx, core.Transaction{
		Amount: decimal.NewFromInt(95), Description: "Dinner", Category: "Food", Type: core.Expense, Timestamp: now,
	})

	if err := f.worker.HandleEvent(ctx, amqp.NewEvent(amqp.EventTransactionCreated, tx.ID)); err != nil {
		t.Fatal(err)
	}
	got := f.recorder.Drain()
	if len(got) != 1 || got[0].Kind != notify.KindBudgetWarning || got[0].Title != "Budget almost exceeded!" {
		t.Fatalf("notifications = %+v", got)
	}
	if len(f.seen) != 1 || f.seen[0].Kind != services.ChangeCreated || f.seen[0].Transaction.Category != "Food" {
		t.Fatalf("hooks saw %+v", f.seen)
	}
}

func TestHandleTransactionEventsForMissingRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.worker.HandleEvent(ctx, amqp.NewEvent(amqp.EventTransactionCreated, 404)); err != nil {
		t.Fatalf("missing transaction should be skipped, got %v", err)
	}
	if len(f.seen) != 0 {
		t.Fatalf("hooks should not run: %+v", f.seen)
	}

	e := amqp.NewEvent(amqp.EventTransactionDeleted, 404)
	e.Category = "Food"
	if err := f.worker.HandleEvent(ctx, e); err != nil {
		t.Fatal(err)
	}
	if len(f.seen) != 1 || f.seen[0].Kind != services.ChangeDeleted || f.seen[0].Transaction.Category != "Food" {
		t.Fatalf("delete not forwarded: %+v", f.seen)
	}
}

func TestHandleReminderEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, _ := f.store.InsertReminder(ctx, core.Reminder{
		Title: "Rent", Amount: decimal.NewFromInt(900), Category: "Housing", Due: time.Now().Add(48 * time.Hour),
	})

	if err := f.worker.HandleEvent(ctx, amqp.NewEvent(amqp.EventReminderChanged, r.ID)); err != nil {
		t.Fatal(err)
	}
	if f.tasks.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", f.tasks.PendingCount())
	}

	if err := f.worker.HandleEvent(ctx, amqp.NewEvent(amqp.EventReminderRemoved, r.ID)); err != nil {
		t.Fatal(err)
	}
	if f.tasks.PendingCount() != 0 {
		t.Fatalf("pending = %d after removal", f.tasks.PendingCount())
	}

	// changed event for a reminder that no longer exists cancels
	f.worker.HandleEvent(ctx, amqp.NewEvent(amqp.EventReminderChanged, r.ID))
	f.store.DeleteReminder(ctx, r.ID)
	if err := f.worker.HandleEvent(ctx, amqp.NewEvent(amqp.EventReminderChanged, r.ID)); err != nil {
		t.Fatal(err)
	}
	if f.tasks.PendingCount() != 0 {
		t.Fatalf("pending = %d for deleted reminder", f.tasks.PendingCount())
	}
}

func TestRunHooksFailsOnlyWhenAllHooksFail(t *testing.T) {
	boom := services.TransactionHookFunc(func(context.Context, services.TransactionChange) error { return errors.New("boom") })
	ok := services.TransactionHookFunc(func(context.Context, services.TransactionChange) error { return nil })
	ctx := context.Background()
	change := services.TransactionChange{Kind: services.ChangeDeleted}

	w := NewEventWorker(nil, nil, nil, quietLogger(), boom, ok)
	if err := w.runHooks(ctx, change); err != nil {
		t.Fatalf("partial failure should not requeue: %v", err)
	}
	w = NewEventWorker(nil, nil, nil, quietLogger(), boom)
	if err := w.runHooks(ctx, change); err == nil {
		t.Fatal("expected error when every hook fails")
	}
}

func TestRuntimeStartRegistersPeriodicJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.InsertReminder(ctx, core.Reminder{
		Title: "Phone", Amount: decimal.NewFromInt(30), Category: "Utilities", Due: time.Now().Add(time.Hour),
	})
	txs := services.NewTransactionService(f.store, quietLogger(), f.budgets)
	rt := NewRuntime(f.tasks, f.reminders, f.budgets,
		services.NewRecurringProcessor(f.store, txs, quietLogger()), nil,
		Intervals{BudgetCheck: time.Hour, Recurring: time.Hour, ReminderRescan: 0}, quietLogger())

	if err := rt.Start(ctx); err != nil {
		t.Fatal(err)
	}

	keys := map[string]bool{}
	for _, p := range f.tasks.Pending() {
		keys[p.Key] = true
	}
	for _, want := range []string{JobBudgetCheck, JobRecurring} {
		if !keys[want] {
			t.Errorf("missing periodic job %s in %v", want, keys)
		}
	}
	if keys[JobReminderRescan] {
		t.Error("disabled rescan should not be scheduled")
	}
	if f.tasks.PendingCount() != 3 {
		t.Fatalf("pending = %d, want 2 periodic jobs and 1 reminder", f.tasks.PendingCount())
	}

	if err := f.tasks.RunNow(ctx, scheduler.Job{Kind: JobBudgetCheck}); err != nil {
		t.Fatalf("budget check job: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := rt.Stop(stopCtx); err != nil {
		t.Fatal(err)
	}
}

// budgetsDown fails budget listing while down is set
type budgetsDown struct {
	*memory.Store
	down atomic.Bool
}

func (b *budgetsDown) ListActiveBudgets(ctx context.Context) ([]core.Budget, error) {
	if b.down.Load() {
		return nil, errors.New("database is locked")
	}
	return b.Store.ListActiveBudgets(ctx)
}

func TestFailedBudgetTickArmsOneShotRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := &budgetsDown{Store: f.store}
	store.down.Store(true)
	budgets := services.NewBudgetEvaluator(store, store, f.recorder, services.BudgetEvaluatorOptions{Logger: quietLogger()})
	txs := services.NewTransactionService(f.store, quietLogger())
	rt := NewRuntime(f.tasks, f.reminders, budgets,
		services.NewRecurringProcessor(f.store, txs, quietLogger()), nil,
		Intervals{BudgetCheck: time.Hour}, quietLogger())
	if err := rt.Start(ctx); err != nil {
		t.Fatal(err)
	}

	pending := func(key string) bool {
		for _, p := range f.tasks.Pending() {
			if p.Key == key {
				return true
			}
		}
		return false
	}

	if err := f.tasks.RunNow(ctx, scheduler.Job{Kind: JobBudgetCheck}); err != nil {
		t.Fatalf("periodic tick: %v", err)
	}
	if !pending(JobBudgetRetry) {
		t.Fatal("failed tick should arm the retry job")
	}

	var retry *scheduler.RetryError
	if err := f.tasks.RunNow(ctx, scheduler.Job{Kind: JobBudgetRetry}); !errors.As(err, &retry) || retry.Delay != budgetRetryDelay {
		t.Fatalf("retry while down = %v, want RetryAfter(%s)", err, budgetRetryDelay)
	}

	store.down.Store(false)
	if err := f.tasks.RunNow(ctx, scheduler.Job{Kind: JobBudgetCheck}); err != nil {
		t.Fatalf("periodic tick: %v", err)
	}
	if pending(JobBudgetRetry) {
		t.Fatal("successful tick should cancel the pending retry")
	}
	if !pending(JobBudgetCheck) {
		t.Fatal("periodic budget check must stay scheduled")
	}
}

func TestRuntimeStartCatchesUpRecurring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.InsertTransaction(ctx, core.Transaction{
		Amount: decimal.NewFromInt(3), Description: "Coffee", Category: "Food", Type: core.Expense,
		Timestamp: time.Now().Add(-48 * time.Hour), Recurring: true, Interval: core.EveryDay,
	})
	txs := services.NewTransactionService(f.store, quietLogger())
	rt := NewRuntime(f.tasks, f.reminders, f.budgets,
		services.NewRecurringProcessor(f.store, txs, quietLogger()), nil,
		Intervals{Recurring: time.Hour}, quietLogger())
	if err := rt.Start(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := f.store.QueryTransactions(ctx, storage.TransactionFilter{Category: "Food"})
	if err != nil || len(got) != 2 {
		t.Fatalf("transactions = %d (%v), want template plus one occurrence", len(got), err)
	}
}

func TestRuntimeRequeuesParkedExports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var failing atomic.Bool
	failing.Store(true)
	exporter := sheets.ExporterFunc(func(context.Context, core.Transaction) (string, error) {
		if failing.Load() {
			return "", errors.New("quota exceeded")
		}
		return "Transactions!A2:F2", nil
	})
	export := services.NewExportProcessor(exporter, services.ExportProcessorConfig{PollInterval: 5 * time.Millisecond, MaxRetries: 1}, quietLogger())
	txs := services.NewTransactionService(f.store, quietLogger())
	rt := NewRuntime(f.tasks, f.reminders, f.budgets,
		services.NewRecurringProcessor(f.store, txs, quietLogger()), export,
		Intervals{ExportRetry: time.Hour}, quietLogger())
	if err := rt.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		rt.Stop(stopCtx)
	})

	found := false
	for _, p := range f.tasks.Pending() {
		found = found || p.Key == JobExportRetry
	}
	if !found {
		t.Fatal("export retry job not scheduled")
	}

	waitFor := func(cond func(services.ExportStats) bool) services.ExportStats {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if st := export.Stats(); cond(st) {
				return st
			}
			time.Sleep(5 * time.Millisecond)
		}
		return export.Stats()
	}

	export.Enqueue(core.Transaction{ID: 1})
	if st := waitFor(func(st services.ExportStats) bool { return st.Failed == 1 }); st.Failed != 1 {
		t.Fatalf("stats = %+v, want one parked export", st)
	}

	failing.Store(false)
	if err := f.tasks.RunNow(ctx, scheduler.Job{Kind: JobExportRetry}); err != nil {
		t.Fatal(err)
	}
	if st := waitFor(func(st services.ExportStats) bool { return st.Exported == 1 }); st.Exported != 1 || st.Failed != 0 {
		t.Fatalf("stats = %+v, want the parked export sent", st)
	}
}
