package worker

import (
	"context"
	"errors"
	"time"

	"walletlens/internal/log"
	"walletlens/internal/scheduler"
	"walletlens/internal/services"
)

// Periodic job kinds
const (
	JobBudgetCheck    = "budget_check"
	JobRecurring      = "recurring"
	JobReminderRescan = "reminder_rescan"
	JobExportRetry    = "export_retry"
	// one-shot follow-up of a budget check that found the store down
	JobBudgetRetry = "budget_check_retry"
)

const budgetRetryDelay = time.Minute

// Intervals for the periodic jobs
type Intervals struct {
	BudgetCheck    time.Duration
	Recurring      time.Duration
	ReminderRescan time.Duration
	ExportRetry    time.Duration
}

// Runtime owns the background work of one process: the task scheduler,
// reminder fires, periodic budget checks, recurring transactions and the
// optional spreadsheet export.
type Runtime struct {
	Tasks     *scheduler.Scheduler
	Reminders *services.ReminderScheduler
	Budgets   *services.BudgetEvaluator
	Recurring *services.RecurringProcessor
	Export    *services.ExportProcessor

	intervals Intervals
	now       func() time.Time
	logger    *log.Logger
}

func NewRuntime(tasks *scheduler.Scheduler, reminders *services.ReminderScheduler, budgets *services.BudgetEvaluator, recurring *services.RecurringProcessor, export *services.ExportProcessor, intervals Intervals, logger *log.Logger) *Runtime {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Runtime{
		Tasks:     tasks,
		Reminders: reminders,
		Budgets:   budgets,
		Recurring: recurring,
		Export:    export,
		intervals: intervals,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// Start schedules every active reminder, registers the periodic jobs and
// starts the export processor. It does not block.
func (r *Runtime) Start(ctx context.Context) error {
	// A periodic fire never retries itself, so a failed tick arms a
	// one-shot retry key that the scheduler backs off under MaxRetries.
	r.Tasks.Handle(JobBudgetCheck, func(ctx context.Context, _ scheduler.Job) error {
		if !r.Budgets.CheckAll(ctx).NeedsRetry() {
			r.Tasks.Cancel(JobBudgetRetry)
			return nil
		}
		r.logger.WarnContext(ctx, "Budget check failed, retry armed", "delay", budgetRetryDelay)
		return r.Tasks.ScheduleOnce(JobBudgetRetry, budgetRetryDelay, scheduler.Job{Kind: JobBudgetRetry})
	})
	r.Tasks.Handle(JobBudgetRetry, func(ctx context.Context, _ scheduler.Job) error {
		if r.Budgets.CheckAll(ctx).NeedsRetry() {
			return scheduler.RetryAfter(budgetRetryDelay, "budget store unavailable")
		}
		return nil
	})
	r.Tasks.Handle(JobRecurring, func(ctx context.Context, _ scheduler.Job) error {
		_, err := r.Recurring.ProcessDue(ctx, r.now())
		return err
	})
	r.Tasks.Handle(JobReminderRescan, func(ctx context.Context, _ scheduler.Job) error {
		_, err := r.Reminders.ScheduleAll(ctx)
		return err
	})
	r.Tasks.Handle(JobExportRetry, func(ctx context.Context, _ scheduler.Job) error {
		if n := r.Export.RetryFailed(); n > 0 {
			r.logger.InfoContext(ctx, "Parked exports requeued", "count", n)
		}
		return nil
	})

	if n, err := r.Reminders.ScheduleAll(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Initial reminder scan failed", log.FieldError, err)
	} else {
		r.logger.InfoContext(ctx, "Reminders scheduled", "count", n)
	}

	// Occurrences missed while the process was down are created now rather
	// than one interval later.
	if err := r.Tasks.RunNow(ctx, scheduler.Job{Kind: JobRecurring}); err != nil {
		r.logger.ErrorContext(ctx, "Initial recurring pass failed", log.FieldError, err)
	}

	periodic := []struct {
		kind     string
		interval time.Duration
	}{
		{JobBudgetCheck, r.intervals.BudgetCheck},
		{JobRecurring, r.intervals.Recurring},
		{JobReminderRescan, r.intervals.ReminderRescan},
	}
	if r.Export != nil {
		periodic = append(periodic, struct {
			kind     string
			interval time.Duration
		}{JobExportRetry, r.intervals.ExportRetry})
	}
	for _, p := range periodic {
		if p.interval <= 0 {
			continue
		}
		if err := r.Tasks.SchedulePeriodic(p.kind, p.interval, scheduler.Job{Kind: p.kind}); err != nil {
			return err
		}
	}

	if r.Export != nil {
		if err := r.Export.Start(ctx); err != nil {
			return err
		}
	}

	r.logger.InfoContext(ctx, "Worker runtime started",
		"budget_check_interval", r.intervals.BudgetCheck,
		"recurring_interval", r.intervals.Recurring,
		"reminder_rescan_interval", r.intervals.ReminderRescan,
		"export_retry_interval", r.intervals.ExportRetry,
		"export", r.Export != nil)
	return nil
}

// Stop stops the export processor and waits for running jobs
func (r *Runtime) Stop(ctx context.Context) error {
	var errs []error
	if r.Export != nil {
		errs = append(errs, r.Export.Stop(ctx))
	}
	errs = append(errs, r.Tasks.Stop(ctx))
	return errors.Join(errs...)
}
