package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/notify"
	"walletlens/internal/scheduler"
	"walletlens/internal/storage"
)

// JobReminder is the scheduler job kind of a reminder fire
const JobReminder = "reminder"

const dispatchRetryDelay = time.Minute

// ReminderKey is the scheduler key of a reminder. One key per reminder keeps
// at most one pending fire.
func ReminderKey(id int64) string {
	return fmt.Sprintf("reminder_%d", id)
}

// Plan is what scheduling a reminder amounts to at a given instant
type Plan struct {
	Immediate bool
	Delay     time.Duration
}

// PlanReminder dispatches immediately when due is not after now, otherwise
// waits due-now.
func PlanReminder(due, now time.Time) Plan {
	if !due.After(now) {
		return Plan{Immediate: true}
	}
	return Plan{Delay: due.Sub(now)}
}

// ReminderNotification renders the payment reminder for r
func ReminderNotification(r core.Reminder) notify.Notification {
	body := fmt.Sprintf("%s: %s", r.Title, core.FormatAmount(r.Amount))
	if d := strings.TrimSpace(r.Description); d != "" {
		body += "\n" + d
	}
	return notify.New(notify.KindReminder, "Payment Reminder", body, r.ID)
}

// TaskScheduler is the delayed task facility reminders are scheduled on
type TaskScheduler interface {
	Handle(kind string, h scheduler.Handler)
	ScheduleOnce(key string, delay time.Duration, job scheduler.Job) error
	Cancel(key string) bool
}

// ReminderSchedulerOptions tunes a ReminderScheduler
type ReminderSchedulerOptions struct {
	StoreTimeout time.Duration
	Now          func() time.Time
	Logger       *log.Logger
}

// ReminderScheduler turns reminders into scheduled notification fires
type ReminderScheduler struct {
	store      storage.ReminderStore
	tasks      TaskScheduler
	dispatcher notify.Dispatcher
	timeout    time.Duration
	now        func() time.Time
	logger     *log.Logger

	mu     sync.Mutex
	claims map[int64]claim
}

// claim is the latest occurrence of one reminder this process dispatched or
// is dispatching. Keyed by reminder id, so it holds one entry per reminder.
type claim struct {
	due  time.Time
	sent bool
}

// NewReminderScheduler registers the reminder job handler on tasks
func NewReminderScheduler(store storage.ReminderStore, tasks TaskScheduler, dispatcher notify.Dispatcher, opts ReminderSchedulerOptions) *ReminderScheduler {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	s := &ReminderScheduler{
		store:      store,
		tasks:      tasks,
		dispatcher: dispatcher,
		timeout:    opts.StoreTimeout,
		now:        opts.Now,
		logger:     opts.Logger.WithComponent(log.ComponentReminder),
		claims:     make(map[int64]claim),
	}
	tasks.Handle(JobReminder, s.Fire)
	return s
}

// Schedule arranges the notification for r. Completed reminders are
// cancelled; overdue ones are delivered right away.
func (s *ReminderScheduler) Schedule(ctx context.Context, r core.Reminder) error {
	key := ReminderKey(r.ID)
	if r.Completed {
		s.Cancel(r.ID)
		return nil
	}

	plan := PlanReminder(r.Due, s.now())
	if !plan.Immediate {
		if err := s.tasks.ScheduleOnce(key, plan.Delay, scheduler.Job{Kind: JobReminder, RefID: r.ID}); err != nil {
			return fmt.Errorf("schedule reminder %d: %w", r.ID, err)
		}
		s.logger.DebugContext(ctx, "Reminder scheduled",
			log.FieldReminderID, r.ID, log.FieldJobKey, key, "delay", plan.Delay.String())
		return nil
	}

	s.tasks.Cancel(key)
	err := s.deliver(ctx, r)
	var retry *scheduler.RetryError
	if errors.As(err, &retry) {
		return s.tasks.ScheduleOnce(key, retry.Delay, scheduler.Job{Kind: JobReminder, RefID: r.ID})
	}
	return err
}

// Fire is the scheduler handler. It re-reads the reminder so a stale fire
// after completion or deletion is a no-op, and asks for a retry when the
// reminder is not due yet.
func (s *ReminderScheduler) Fire(ctx context.Context, job scheduler.Job) error {
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	r, err := s.store.GetReminder(rctx, job.RefID)
	cancel()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.logger.InfoContext(ctx, "Reminder no longer exists, skipping", log.FieldReminderID, job.RefID)
		return nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Reminder lookup failed", log.FieldReminderID, job.RefID, log.FieldError, err)
		return scheduler.RetryAfter(dispatchRetryDelay, "reminder store unavailable")
	}

	if r.Completed {
		return nil
	}
	if now := s.now(); r.Due.After(now) {
		return scheduler.RetryAfter(r.Due.Sub(now), "reminder not yet due")
	}
	return s.deliver(ctx, r)
}

// deliver dispatches r once per (reminder, due) occurrence and advances a
// recurring reminder to its next due date. The occurrence is claimed before
// dispatching so a concurrent rescan and fire cannot both send it.
func (s *ReminderScheduler) deliver(ctx context.Context, r core.Reminder) error {
	s.mu.Lock()
	if c, ok := s.claims[r.ID]; ok && c.due.Equal(r.Due) {
		s.mu.Unlock()
		if !c.sent {
			return nil
		}
		// sent earlier; the advance may still be owed after a failed update
		return s.advance(ctx, r)
	}
	s.claims[r.ID] = claim{due: r.Due}
	s.mu.Unlock()

	n := ReminderNotification(r)
	if err := s.dispatcher.Dispatch(ctx, n); err != nil {
		s.release(r.ID, r.Due)
		s.logger.ErrorContext(ctx, "Reminder dispatch failed", log.FieldReminderID, r.ID, log.FieldError, err)
		return scheduler.RetryAfter(dispatchRetryDelay, "dispatch failed")
	}

	s.mu.Lock()
	s.claims[r.ID] = claim{due: r.Due, sent: true}
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Reminder dispatched",
		log.FieldReminderID, r.ID, log.FieldNotification, n.ID)

	return s.advance(ctx, r)
}

// advance moves a recurring reminder past now and schedules the next fire.
// A failed update asks for a retry; the dispatched occurrence stays claimed.
func (s *ReminderScheduler) advance(ctx context.Context, r core.Reminder) error {
	if !r.Recurring {
		return nil
	}
	next, ok := NextDueAfter(r.Due, s.now(), r.Interval)
	if !ok {
		s.logger.InfoContext(ctx, "Recurring reminder has no usable interval, not rescheduling",
			log.FieldReminderID, r.ID, "interval", string(r.Interval))
		return nil
	}

	r.Due = next
	uctx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.store.UpdateReminder(uctx, r)
	cancel()
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to advance recurring reminder",
			log.FieldReminderID, r.ID, log.FieldError, err)
		return scheduler.RetryAfter(dispatchRetryDelay, "reminder store unavailable")
	}
	return s.Schedule(ctx, r)
}

func (s *ReminderScheduler) release(id int64, due time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.claims[id]; ok && c.due.Equal(due) {
		delete(s.claims, id)
	}
}

// Cancel drops the pending fire of a reminder and forgets its delivery
func (s *ReminderScheduler) Cancel(id int64) {
	s.tasks.Cancel(ReminderKey(id))
	s.mu.Lock()
	delete(s.claims, id)
	s.mu.Unlock()
}

// ScheduleAll schedules every active reminder. Rescheduling is idempotent
// per key, so it doubles as the periodic rescan.
func (s *ReminderScheduler) ScheduleAll(ctx context.Context) (int, error) {
	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	reminders, err := s.store.ListActiveReminders(lctx, core.DateRange{})
	cancel()
	if err != nil {
		return 0, fmt.Errorf("list reminders: %w", err)
	}

	scheduled := 0
	for _, r := range reminders {
		if err := s.Schedule(ctx, r); err != nil {
			s.logger.ErrorContext(ctx, "Failed to schedule reminder", log.FieldReminderID, r.ID, log.FieldError, err)
			continue
		}
		scheduled++
	}
	s.logger.InfoContext(ctx, "Reminders scheduled", "scheduled", scheduled, "active", len(reminders))
	return scheduled, nil
}

func (s *ReminderScheduler) ReminderChanged(ctx context.Context, r core.Reminder) error {
	return s.Schedule(ctx, r)
}

func (s *ReminderScheduler) ReminderRemoved(_ context.Context, id int64) error {
	s.Cancel(id)
	return nil
}
