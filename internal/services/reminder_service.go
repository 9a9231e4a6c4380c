package services

import (
	"context"
	"fmt"
	"time"

	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/storage"
)

// ReminderService manages reminders and keeps their schedules in sync
// through the registered hooks.
type ReminderService struct {
	store  storage.ReminderStore
	hooks  []ReminderHook
	logger *log.Logger
}

func NewReminderService(store storage.ReminderStore, logger *log.Logger, hooks ...ReminderHook) *ReminderService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReminderService{store: store, hooks: hooks, logger: logger.WithComponent(log.ComponentReminder)}
}

func (s *ReminderService) AddHook(h ReminderHook) {
	s.hooks = append(s.hooks, h)
}

// ListActive returns reminders not completed, due inside r (zero = all)
func (s *ReminderService) ListActive(ctx context.Context, r core.DateRange) ([]core.Reminder, error) {
	list, err := s.store.ListActiveReminders(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return list, nil
}

// Upcoming returns active reminders due in [now, now+lookahead]
func (s *ReminderService) Upcoming(ctx context.Context, now time.Time, lookahead time.Duration) ([]core.Reminder, error) {
	return s.ListActive(ctx, core.DateRange{Start: now, End: now.Add(lookahead)})
}

func (s *ReminderService) Get(ctx context.Context, id int64) (core.Reminder, error) {
	return s.store.GetReminder(ctx, id)
}

func (s *ReminderService) Create(ctx context.Context, r core.Reminder) (core.Reminder, error) {
	r.Completed = false
	if err := r.Validate(); err != nil {
		return core.Reminder{}, err
	}
	created, err := s.store.InsertReminder(ctx, r)
	if err != nil {
		return core.Reminder{}, fmt.Errorf("save reminder: %w", err)
	}
	s.logger.InfoContext(ctx, "Reminder created",
		log.FieldReminderID, created.ID, "due", created.Due.Format(time.RFC3339))
	s.changed(ctx, created)
	return created, nil
}

func (s *ReminderService) Update(ctx context.Context, r core.Reminder) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateReminder(ctx, r); err != nil {
		return fmt.Errorf("update reminder %d: %w", r.ID, err)
	}
	s.logger.InfoContext(ctx, "Reminder updated", log.FieldReminderID, r.ID)
	s.changed(ctx, r)
	return nil
}

func (s *ReminderService) Complete(ctx context.Context, id int64) error {
	if err := s.store.MarkReminderCompleted(ctx, id); err != nil {
		return fmt.Errorf("complete reminder %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Reminder completed", log.FieldReminderID, id)
	s.removed(ctx, id)
	return nil
}

func (s *ReminderService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteReminder(ctx, id); err != nil {
		return fmt.Errorf("delete reminder %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Reminder deleted", log.FieldReminderID, id)
	s.removed(ctx, id)
	return nil
}

func (s *ReminderService) changed(ctx context.Context, r core.Reminder) {
	for _, h := range s.hooks {
		if err := h.ReminderChanged(ctx, r); err != nil {
			s.logger.ErrorContext(ctx, "Reminder hook failed", log.FieldReminderID, r.ID, log.FieldError, err)
		}
	}
}

func (s *ReminderService) removed(ctx context.Context, id int64) {
	for _, h := range s.hooks {
		if err := h.ReminderRemoved(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "Reminder hook failed", log.FieldReminderID, id, log.FieldError, err)
		}
	}
}
