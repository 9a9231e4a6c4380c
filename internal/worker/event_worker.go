package worker

import (
	"context"
	"errors"
	"fmt"

	"walletlens/internal/amqp"
	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/services"
	"walletlens/internal/storage"
)

// EventWorker applies change events published by the API process: budget
// checks and exports for new transactions, (re)scheduling for reminders.
type EventWorker struct {
	transactions storage.TransactionStore
	reminders    storage.ReminderStore
	hooks        []services.TransactionHook
	scheduler    *services.ReminderScheduler
	logger       *log.Logger
}

func NewEventWorker(transactions storage.TransactionStore, reminders storage.ReminderStore, scheduler *services.ReminderScheduler, logger *log.Logger, hooks ...services.TransactionHook) *EventWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &EventWorker{
		transactions: transactions,
		reminders:    reminders,
		hooks:        hooks,
		scheduler:    scheduler,
		logger:       logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes a single event. A returned error requeues it.
func (w *EventWorker) HandleEvent(ctx context.Context, e *amqp.Event) error {
	w.logger.DebugContext(ctx, "Processing event", "type", string(e.Type), "id", e.ID)

	switch e.Type {
	case amqp.EventTransactionCreated, amqp.EventTransactionUpdated:
		return w.handleTransaction(ctx, e)
	case amqp.EventTransactionDeleted:
		return w.runHooks(ctx, services.TransactionChange{
			Kind:        services.ChangeDeleted,
			Transaction: core.Transaction{ID: e.ID, Category: e.Category, Type: core.TransactionType(e.Kind)},
		})
	case amqp.EventReminderChanged:
		return w.handleReminder(ctx, e.ID)
	case amqp.EventReminderRemoved:
		w.scheduler.Cancel(e.ID)
		return nil
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event", "type", string(e.Type))
		return nil
	}
}

func (w *EventWorker) handleTransaction(ctx context.Context, e *amqp.Event) error {
	tx, err := w.transactions.GetTransaction(ctx, e.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// deleted before the event was consumed
		w.logger.InfoContext(ctx, "Transaction gone, skipping event", log.FieldTransactionID, e.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction %d: %w", e.ID, err)
	}

	kind := services.ChangeCreated
	if e.Type == amqp.EventTransactionUpdated {
		kind = services.ChangeUpdated
	}
	return w.runHooks(ctx, services.TransactionChange{Kind: kind, Transaction: tx})
}

func (w *EventWorker) runHooks(ctx context.Context, c services.TransactionChange) error {
	var errs []error
	for _, h := range w.hooks {
		if err := h.TransactionChanged(ctx, c); err != nil {
			w.logger.ErrorContext(ctx, "Transaction hook failed",
				log.FieldTransactionID, c.Transaction.ID, log.FieldError, err)
			errs = append(errs, err)
		}
	}
	// a budget check that failed is retried by the periodic check, not by
	// redelivering the event to every hook again
	if len(errs) > 0 && len(errs) == len(w.hooks) {
		return errors.Join(errs...)
	}
	return nil
}

func (w *EventWorker) handleReminder(ctx context.Context, id int64) error {
	r, err := w.reminders.GetReminder(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		w.scheduler.Cancel(id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get reminder %d: %w", id, err)
	}
	return w.scheduler.Schedule(ctx, r)
}
