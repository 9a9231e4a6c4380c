package services

import (
	"context"

	"walletlens/internal/core"
	"walletlens/internal/log"
)

// ChangeKind names a mutation
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// TransactionChange describes a committed transaction mutation. For deletes
// only Transaction.ID is guaranteed to be set.
type TransactionChange struct {
	Kind        ChangeKind
	Transaction core.Transaction
}

// TransactionHook reacts to committed transaction changes
type TransactionHook interface {
	TransactionChanged(ctx context.Context, c TransactionChange) error
}

// ReminderHook reacts to committed reminder changes
type ReminderHook interface {
	ReminderChanged(ctx context.Context, r core.Reminder) error
	ReminderRemoved(ctx context.Context, id int64) error
}

// TransactionHookFunc adapts a function to TransactionHook
type TransactionHookFunc func(ctx context.Context, c TransactionChange) error

func (f TransactionHookFunc) TransactionChanged(ctx context.Context, c TransactionChange) error {
	return f(ctx, c)
}

// runTransactionHooks calls every hook. The mutation is already stored, so
// hook failures are only logged.
func runTransactionHooks(ctx context.Context, logger *log.Logger, hooks []TransactionHook, c TransactionChange) {
	for _, h := range hooks {
		if err := h.TransactionChanged(ctx, c); err != nil {
			logger.ErrorContext(ctx, "Transaction hook failed",
				log.FieldTransactionID, c.Transaction.ID, "change", string(c.Kind), log.FieldError, err)
		}
	}
}
