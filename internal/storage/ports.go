// Package storage declares the store contracts the services depend on.
// Implementations live in storage/sqlite and storage/memory.
package storage

import (
	"context"
	"errors"
	"time"

	"walletlens/internal/core"
)

var ErrNotFound = errors.New("not found")

// TransactionFilter narrows a transaction query. Empty fields match everything;
// a zero Range means no date bound.
type TransactionFilter struct {
	Category string
	Type     core.TransactionType
	Range    core.DateRange
}

// Match reports whether t passes the filter.
func (f TransactionFilter) Match(t core.Transaction) bool {
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if !f.Range.IsZero() && !f.Range.Contains(t.Timestamp) {
		return false
	}
	return true
}

type (
	TransactionStore interface {
		// QueryTransactions returns matches ordered by timestamp, newest first.
		QueryTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, id int64) error
	}

	// RecurringStore tracks transaction templates that repeat.
	RecurringStore interface {
		ListRecurringTransactions(ctx context.Context) ([]core.Transaction, error)
		// LastRun returns the zero time when the template never ran.
		LastRun(ctx context.Context, templateID int64) (time.Time, error)
		SetLastRun(ctx context.Context, templateID int64, at time.Time) error
	}

	BudgetStore interface {
		ListActiveBudgets(ctx context.Context) ([]core.Budget, error)
		GetBudget(ctx context.Context, id int64) (core.Budget, error)
		InsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) error
		DeactivateBudget(ctx context.Context, id int64) error
	}

	ReminderStore interface {
		// ListActiveReminders returns reminders that are not completed, ordered
		// by due date. A zero range returns all of them.
		ListActiveReminders(ctx context.Context, r core.DateRange) ([]core.Reminder, error)
		GetReminder(ctx context.Context, id int64) (core.Reminder, error)
		InsertReminder(ctx context.Context, r core.Reminder) (core.Reminder, error)
		UpdateReminder(ctx context.Context, r core.Reminder) error
		MarkReminderCompleted(ctx context.Context, id int64) error
		DeleteReminder(ctx context.Context, id int64) error
	}

	// Store bundles every store a backend provides.
	Store interface {
		TransactionStore
		RecurringStore
		BudgetStore
		ReminderStore
		Close() error
	}
)
