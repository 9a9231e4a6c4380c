package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/storage"
	"walletlens/internal/storage/memory"
)

var errStoreDown = errors.New("store unavailable")

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func expense(amount, category string, at time.Time) core.Transaction {
	return core.Transaction{Amount: amt(amount), Description: category, Category: category, Type: core.Expense, Timestamp: at}
}

func income(amount string, at time.Time) core.Transaction {
	return core.Transaction{Amount: amt(amount), Description: "Salary", Category: "Salary", Type: core.Income, Timestamp: at}
}

// flakyStore fails transaction queries for selected categories, or all of
// them when failAll is set.
type flakyStore struct {
	*memory.Store
	failAll      bool
	failCategory string
	failBudgets  bool
	// failReminderUpdates is how many UpdateReminder calls fail before
	// the store recovers
	failReminderUpdates int
}

func (f *flakyStore) UpdateReminder(ctx context.Context, r core.Reminder) error {
	if f.failReminderUpdates > 0 {
		f.failReminderUpdates--
		return errStoreDown
	}
	return f.Store.UpdateReminder(ctx, r)
}

func (f *flakyStore) QueryTransactions(ctx context.Context, filter storage.TransactionFilter) ([]core.Transaction, error) {
	if f.failAll || (f.failCategory != "" && filter.Category == f.failCategory) {
		return nil, errStoreDown
	}
	return f.Store.QueryTransactions(ctx, filter)
}

func (f *flakyStore) ListActiveBudgets(ctx context.Context) ([]core.Budget, error) {
	if f.failBudgets {
		return nil, errStoreDown
	}
	return f.Store.ListActiveBudgets(ctx)
}

func (f *flakyStore) ListActiveReminders(ctx context.Context, r core.DateRange) ([]core.Reminder, error) {
	if f.failAll {
		return nil, errStoreDown
	}
	return f.Store.ListActiveReminders(ctx, r)
}

func seed(store storage.TransactionStore, txs ...core.Transaction) {
	for _, t := range txs {
		if _, err := store.InsertTransaction(context.Background(), t); err != nil {
			panic(err)
		}
	}
}
