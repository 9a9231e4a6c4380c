package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"walletlens/internal/core"
	"walletlens/internal/storage"
)

func tx(amount int64, cat string, typ core.TransactionType, ts time.Time) core.Transaction {
	return core.Transaction{
		Amount:      decimal.NewFromInt(amount),
		Description: cat,
		Category:    cat,
		Type:        typ,
		Timestamp:   ts,
	}
}

func TestQueryTransactionsFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	jan := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	for _, in := range []core.Transaction{
		tx(10, "Food", core.Expense, jan),
		tx(20, "Food", core.Expense, feb),
		tx(30, "Salary", core.Income, jan),
		tx(5, "Fuel", core.Expense, jan.Add(time.Hour)),
	} {
		if _, err := s.InsertTransaction(ctx, in); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter storage.TransactionFilter
		want   int
	}{
		{"no filter", storage.TransactionFilter{}, 4},
		{"category", storage.TransactionFilter{Category: "Food"}, 2},
		{"type", storage.TransactionFilter{Type: core.Income}, 1},
		{"range", storage.TransactionFilter{Range: core.MonthRange(jan)}, 3},
		{"all three", storage.TransactionFilter{Category: "Food", Type: core.Expense, Range: core.MonthRange(feb)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryTransactions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d transactions, want %d", len(got), tt.want)
			}
		})
	}

	all, _ := s.QueryTransactions(ctx, storage.TransactionFilter{})
	if !all[0].Timestamp.Equal(feb) {
		t.Fatalf("expected newest first, got %v", all[0].Timestamp)
	}
}

func TestTransactionCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()
	created, err := s.InsertTransaction(ctx, tx(10, "Food", core.Expense, time.Now()))
	if err != nil || created.ID == 0 {
		t.Fatalf("insert: id=%d err=%v", created.ID, err)
	}
	created.Description = "groceries"
	if err := s.UpdateTransaction(ctx, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetTransaction(ctx, created.ID)
	if err != nil || got.Description != "groceries" {
		t.Fatalf("get: %+v err=%v", got, err)
	}
	if err := s.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTransaction(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateTransaction(ctx, created); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestRecurringLastRun(t *testing.T) {
	ctx := context.Background()
	s := New()
	tpl := tx(50, "Gym", core.Expense, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	tpl.Recurring = true
	tpl.Interval = core.EveryMonth
	tpl, _ = s.InsertTransaction(ctx, tpl)
	_, _ = s.InsertTransaction(ctx, tx(1, "Food", core.Expense, time.Now()))

	list, _ := s.ListRecurringTransactions(ctx)
	if len(list) != 1 || list[0].ID != tpl.ID {
		t.Fatalf("unexpected recurring list: %+v", list)
	}
	if last, err := s.LastRun(ctx, tpl.ID); err != nil || !last.IsZero() {
		t.Fatalf("expected zero last run, got %v err=%v", last, err)
	}
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if err := s.SetLastRun(ctx, tpl.ID, at); err != nil {
		t.Fatalf("set last run: %v", err)
	}
	if last, _ := s.LastRun(ctx, tpl.ID); !last.Equal(at) {
		t.Fatalf("last run = %v, want %v", last, at)
	}
}

func TestBudgetsAndReminders(t *testing.T) {
	ctx := context.Background()
	s := New()
	b, _ := s.InsertBudget(ctx, core.Budget{Category: "Food", Limit: decimal.NewFromInt(100), Period: core.Monthly, Active: true})
	if err := s.DeactivateBudget(ctx, b.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if active, _ := s.ListActiveBudgets(ctx); len(active) != 0 {
		t.Fatalf("expected no active budgets, got %d", len(active))
	}

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	late, _ := s.InsertReminder(ctx, core.Reminder{Title: "b", Due: base.AddDate(0, 2, 0)})
	early, _ := s.InsertReminder(ctx, core.Reminder{Title: "a", Due: base})
	done, _ := s.InsertReminder(ctx, core.Reminder{Title: "c", Due: base.AddDate(0, 0, 1)})
	if err := s.MarkReminderCompleted(ctx, done.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	all, _ := s.ListActiveReminders(ctx, core.DateRange{})
	if len(all) != 2 || all[0].ID != early.ID || all[1].ID != late.ID {
		t.Fatalf("expected [early late] ordered by due, got %+v", all)
	}
	inJan, _ := s.ListActiveReminders(ctx, core.MonthRange(base))
	if len(inJan) != 1 || inJan[0].ID != early.ID {
		t.Fatalf("expected only early reminder in January, got %+v", inJan)
	}
}
