// Package sqlite stores transactions, budgets and reminders in a SQLite file.
// Amounts are kept as decimal strings and timestamps as unix seconds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"walletlens/internal/core"
	"walletlens/internal/storage"

	_ "modernc.org/sqlite"
)

var _ storage.Store = (*Repository)(nil)

type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the database at dbPath and
// migrates it to the latest schema.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(s int64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	return time.Unix(s, 0).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

const transactionColumns = `id, amount, description, category, type, occurred_at, receipt_ref, recurring, recurrence_interval`

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		amount    string
		typ       string
		occurred  int64
		recurring int
		interval  string
	)
	if err := s.Scan(&t.ID, &amount, &t.Description, &t.Category, &typ, &occurred, &t.ReceiptRef, &recurring, &interval); err != nil {
		return core.Transaction{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d amount %q: %w", t.ID, amount, err)
	}
	t.Amount = d
	t.Type = core.TransactionType(typ)
	t.Timestamp = fromUnix(occurred)
	t.Recurring = recurring == 1
	t.Interval = core.RecurrenceInterval(interval)
	return t, nil
}

// QueryTransactions implements storage.TransactionStore
func (r *Repository) QueryTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if !f.Range.IsZero() {
		where = append(where, "occurred_at BETWEEN ? AND ?")
		args = append(args, f.Range.Start.Unix(), f.Range.End.Unix())
	}

	q := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY occurred_at DESC, id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, notFound(err))
	}
	return t, nil
}

func (r *Repository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (amount, description, category, type, occurred_at, receipt_ref, recurring, recurrence_interval)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Amount.String(), t.Description, t.Category, string(t.Type), toUnix(t.Timestamp),
		t.ReceiptRef, boolInt(t.Recurring), string(t.Interval))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read transaction id: %w", err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"type", t.Type,
		"category", t.Category,
		"amount", t.Amount.String())

	return t, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET amount = ?, description = ?, category = ?, type = ?, occurred_at = ?,
		 receipt_ref = ?, recurring = ?, recurrence_interval = ? WHERE id = ?`,
		t.Amount.String(), t.Description, t.Category, string(t.Type), toUnix(t.Timestamp),
		t.ReceiptRef, boolInt(t.Recurring), string(t.Interval), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	return affected(res)
}

func (r *Repository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return affected(res)
}

// ListRecurringTransactions implements storage.RecurringStore
func (r *Repository) ListRecurringTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE recurring = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) LastRun(ctx context.Context, templateID int64) (time.Time, error) {
	var last sql.NullInt64
	err := r.db.QueryRowContext(ctx, "SELECT last_run_at FROM transactions WHERE id = ?", templateID).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("get last run %d: %w", templateID, notFound(err))
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return fromUnix(last.Int64), nil
}

func (r *Repository) SetLastRun(ctx context.Context, templateID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, "UPDATE transactions SET last_run_at = ? WHERE id = ?", toUnix(at), templateID)
	if err != nil {
		return fmt.Errorf("set last run %d: %w", templateID, err)
	}
	return affected(res)
}

const budgetColumns = `id, category, limit_amount, description, period, start_at, end_at, active, goal`

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b            core.Budget
		limit        string
		period       string
		start, end   int64
		active, goal int
	)
	if err := s.Scan(&b.ID, &b.Category, &limit, &b.Description, &period, &start, &end, &active, &goal); err != nil {
		return core.Budget{}, err
	}
	d, err := decimal.NewFromString(limit)
	if err != nil {
		return core.Budget{}, fmt.Errorf("budget %d limit %q: %w", b.ID, limit, err)
	}
	b.Limit = d
	b.Period = core.BudgetPeriod(period)
	b.Start = fromUnix(start)
	b.End = fromUnix(end)
	b.Active = active == 1
	b.Goal = goal == 1
	return b, nil
}

// ListActiveBudgets implements storage.BudgetStore
func (r *Repository) ListActiveBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE active = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list active budgets: %w", err)
	}
	defer rows.Close()

	out := make([]core.Budget, 0)
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE id = ?", id))
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d: %w", id, notFound(err))
	}
	return b, nil
}

func (r *Repository) InsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (category, limit_amount, description, period, start_at, end_at, active, goal)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Category, b.Limit.String(), b.Description, string(b.Period),
		toUnix(b.Start), toUnix(b.End), boolInt(b.Active), boolInt(b.Goal))
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("read budget id: %w", err)
	}
	b.ID = id
	slog.InfoContext(ctx, "Budget saved to SQLite", "id", id, "category", b.Category, "period", b.Period)
	return b, nil
}

func (r *Repository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET category = ?, limit_amount = ?, description = ?, period = ?, start_at = ?,
		 end_at = ?, active = ?, goal = ? WHERE id = ?`,
		b.Category, b.Limit.String(), b.Description, string(b.Period),
		toUnix(b.Start), toUnix(b.End), boolInt(b.Active), boolInt(b.Goal), b.ID)
	if err != nil {
		return fmt.Errorf("update budget %d: %w", b.ID, err)
	}
	return affected(res)
}

func (r *Repository) DeactivateBudget(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE budgets SET active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deactivate budget %d: %w", id, err)
	}
	return affected(res)
}

const reminderColumns = `id, title, description, amount, due_at, completed, category, recurring, recurrence_interval`

func scanReminder(s scanner) (core.Reminder, error) {
	var (
		rem                  core.Reminder
		amount               string
		due                  int64
		completed, recurring int
		interval             string
	)
	if err := s.Scan(&rem.ID, &rem.Title, &rem.Description, &amount, &due, &completed, &rem.Category, &recurring, &interval); err != nil {
		return core.Reminder{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Reminder{}, fmt.Errorf("reminder %d amount %q: %w", rem.ID, amount, err)
	}
	rem.Amount = d
	rem.Due = fromUnix(due)
	rem.Completed = completed == 1
	rem.Recurring = recurring == 1
	rem.Interval = core.RecurrenceInterval(interval)
	return rem, nil
}

// ListActiveReminders implements storage.ReminderStore
func (r *Repository) ListActiveReminders(ctx context.Context, rng core.DateRange) ([]core.Reminder, error) {
	q := "SELECT " + reminderColumns + " FROM reminders WHERE completed = 0"
	var args []any
	if !rng.IsZero() {
		q += " AND due_at BETWEEN ? AND ?"
		args = append(args, rng.Start.Unix(), rng.End.Unix())
	}
	q += " ORDER BY due_at, id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list active reminders: %w", err)
	}
	defer rows.Close()

	out := make([]core.Reminder, 0)
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

func (r *Repository) GetReminder(ctx context.Context, id int64) (core.Reminder, error) {
	rem, err := scanReminder(r.db.QueryRowContext(ctx, "SELECT "+reminderColumns+" FROM reminders WHERE id = ?", id))
	if err != nil {
		return core.Reminder{}, fmt.Errorf("get reminder %d: %w", id, notFound(err))
	}
	return rem, nil
}

func (r *Repository) InsertReminder(ctx context.Context, rem core.Reminder) (core.Reminder, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reminders (title, description, amount, due_at, completed, category, recurring, recurrence_interval)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rem.Title, rem.Description, rem.Amount.String(), toUnix(rem.Due), boolInt(rem.Completed),
		rem.Category, boolInt(rem.Recurring), string(rem.Interval))
	if err != nil {
		return core.Reminder{}, fmt.Errorf("insert reminder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Reminder{}, fmt.Errorf("read reminder id: %w", err)
	}
	rem.ID = id
	slog.InfoContext(ctx, "Reminder saved to SQLite", "id", id, "title", rem.Title, "due", rem.Due.Format(time.RFC3339))
	return rem, nil
}

func (r *Repository) UpdateReminder(ctx context.Context, rem core.Reminder) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET title = ?, description = ?, amount = ?, due_at = ?, completed = ?, category = ?,
		 recurring = ?, recurrence_interval = ? WHERE id = ?`,
		rem.Title, rem.Description, rem.Amount.String(), toUnix(rem.Due), boolInt(rem.Completed),
		rem.Category, boolInt(rem.Recurring), string(rem.Interval), rem.ID)
	if err != nil {
		return fmt.Errorf("update reminder %d: %w", rem.ID, err)
	}
	return affected(res)
}

func (r *Repository) MarkReminderCompleted(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE reminders SET completed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("complete reminder %d: %w", id, err)
	}
	return affected(res)
}

func (r *Repository) DeleteReminder(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM reminders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete reminder %d: %w", id, err)
	}
	return affected(res)
}
