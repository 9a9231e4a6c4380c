// Package memory is a process-local implementation of every store. It backs
// DATA_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"walletlens/internal/core"
	"walletlens/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu           sync.Mutex
	nextID       int64
	transactions map[int64]core.Transaction
	lastRun      map[int64]time.Time
	budgets      map[int64]core.Budget
	reminders    map[int64]core.Reminder
}

func New() *Store {
	return &Store{
		transactions: make(map[int64]core.Transaction),
		lastRun:      make(map[int64]time.Time),
		budgets:      make(map[int64]core.Budget),
		reminders:    make(map[int64]core.Reminder),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Close() error { return nil }

// QueryTransactions returns matches newest first; ties keep insertion order.
func (s *Store) QueryTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, t := range s.transactions {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	s.transactions[t.ID] = t
	return t, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[t.ID]; !ok {
		return storage.ErrNotFound
	}
	s.transactions[t.ID] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.transactions, id)
	delete(s.lastRun, id)
	return nil
}

func (s *Store) ListRecurringTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.Recurring {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) LastRun(_ context.Context, templateID int64) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[templateID]; !ok {
		return time.Time{}, storage.ErrNotFound
	}
	return s.lastRun[templateID], nil
}

func (s *Store) SetLastRun(_ context.Context, templateID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[templateID]; !ok {
		return storage.ErrNotFound
	}
	s.lastRun[templateID] = at
	return nil
}

func (s *Store) ListActiveBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Budget, 0)
	for _, b := range s.budgets {
		if b.Active {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetBudget(_ context.Context, id int64) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *Store) InsertBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.id()
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[b.ID]; !ok {
		return storage.ErrNotFound
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) DeactivateBudget(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return storage.ErrNotFound
	}
	b.Active = false
	s.budgets[id] = b
	return nil
}

func (s *Store) ListActiveReminders(_ context.Context, r core.DateRange) ([]core.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Reminder, 0)
	for _, rem := range s.reminders {
		if rem.Completed {
			continue
		}
		if !r.IsZero() && !r.Contains(rem.Due) {
			continue
		}
		out = append(out, rem)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Due.Equal(out[j].Due) {
			return out[i].Due.Before(out[j].Due)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetReminder(_ context.Context, id int64) (core.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return core.Reminder{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) InsertReminder(_ context.Context, r core.Reminder) (core.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	s.reminders[r.ID] = r
	return r, nil
}

func (s *Store) UpdateReminder(_ context.Context, r core.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[r.ID]; !ok {
		return storage.ErrNotFound
	}
	s.reminders[r.ID] = r
	return nil
}

func (s *Store) MarkReminderCompleted(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return storage.ErrNotFound
	}
	r.Completed = true
	s.reminders[id] = r
	return nil
}

func (s *Store) DeleteReminder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.reminders, id)
	return nil
}
