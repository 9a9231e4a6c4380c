package services

import (
	"context"
	"fmt"

	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/storage"
)

// TransactionService validates and stores transactions, then notifies hooks
type TransactionService struct {
	store  storage.TransactionStore
	hooks  []TransactionHook
	logger *log.Logger
}

func NewTransactionService(store storage.TransactionStore, logger *log.Logger, hooks ...TransactionHook) *TransactionService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &TransactionService{
		store:  store,
		hooks:  hooks,
		logger: logger.WithComponent(log.ComponentTransaction),
	}
}

// AddHook registers a hook after construction
func (s *TransactionService) AddHook(h TransactionHook) {
	s.hooks = append(s.hooks, h)
}

func (s *TransactionService) List(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	txs, err := s.store.QueryTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// Create stores t and runs the hooks with the stored record
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t.Amount = t.Amount.Round(2)

	created, err := s.store.InsertTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	fields := log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(created.ID, string(created.Type), created.Category, created.Amount.StringFixed(2))
	s.logger.InfoContext(ctx, "Transaction created", fields.ToSlice()...)

	runTransactionHooks(ctx, s.logger, s.hooks, TransactionChange{Kind: ChangeCreated, Transaction: created})
	return created, nil
}

func (s *TransactionService) Update(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	s.logger.InfoContext(ctx, "Transaction updated", log.FieldTransactionID, t.ID)
	runTransactionHooks(ctx, s.logger, s.hooks, TransactionChange{Kind: ChangeUpdated, Transaction: t})
	return nil
}

func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Transaction deleted", log.FieldTransactionID, id)
	runTransactionHooks(ctx, s.logger, s.hooks, TransactionChange{Kind: ChangeDeleted, Transaction: core.Transaction{ID: id}})
	return nil
}
