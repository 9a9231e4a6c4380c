package services

import (
	"context"
	"fmt"

	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/storage"
)

// BudgetService manages budgets. At most one budget per category is active:
// creating a budget deactivates the category's previous one.
type BudgetService struct {
	store  storage.BudgetStore
	logger *log.Logger
}

func NewBudgetService(store storage.BudgetStore, logger *log.Logger) *BudgetService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &BudgetService{store: store, logger: logger.WithComponent(log.ComponentBudget)}
}

func (s *BudgetService) ListActive(ctx context.Context) ([]core.Budget, error) {
	budgets, err := s.store.ListActiveBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

func (s *BudgetService) Get(ctx context.Context, id int64) (core.Budget, error) {
	return s.store.GetBudget(ctx, id)
}

func (s *BudgetService) Create(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.Active = true
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	if err := s.deactivateCategory(ctx, b.Category, 0); err != nil {
		return core.Budget{}, err
	}

	created, err := s.store.InsertBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	s.logger.InfoContext(ctx, "Budget created",
		log.FieldBudgetID, created.ID, log.FieldCategory, created.Category,
		log.FieldAmount, created.Limit.StringFixed(2), "period", string(created.Period))
	return created, nil
}

// Update replaces b. Re-activating a budget deactivates its category's
// other active budget.
func (s *BudgetService) Update(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Active {
		if err := s.deactivateCategory(ctx, b.Category, b.ID); err != nil {
			return err
		}
	}
	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return fmt.Errorf("update budget %d: %w", b.ID, err)
	}
	s.logger.InfoContext(ctx, "Budget updated", log.FieldBudgetID, b.ID)
	return nil
}

func (s *BudgetService) Deactivate(ctx context.Context, id int64) error {
	if err := s.store.DeactivateBudget(ctx, id); err != nil {
		return fmt.Errorf("deactivate budget %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Budget deactivated", log.FieldBudgetID, id)
	return nil
}

func (s *BudgetService) deactivateCategory(ctx context.Context, category string, keep int64) error {
	active, err := s.store.ListActiveBudgets(ctx)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}
	for _, prev := range active {
		if prev.Category != category || prev.ID == keep {
			continue
		}
		if err := s.store.DeactivateBudget(ctx, prev.ID); err != nil {
			return fmt.Errorf("deactivate budget %d: %w", prev.ID, err)
		}
		s.logger.InfoContext(ctx, "Previous budget deactivated",
			log.FieldBudgetID, prev.ID, log.FieldCategory, category)
	}
	return nil
}
