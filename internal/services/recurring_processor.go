package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/storage"
)

// RecurringProcessor materialises transactions from recurring templates
type RecurringProcessor struct {
	store        storage.RecurringStore
	transactions *TransactionService
	logger       *log.Logger
}

func NewRecurringProcessor(store storage.RecurringStore, transactions *TransactionService, logger *log.Logger) *RecurringProcessor {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RecurringProcessor{
		store:        store,
		transactions: transactions,
		logger:       logger.WithComponent(log.ComponentTransaction),
	}
}

// ProcessDue creates one transaction for every template that is due at now.
// A template that fails is logged and skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.transactions == nil {
		return 0, errors.New("recurring processor not properly initialized")
	}

	templates, err := p.store.ListRecurringTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recurring transactions: %w", err)
	}

	created := 0
	for _, tpl := range templates {
		ok, err := p.isDue(ctx, tpl, now)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to check recurring template",
				log.FieldTransactionID, tpl.ID, log.FieldError, err)
			continue
		}
		if !ok {
			continue
		}

		occurrence := tpl
		occurrence.ID = 0
		occurrence.Timestamp = now
		occurrence.Recurring = false
		occurrence.Interval = ""
		occurrence.ReceiptRef = ""

		if _, err := p.transactions.Create(ctx, occurrence); err != nil {
			p.logger.ErrorContext(ctx, "Failed to create transaction from recurring template",
				log.FieldTransactionID, tpl.ID, log.FieldError, err)
			continue
		}
		if err := p.store.SetLastRun(ctx, tpl.ID, now); err != nil {
			// the occurrence exists; the next pass may create a duplicate
			p.logger.ErrorContext(ctx, "Failed to record recurring run",
				log.FieldTransactionID, tpl.ID, log.FieldError, err)
		}
		created++
	}

	p.logger.InfoContext(ctx, "Recurring transactions processed",
		"created", created, "templates", len(templates))
	return created, nil
}

// isDue treats the template itself as the first occurrence
func (p *RecurringProcessor) isDue(ctx context.Context, tpl core.Transaction, now time.Time) (bool, error) {
	checker, err := GetDuenessChecker(tpl.Interval)
	if err != nil {
		return false, err
	}
	last, err := p.store.LastRun(ctx, tpl.ID)
	if err != nil {
		return false, fmt.Errorf("last run: %w", err)
	}
	if last.IsZero() || tpl.Timestamp.After(last) {
		last = tpl.Timestamp
	}
	if now.Before(tpl.Timestamp) {
		return false, nil
	}
	return checker.IsDue(last, now, tpl.Timestamp), nil
}
