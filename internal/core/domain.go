package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

const (
	Weekly  BudgetPeriod = "WEEKLY"
	Monthly BudgetPeriod = "MONTHLY"
	Yearly  BudgetPeriod = "YEARLY"
	// Custom budgets use their stored Start/End window.
	Custom BudgetPeriod = "CUSTOM"
)

const (
	EveryDay   RecurrenceInterval = "DAILY"
	EveryWeek  RecurrenceInterval = "WEEKLY"
	EveryMonth RecurrenceInterval = "MONTHLY"
	EveryYear  RecurrenceInterval = "YEARLY"
)

type (
	TransactionType    string
	BudgetPeriod       string
	RecurrenceInterval string

	Transaction struct {
		ID          int64
		Amount      decimal.Decimal
		Description string
		Category    string
		Type        TransactionType
		Timestamp   time.Time
		ReceiptRef  string // optional receipt image reference
		Recurring   bool
		Interval    RecurrenceInterval
	}

	Budget struct {
		ID          int64
		Category    string
		Limit       decimal.Decimal
		Description string
		Period      BudgetPeriod
		Start       time.Time // used only by custom periods
		End         time.Time
		Active      bool
		Goal        bool
	}

	Reminder struct {
		ID          int64
		Title       string
		Description string
		Amount      decimal.Decimal
		Due         time.Time
		Completed   bool
		Category    string
		Recurring   bool
		Interval    RecurrenceInterval
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidPeriod    = errors.New("invalid budget period")
	ErrInvalidInterval  = errors.New("invalid recurrence interval")
	ErrInvalidRange     = errors.New("invalid date range")
	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrTextTooLong      = errors.New("text too long (max 200 characters)")
)

const maxTextLength = 200

// ParseTransactionType accepts the canonical names case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToUpper(strings.TrimSpace(s))); t {
	case Income, Expense:
		return t, nil
	}
	return "", ErrInvalidType
}

// ParseBudgetPeriod maps user input to a period. Anything that is not
// weekly, monthly or yearly is a custom window.
func ParseBudgetPeriod(s string) BudgetPeriod {
	switch p := BudgetPeriod(strings.ToUpper(strings.TrimSpace(s))); p {
	case Weekly, Monthly, Yearly:
		return p
	}
	return Custom
}

// ParseRecurrenceInterval returns the interval and whether it is a known one.
func ParseRecurrenceInterval(s string) (RecurrenceInterval, bool) {
	switch i := RecurrenceInterval(strings.ToUpper(strings.TrimSpace(s))); i {
	case EveryDay, EveryWeek, EveryMonth, EveryYear:
		return i, true
	default:
		return i, false
	}
}

func (i RecurrenceInterval) Valid() bool {
	_, ok := ParseRecurrenceInterval(string(i))
	return ok
}

func validateText(s string, empty error) error {
	if strings.TrimSpace(s) == "" {
		return empty
	}
	if len(s) > maxTextLength {
		return ErrTextTooLong
	}
	return nil
}

func validateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := validateAmount(t.Amount); err != nil {
		return err
	}
	if err := validateText(t.Description, ErrEmptyDescription); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Type != Income && t.Type != Expense {
		return ErrInvalidType
	}
	if t.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if t.Recurring && !t.Interval.Valid() {
		return ErrInvalidInterval
	}
	return nil
}

func (b Budget) Validate() error {
	if err := validateAmount(b.Limit); err != nil {
		return err
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	switch b.Period {
	case Weekly, Monthly, Yearly:
	case Custom:
		if b.Start.IsZero() || b.End.IsZero() || b.End.Before(b.Start) {
			return ErrInvalidRange
		}
	default:
		return ErrInvalidPeriod
	}
	return nil
}

// Validate checks user input. A recurring reminder with an unknown interval
// is accepted: it simply never produces a next occurrence.
func (r Reminder) Validate() error {
	if err := validateAmount(r.Amount); err != nil {
		return err
	}
	if err := validateText(r.Title, ErrEmptyTitle); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if r.Due.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}
