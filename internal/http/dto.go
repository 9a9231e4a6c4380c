package http

import (
	"time"

	"walletlens/internal/core"
	"walletlens/internal/receipt"
	"walletlens/internal/services"
)

// Wire types. Amounts travel as fixed two-decimal strings so no client ever
// rounds through a float.

type transactionRequest struct {
	Amount      flexAmount `json:"amount"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Type        string     `json:"type"`
	Date        string     `json:"date"`
	ReceiptRef  string     `json:"receipt_ref"`
	Recurring   bool       `json:"recurring"`
	Interval    string     `json:"interval"`
}

func (req transactionRequest) toCore(now time.Time) (core.Transaction, error) {
	amount, err := req.Amount.Decimal()
	if err != nil {
		return core.Transaction{}, err
	}
	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	ts, err := ParseWhen(req.Date, now)
	if err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Type:        typ,
		Timestamp:   ts,
		ReceiptRef:  sanitizeInput(req.ReceiptRef),
		Recurring:   req.Recurring,
	}
	if req.Recurring {
		t.Interval, _ = core.ParseRecurrenceInterval(req.Interval)
	}
	return t, nil
}

type transactionResponse struct {
	ID          int64     `json:"id"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	ReceiptRef  string    `json:"receipt_ref,omitempty"`
	Recurring   bool      `json:"recurring"`
	Interval    string    `json:"interval,omitempty"`
}

func newTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Amount:      money(t.Amount),
		Description: t.Description,
		Category:    t.Category,
		Type:        string(t.Type),
		Timestamp:   t.Timestamp,
		ReceiptRef:  t.ReceiptRef,
		Recurring:   t.Recurring,
		Interval:    string(t.Interval),
	}
}

func newTransactionList(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionResponse(t))
	}
	return out
}

type budgetRequest struct {
	Category    string     `json:"category"`
	Limit       flexAmount `json:"limit"`
	Description string     `json:"description"`
	Period      string     `json:"period"`
	Start       string     `json:"start"`
	End         string     `json:"end"`
	Goal        bool       `json:"goal"`
	Active      *bool      `json:"active"`
}

func (req budgetRequest) toCore(loc *time.Location) (core.Budget, error) {
	limit, err := req.Limit.Decimal()
	if err != nil {
		return core.Budget{}, err
	}
	b := core.Budget{
		Category:    sanitizeInput(req.Category),
		Limit:       limit,
		Description: sanitizeInput(req.Description),
		Period:      core.ParseBudgetPeriod(req.Period),
		Goal:        req.Goal,
		Active:      req.Active == nil || *req.Active,
	}
	if b.Period == core.Custom {
		if b.Start, err = parseDay(req.Start, loc); err != nil {
			return core.Budget{}, core.ErrInvalidRange
		}
		end, err := parseDay(req.End, loc)
		if err != nil {
			return core.Budget{}, core.ErrInvalidRange
		}
		b.End = core.DayRange(end).End
	}
	return b, nil
}

type budgetResponse struct {
	ID          int64  `json:"id"`
	Category    string `json:"category"`
	Limit       string `json:"limit"`
	Description string `json:"description,omitempty"`
	Period      string `json:"period"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Active      bool   `json:"active"`
	Goal        bool   `json:"goal"`
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func newBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:          b.ID,
		Category:    b.Category,
		Limit:       money(b.Limit),
		Description: b.Description,
		Period:      string(b.Period),
		Start:       formatDay(b.Start),
		End:         formatDay(b.End),
		Active:      b.Active,
		Goal:        b.Goal,
	}
}

type budgetStatusResponse struct {
	Budget      budgetResponse `json:"budget"`
	WindowStart time.Time      `json:"window_start"`
	WindowEnd   time.Time      `json:"window_end"`
	Spent       string         `json:"spent"`
	PercentUsed string         `json:"percent_used"`
	Tier        string         `json:"tier"`
}

func newBudgetStatusResponse(s services.BudgetStatus) budgetStatusResponse {
	return budgetStatusResponse{
		Budget:      newBudgetResponse(s.Budget),
		WindowStart: s.Window.Start,
		WindowEnd:   s.Window.End,
		Spent:       money(s.Spent),
		PercentUsed: s.PercentUsed.StringFixed(1),
		Tier:        s.Tier.String(),
	}
}

type reminderRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Amount      flexAmount `json:"amount"`
	Due         string     `json:"due"`
	Category    string     `json:"category"`
	Recurring   bool       `json:"recurring"`
	Interval    string     `json:"interval"`
	Completed   *bool      `json:"completed"`
}

func (req reminderRequest) toCore(now time.Time) (core.Reminder, error) {
	amount, err := req.Amount.Decimal()
	if err != nil {
		return core.Reminder{}, err
	}
	if req.Due == "" {
		return core.Reminder{}, core.ErrMissingTimestamp
	}
	due, err := ParseWhen(req.Due, now)
	if err != nil {
		return core.Reminder{}, err
	}
	r := core.Reminder{
		Title:       sanitizeInput(req.Title),
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		Due:         due,
		Category:    sanitizeInput(req.Category),
		Recurring:   req.Recurring,
		Completed:   req.Completed != nil && *req.Completed,
	}
	if req.Recurring {
		r.Interval, _ = core.ParseRecurrenceInterval(req.Interval)
	}
	return r, nil
}

type reminderResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Amount      string    `json:"amount"`
	Due         time.Time `json:"due"`
	Completed   bool      `json:"completed"`
	Category    string    `json:"category"`
	Recurring   bool      `json:"recurring"`
	Interval    string    `json:"interval,omitempty"`
}

func newReminderResponse(r core.Reminder) reminderResponse {
	return reminderResponse{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Amount:      money(r.Amount),
		Due:         r.Due,
		Completed:   r.Completed,
		Category:    r.Category,
		Recurring:   r.Recurring,
		Interval:    string(r.Interval),
	}
}

func newReminderList(list []core.Reminder) []reminderResponse {
	out := make([]reminderResponse, 0, len(list))
	for _, r := range list {
		out = append(out, newReminderResponse(r))
	}
	return out
}

type categoryTotalResponse struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

func newCategoryTotals(totals []core.CategoryTotal) []categoryTotalResponse {
	out := make([]categoryTotalResponse, 0, len(totals))
	for _, c := range totals {
		out = append(out, categoryTotalResponse{Category: c.Category, Amount: money(c.Amount)})
	}
	return out
}

type summaryResponse struct {
	From         time.Time               `json:"from"`
	To           time.Time               `json:"to"`
	TotalIncome  string                  `json:"total_income"`
	TotalExpense string                  `json:"total_expense"`
	Balance      string                  `json:"balance"`
	Categories   []categoryTotalResponse `json:"categories"`
}

func newSummaryResponse(s core.Summary) summaryResponse {
	return summaryResponse{
		From:         s.Range.Start,
		To:           s.Range.End,
		TotalIncome:  money(s.TotalIncome),
		TotalExpense: money(s.TotalExpense),
		Balance:      money(s.Balance),
		Categories:   newCategoryTotals(s.Categories),
	}
}

type overviewResponse struct {
	Year          int                     `json:"year"`
	Month         int                     `json:"month"`
	Summary       summaryResponse         `json:"summary"`
	ExpenseChange float64                 `json:"expense_change_pct"`
	IncomeChange  float64                 `json:"income_change_pct"`
	Chart         []categoryTotalResponse `json:"chart"`
	Upcoming      []reminderResponse      `json:"upcoming"`
	GeneratedAt   time.Time               `json:"generated_at"`
}

func newOverviewResponse(ov core.MonthOverview) overviewResponse {
	return overviewResponse{
		Year:          ov.Year,
		Month:         ov.Month,
		Summary:       newSummaryResponse(ov.Summary),
		ExpenseChange: ov.ExpenseChange,
		IncomeChange:  ov.IncomeChange,
		Chart:         newCategoryTotals(ov.Chart),
		Upcoming:      newReminderList(ov.Upcoming),
		GeneratedAt:   ov.GeneratedAt,
	}
}

type widgetResponse struct {
	Date         string `json:"date"`
	TodayExpense string `json:"today_expense"`
	MonthIncome  string `json:"month_income"`
	MonthExpense string `json:"month_expense"`
	MonthBalance string `json:"month_balance"`
}

func newWidgetResponse(w core.Widget) widgetResponse {
	return widgetResponse{
		Date:         formatDay(w.Date),
		TodayExpense: money(w.TodayExpense),
		MonthIncome:  money(w.MonthIncome),
		MonthExpense: money(w.MonthExpense),
		MonthBalance: money(w.MonthBalance),
	}
}

type receiptRequest struct {
	Text string `json:"text"`
}

type receiptResponse struct {
	Amount            string              `json:"amount,omitempty"`
	Merchant          string              `json:"merchant,omitempty"`
	Date              string              `json:"date,omitempty"`
	Items             []string            `json:"items"`
	SuggestedCategory string              `json:"suggested_category"`
	Draft             transactionResponse `json:"draft"`
}

func newReceiptResponse(g receipt.Guess, now time.Time) receiptResponse {
	resp := receiptResponse{
		Merchant:          g.Merchant,
		Date:              formatDay(g.Date),
		Items:             g.Items,
		SuggestedCategory: g.SuggestedCategory,
		Draft:             newTransactionResponse(g.Draft(now)),
	}
	if g.Amount.IsPositive() {
		resp.Amount = money(g.Amount)
	}
	if resp.Items == nil {
		resp.Items = []string{}
	}
	return resp
}
