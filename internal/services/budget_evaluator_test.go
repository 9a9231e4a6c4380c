package services

import (
	"context"
	"testing"
	"time"

	"walletlens/internal/core"
	"walletlens/internal/notify"
	"walletlens/internal/storage/memory"
)

func TestBudgetWindow(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name      string
		budget    core.Budget
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "weekly on a wednesday",
			budget:    core.Budget{Period: core.Weekly},
			now:       time.Date(2024, 1, 10, 15, 0, 0, 0, loc),
			wantStart: time.Date(2024, 1, 8, 0, 0, 0, 0, loc),
			wantEnd:   time.Date(2024, 1, 14, 23, 59, 59, 0, loc),
		},
		{
			name:      "weekly on a sunday belongs to the previous monday",
			budget:    core.Budget{Period: core.Weekly},
			now:       time.Date(2024, 1, 14, 9, 0, 0, 0, loc),
			wantStart: time.Date(2024, 1, 8, 0, 0, 0, 0, loc),
			wantEnd:   time.Date(2024, 1, 14, 23, 59, 59, 0, loc),
		},
		{
			name:      "weekly on a monday starts that day",
			budget:    core.Budget{Period: core.Weekly},
			now:       time.Date(2024, 1, 1, 0, 0, 0, 0, loc),
			wantStart: time.Date(2024, 1, 1, 0, 0, 0, 0, loc),
			wantEnd:   time.Date(2024, 1, 7, 23, 59, 59, 0, loc),
		},
		{
			name:      "monthly in a leap february",
			budget:    core.Budget{Period: core.Monthly},
			now:       time.Date(2024, 2, 10, 0, 0, 0, 0, loc),
			wantStart: time.Date(2024, 2, 1, 0, 0, 0, 0, loc),
			wantEnd:   time.Date(2024, 2, 29, 23, 59, 59, 0, loc),
		},
		{
			name:      "yearly",
			budget:    core.Budget{Period: core.Yearly},
			now:       time.Date(2024, 7, 4, 0, 0, 0, 0, loc),
			wantStart: time.Date(2024, 1, 1, 0, 0, 0, 0, loc),
			wantEnd:   time.Date(2024, 12, 31, 23, 59, 59, 0, loc),
		},
		{
			name: "custom uses stored window",
			budget: core.Budget{
				Period: core.Custom,
				Start:  time.Date(2024, 6, 1, 0, 0, 0, 0, loc),
				End:    time.Date(2024, 6, 15, 0, 0, 0, 0, loc),
			},
			now:       time.Date(2024, 1, 1, 0, 0, 0, 0, loc),
			wantStart: time.Date(2024, 6, 1, 0, 0, 0, 0, loc),
			wantEnd:   time.Date(2024, 6, 15, 0, 0, 0, 0, loc),
		},
		{
			name: "unknown period falls back to stored window",
			budget: core.Budget{
				Period: core.BudgetPeriod("FORTNIGHTLY"),
				Start:  time.Date(2024, 2, 1, 0, 0, 0, 0, loc),
				End:    time.Date(2024, 2, 14, 0, 0, 0, 0, loc),
			},
			now:       time.Date(2024, 2, 3, 0, 0, 0, 0, loc),
			wantStart: time.Date(2024, 2, 1, 0, 0, 0, 0, loc),
			wantEnd:   time.Date(2024, 2, 14, 0, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := BudgetWindow(tt.budget, tt.now)
			if !w.Start.Equal(tt.wantStart) || !w.End.Equal(tt.wantEnd) {
				t.Fatalf("window = [%v, %v], want [%v, %v]", w.Start, w.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	monthly := core.Budget{ID: 1, Category: "Food", Limit: amt("500"), Period: core.Monthly, Active: true}
	inMonth := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		budget   core.Budget
		txs      []core.Transaction
		wantPct  string
		wantTier WarningTier
	}{
		{
			name:     "450 of 500 is almost exceeded",
			budget:   monthly,
			txs:      []core.Transaction{expense("400", "Food", inMonth), expense("50", "Food", inMonth)},
			wantPct:  "90",
			wantTier: TierAlmostExceeded,
		},
		{
			name:     "500 of 500 is exceeded",
			budget:   monthly,
			txs:      []core.Transaction{expense("500", "Food", inMonth)},
			wantPct:  "100",
			wantTier: TierExceeded,
		},
		{
			name:     "400 of 500 is a warning",
			budget:   monthly,
			txs:      []core.Transaction{expense("400", "Food", inMonth)},
			wantPct:  "80",
			wantTier: TierWarning,
		},
		{
			name:   "other categories, income and last month are ignored",
			budget: monthly,
			txs: []core.Transaction{
				expense("100", "Food", inMonth),
				expense("900", "Rent", inMonth),
				{Amount: amt("900"), Category: "Food", Type: core.Income, Timestamp: inMonth},
				expense("900", "Food", time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)),
			},
			wantPct:  "20",
			wantTier: TierNone,
		},
		{
			name:     "zero limit is 0 percent",
			budget:   core.Budget{Category: "Food", Limit: amt("0"), Period: core.Monthly},
			txs:      []core.Transaction{expense("50", "Food", inMonth)},
			wantPct:  "0",
			wantTier: TierNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Evaluate(tt.budget, tt.txs, now)
			if !st.PercentUsed.Equal(amt(tt.wantPct)) {
				t.Fatalf("percent = %s, want %s", st.PercentUsed, tt.wantPct)
			}
			if st.Tier != tt.wantTier {
				t.Fatalf("tier = %s, want %s", st.Tier, tt.wantTier)
			}
		})
	}
}

func TestBudgetNotificationText(t *testing.T) {
	st := BudgetStatus{
		Budget:      core.Budget{ID: 4, Category: "Food", Limit: amt("500")},
		Spent:       amt("450"),
		PercentUsed: amt("90"),
		Tier:        TierAlmostExceeded,
	}
	n, ok := st.Notification()
	if !ok {
		t.Fatal("expected a notification")
	}
	if n.Kind != notify.KindBudgetWarning || n.Title != "Budget almost exceeded!" || n.RefID != 4 {
		t.Fatalf("notification = %+v", n)
	}
	if want := "Food: $450.00 / $500.00\n90.0% of budget used"; n.Body != want {
		t.Fatalf("body = %q, want %q", n.Body, want)
	}

	if _, ok := (BudgetStatus{Tier: TierNone}).Notification(); ok {
		t.Fatal("no notification below 80%")
	}
}

func TestCheckAllContinuesPastFailures(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	store := &flakyStore{Store: memory.New(), failCategory: "Broken"}

	for _, b := range []core.Budget{
		{Category: "Food", Limit: amt("100"), Period: core.Monthly, Active: true},
		{Category: "Broken", Limit: amt("100"), Period: core.Monthly, Active: true},
		{Category: "Fun", Limit: amt("100"), Period: core.Monthly, Active: true},
		{Category: "Travel", Limit: amt("100"), Period: core.Monthly, Active: true},
	} {
		store.InsertBudget(ctx, b)
	}
	seed(store,
		expense("120", "Food", now),
		expense("85", "Fun", now),
		expense("10", "Travel", now),
	)

	rec := notify.NewRecorder()
	ev := NewBudgetEvaluator(store, store, rec, BudgetEvaluatorOptions{Concurrency: 2, Now: fixedNow(now), Logger: quietLogger()})

	report := ev.CheckAll(ctx)
	if report.Evaluated != 3 || report.Failed != 1 || report.Warned != 2 {
		t.Fatalf("report = %+v", report)
	}

	titles := map[string]bool{}
	for _, n := range rec.Drain() {
		titles[n.Title] = true
	}
	if !titles["Budget exceeded!"] || !titles["Budget warning!"] {
		t.Fatalf("unexpected warnings: %v", titles)
	}
}

func TestCheckAllStoreDown(t *testing.T) {
	store := &flakyStore{Store: memory.New(), failBudgets: true}
	ev := NewBudgetEvaluator(store, store, notify.NewRecorder(), BudgetEvaluatorOptions{Logger: quietLogger()})
	report := ev.CheckAll(context.Background())
	if report != (CheckReport{Unavailable: true}) || !report.NeedsRetry() {
		t.Fatalf("expected unavailable report, got %+v", report)
	}

	store.failBudgets = false
	if report := ev.CheckAll(context.Background()); report.NeedsRetry() {
		t.Fatalf("no active budgets is not a failure: %+v", report)
	}
}

func TestTransactionChangedChecksCategory(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	store := memory.New()
	store.InsertBudget(ctx, core.Budget{Category: "Food", Limit: amt("100"), Period: core.Monthly, Active: true})
	store.InsertBudget(ctx, core.Budget{Category: "Rent", Limit: amt("100"), Period: core.Monthly, Active: true})
	seed(store, expense("95", "Food", now), expense("95", "Rent", now))

	rec := notify.NewRecorder()
	ev := NewBudgetEvaluator(store, store, rec, BudgetEvaluatorOptions{Now: fixedNow(now), Logger: quietLogger()})
	svc := NewTransactionService(store, quietLogger(), ev)

	if _, err := svc.Create(ctx, expense("1", "Food", now)); err != nil {
		t.Fatal(err)
	}
	got := rec.Drain()
	if len(got) != 1 || got[0].Title != "Budget almost exceeded!" {
		t.Fatalf("expected one Food warning, got %+v", got)
	}

	if _, err := svc.Create(ctx, income("1000", now)); err != nil {
		t.Fatal(err)
	}
	if got := rec.Drain(); len(got) != 0 {
		t.Fatalf("income must not trigger a check, got %+v", got)
	}
}

func TestStatuses(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	store := memory.New()
	store.InsertBudget(ctx, core.Budget{Category: "Food", Limit: amt("200"), Period: core.Weekly, Active: true})
	seed(store, expense("50", "Food", now))

	ev := NewBudgetEvaluator(store, store, notify.NewRecorder(), BudgetEvaluatorOptions{Now: fixedNow(now), Logger: quietLogger()})
	st, err := ev.Statuses(ctx)
	if err != nil || len(st) != 1 {
		t.Fatalf("statuses = %+v, err %v", st, err)
	}
	if !st[0].PercentUsed.Equal(amt("25")) || st[0].Tier != TierNone {
		t.Fatalf("status = %+v", st[0])
	}
}
