package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/notify"
	"walletlens/internal/receipt"
	"walletlens/internal/services"
	"walletlens/internal/storage"
	"walletlens/internal/storage/memory"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv      *Server
	handler  http.Handler
	recorder *notify.Recorder
}

func newTestEnv(t *testing.T, tweak func(*Services, *Options)) *testEnv {
	t.Helper()

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	now := func() time.Time { return testNow }
	store := memory.New()
	recorder := notify.NewRecorder()

	agg := services.NewAggregator(store, store, services.AggregatorOptions{Now: now, Logger: logger})
	dash := services.NewDashboard(agg, time.Minute)
	evaluator := services.NewBudgetEvaluator(store, store, recorder, services.BudgetEvaluatorOptions{Now: now, Logger: logger})
	txs := services.NewTransactionService(store, logger, dash, evaluator)
	reminders := services.NewReminderService(store, logger, dash)

	svc := Services{
		Transactions: txs,
		Budgets:      services.NewBudgetService(store, logger),
		Reminders:    reminders,
		Evaluator:    evaluator,
		Aggregator:   agg,
		Dashboard:    dash,
		Receipts:     receipt.NewRegexParser(receipt.DefaultRules()),
	}
	opts := Options{Logger: logger, RateLimitRPM: 1000, Now: now}
	if tweak != nil {
		tweak(&svc, &opts)
	}

	srv, err := NewServer(":0", svc, opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	txs.AddHook(srv)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{srv: srv, handler: srv.Handler, recorder: recorder}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := env.do(t, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	down := newTestEnv(t, func(s *Services, _ *Options) {
		s.Ready = func(context.Context) error { return errors.New("database is locked") }
	})
	rr := down.do(t, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable || strings.Contains(rr.Body.String(), "locked") {
		t.Fatalf("readyz = %d %s", rr.Code, rr.Body.String())
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/v1/transactions",
		`{"amount":"12,345","description":"Groceries","category":"Food","type":"expense","date":"2024-03-10"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[transactionResponse](t, rr)
	if created.ID == 0 || created.Amount != "12.35" || created.Type != "EXPENSE" {
		t.Fatalf("created = %+v", created)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}

	path := "/api/v1/transactions/" + jsonID(created.ID)
	if rr := env.do(t, http.MethodGet, path, ""); rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodPut, path,
		`{"amount":20,"description":"Weekly groceries","category":"Food","type":"EXPENSE","date":"2024-03-10"}`)
	if rr.Code != http.StatusOK || decode[transactionResponse](t, rr).Amount != "20.00" {
		t.Fatalf("update = %d %s", rr.Code, rr.Body.String())
	}

	env.do(t, http.MethodPost, "/api/v1/transactions",
		`{"amount":1500,"description":"Salary","category":"Salary","type":"income","date":"2024-03-01"}`)

	rr = env.do(t, http.MethodGet, "/api/v1/transactions?category=Food&type=expense", "")
	if list := decode[[]transactionResponse](t, rr); len(list) != 1 || list[0].Description != "Weekly groceries" {
		t.Fatalf("filtered list = %+v", list)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/transactions?from=2024-03-05&to=2024-03-31", "")
	if list := decode[[]transactionResponse](t, rr); len(list) != 1 {
		t.Fatalf("range list = %+v", list)
	}

	if rr := env.do(t, http.MethodDelete, path, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, path, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestTransactionValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"empty description", http.MethodPost, "/api/v1/transactions", `{"amount":5,"description":" ","category":"Food","type":"EXPENSE"}`, http.StatusUnprocessableEntity},
		{"negative amount", http.MethodPost, "/api/v1/transactions", `{"amount":-5,"description":"x","category":"Food","type":"EXPENSE"}`, http.StatusUnprocessableEntity},
		{"unknown type", http.MethodPost, "/api/v1/transactions", `{"amount":5,"description":"x","category":"Food","type":"TRANSFER"}`, http.StatusUnprocessableEntity},
		{"bad recurrence", http.MethodPost, "/api/v1/transactions", `{"amount":5,"description":"x","category":"Food","type":"EXPENSE","recurring":true,"interval":"HOURLY"}`, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/api/v1/transactions", `{"amount":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/v1/transactions", `{"amount":5,"colour":"red"}`, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/v1/transactions", `{"amount":5,"description":"x","category":"Food","type":"EXPENSE","date":"15/03"}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/v1/transactions/abc", "", http.StatusBadRequest},
		{"bad filter type", http.MethodGet, "/api/v1/transactions?type=both", "", http.StatusUnprocessableEntity},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
			if body := decode[errorBody](t, rr); body.Error == "" {
				t.Fatalf("expected error message")
			}
		})
	}
}

func TestSummaryCacheIsPurgedOnChange(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPost, "/api/v1/transactions", `{"amount":40,"description":"Dinner","category":"Food","type":"EXPENSE","date":"2024-03-02"}`)
	sum := decode[summaryResponse](t, env.do(t, http.MethodGet, "/api/v1/summary", ""))
	if sum.TotalExpense != "40.00" {
		t.Fatalf("first summary = %+v", sum)
	}

	env.do(t, http.MethodPost, "/api/v1/transactions", `{"amount":10,"description":"Bus","category":"Transport","type":"EXPENSE","date":"2024-03-03"}`)
	sum = decode[summaryResponse](t, env.do(t, http.MethodGet, "/api/v1/summary", ""))
	if sum.TotalExpense != "50.00" || len(sum.Categories) != 2 || sum.Categories[0].Category != "Food" {
		t.Fatalf("summary after insert = %+v", sum)
	}

	chart := decode[[]categoryTotalResponse](t, env.do(t, http.MethodGet, "/api/v1/chart?from=2024-03-01&to=2024-03-02", ""))
	if len(chart) != 1 || chart[0].Amount != "40.00" {
		t.Fatalf("chart = %+v", chart)
	}

	if rr := env.do(t, http.MethodGet, "/api/v1/summary?from=2024-03-10&to=2024-03-01", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("reversed range status=%d", rr.Code)
	}
}

// pausedStore holds range queries after they have read, until release is
// closed, so a write can land while a summary is being computed.
type pausedStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	paused  atomic.Bool
}

func (p *pausedStore) QueryTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	txs, err := p.Store.QueryTransactions(ctx, f)
	if p.paused.Load() {
		p.once.Do(func() { close(p.entered) })
		<-p.release
	}
	return txs, err
}

func TestSummaryRacingWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := &pausedStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	env := newTestEnv(t, func(s *Services, o *Options) {
		s.Aggregator = services.NewAggregator(store, store, services.AggregatorOptions{Now: o.Now, StoreTimeout: time.Minute, Logger: o.Logger})
	})
	salary := core.Transaction{Amount: decimal.NewFromInt(100), Description: "Salary", Category: "Salary", Type: core.Income, Timestamp: testNow.AddDate(0, 0, -5)}
	if _, err := store.InsertTransaction(ctx, salary); err != nil {
		t.Fatal(err)
	}

	store.paused.Store(true)
	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- env.do(t, http.MethodGet, "/api/v1/summary", "") }()

	<-store.entered
	store.paused.Store(false)
	lunch := core.Transaction{Amount: decimal.RequireFromString("42.00"), Description: "Lunch", Category: "Food", Type: core.Expense, Timestamp: testNow}
	if _, err := store.InsertTransaction(ctx, lunch); err != nil {
		t.Fatal(err)
	}
	if err := env.srv.TransactionChanged(ctx, services.TransactionChange{Kind: services.ChangeCreated, Transaction: lunch}); err != nil {
		t.Fatal(err)
	}
	close(store.release)

	if sum := decode[summaryResponse](t, <-first); sum.TotalExpense != "0.00" {
		t.Fatalf("summary read before the write = %+v", sum)
	}
	sum := decode[summaryResponse](t, env.do(t, http.MethodGet, "/api/v1/summary", ""))
	if sum.TotalExpense != "42.00" || sum.TotalIncome != "100.00" {
		t.Fatalf("summary after write = %+v", sum)
	}
}

func TestOverviewAndWidget(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPost, "/api/v1/transactions", `{"amount":100,"description":"Feb food","category":"Food","type":"EXPENSE","date":"2024-02-10"}`)
	env.do(t, http.MethodPost, "/api/v1/transactions", `{"amount":150,"description":"Today","category":"Food","type":"EXPENSE","date":"2024-03-15T09:00:00Z"}`)
	env.do(t, http.MethodPost, "/api/v1/reminders", `{"title":"Rent","amount":900,"due":"2024-04-01","category":"Housing"}`)

	ov := decode[overviewResponse](t, env.do(t, http.MethodGet, "/api/v1/overview", ""))
	if ov.Year != 2024 || ov.Month != 3 || ov.ExpenseChange != 50 || len(ov.Upcoming) != 1 {
		t.Fatalf("overview = %+v", ov)
	}

	w := decode[widgetResponse](t, env.do(t, http.MethodGet, "/api/v1/widget", ""))
	if w.Date != "2024-03-15" || w.TodayExpense != "150.00" || w.MonthBalance != "-150.00" {
		t.Fatalf("widget = %+v", w)
	}
}

func TestBudgets(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/v1/budgets", `{"category":"Food","limit":"200","period":"monthly"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rr.Code, rr.Body.String())
	}
	first := decode[budgetResponse](t, rr)

	second := decode[budgetResponse](t, env.do(t, http.MethodPost, "/api/v1/budgets", `{"category":"Food","limit":100,"period":"MONTHLY"}`))
	list := decode[[]budgetResponse](t, env.do(t, http.MethodGet, "/api/v1/budgets", ""))
	if len(list) != 1 || list[0].ID != second.ID || list[0].ID == first.ID {
		t.Fatalf("expected only the newest Food budget active, got %+v", list)
	}

	env.do(t, http.MethodPost, "/api/v1/transactions", `{"amount":95,"description":"Market","category":"Food","type":"EXPENSE","date":"2024-03-05"}`)

	statuses := decode[[]budgetStatusResponse](t, env.do(t, http.MethodGet, "/api/v1/budgets/status", ""))
	if len(statuses) != 1 || statuses[0].PercentUsed != "95.0" || statuses[0].Spent != "95.00" {
		t.Fatalf("statuses = %+v", statuses)
	}
	if got := env.recorder.Drain(); len(got) != 1 || got[0].Title != "Budget almost exceeded!" {
		t.Fatalf("expected one insert-time warning, got %+v", got)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/budgets", `{"category":"Trip","limit":500,"period":"custom","start":"2024-06-01"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("custom budget without end = %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/v1/budgets", `{"category":"Trip","limit":500,"period":"custom","start":"2024-06-01","end":"2024-06-30"}`)
	if b := decode[budgetResponse](t, rr); rr.Code != http.StatusCreated || b.Start != "2024-06-01" || b.End != "2024-06-30" {
		t.Fatalf("custom budget = %d %+v", rr.Code, b)
	}

	path := "/api/v1/budgets/" + jsonID(second.ID)
	if rr := env.do(t, http.MethodPut, path, `{"category":"Food","limit":300,"period":"MONTHLY"}`); rr.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodPost, path+"/deactivate", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("deactivate = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/api/v1/budgets/999/deactivate", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("deactivate missing = %d", rr.Code)
	}
}

func TestReminders(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/v1/reminders", `{"title":"Phone","amount":"30","due":"2024-03-20","category":"Utilities"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rr.Code, rr.Body.String())
	}
	phone := decode[reminderResponse](t, rr)
	env.do(t, http.MethodPost, "/api/v1/reminders", `{"title":"Insurance","amount":400,"due":"2025-01-10","category":"Insurance","recurring":true,"interval":"yearly"}`)

	if rr := env.do(t, http.MethodPost, "/api/v1/reminders", `{"title":"No due","amount":5,"category":"X"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing due = %d", rr.Code)
	}

	upcoming := decode[[]reminderResponse](t, env.do(t, http.MethodGet, "/api/v1/reminders/upcoming", ""))
	if len(upcoming) != 1 || upcoming[0].ID != phone.ID {
		t.Fatalf("upcoming = %+v", upcoming)
	}
	all := decode[[]reminderResponse](t, env.do(t, http.MethodGet, "/api/v1/reminders", ""))
	if len(all) != 2 || all[1].Interval != "YEARLY" {
		t.Fatalf("all = %+v", all)
	}

	path := "/api/v1/reminders/" + jsonID(phone.ID)
	if rr := env.do(t, http.MethodPut, path, `{"title":"Phone bill","amount":35,"due":"2024-03-22","category":"Utilities"}`); rr.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodPost, path+"/complete", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("complete = %d", rr.Code)
	}
	all = decode[[]reminderResponse](t, env.do(t, http.MethodGet, "/api/v1/reminders", ""))
	if len(all) != 1 {
		t.Fatalf("completed reminder still listed: %+v", all)
	}
	if rr := env.do(t, http.MethodDelete, "/api/v1/reminders/"+jsonID(all[0].ID), ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rr.Code)
	}
}

func TestUpdateKeepsCompletedAndActiveUnlessGiven(t *testing.T) {
	env := newTestEnv(t, nil)

	rem := decode[reminderResponse](t, env.do(t, http.MethodPost, "/api/v1/reminders", `{"title":"Gym","amount":25,"due":"2024-03-20","category":"Health"}`))
	remPath := "/api/v1/reminders/" + jsonID(rem.ID)
	if rr := env.do(t, http.MethodPost, remPath+"/complete", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("complete = %d", rr.Code)
	}

	b := decode[budgetResponse](t, env.do(t, http.MethodPost, "/api/v1/budgets", `{"category":"Fun","limit":50,"period":"weekly"}`))
	budgetPath := "/api/v1/budgets/" + jsonID(b.ID)
	if rr := env.do(t, http.MethodPost, budgetPath+"/deactivate", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("deactivate = %d", rr.Code)
	}

	tests := []struct {
		name string
		path string
		body string
		want bool
	}{
		{"reminder edit keeps completed", remPath, `{"title":"Gym fee","amount":30,"due":"2024-03-21","category":"Health"}`, true},
		{"reminder edit reopens", remPath, `{"title":"Gym fee","amount":30,"due":"2024-03-21","category":"Health","completed":false}`, false},
		{"budget edit keeps inactive", budgetPath, `{"category":"Fun","limit":80,"period":"weekly"}`, false},
		{"budget edit reactivates", budgetPath, `{"category":"Fun","limit":80,"period":"weekly","active":true}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(t, http.MethodPut, tt.path, tt.body); rr.Code != http.StatusOK {
				t.Fatalf("update = %d %s", rr.Code, rr.Body.String())
			}
			rr := env.do(t, http.MethodGet, tt.path, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("get = %d %s", rr.Code, rr.Body.String())
			}
			var got bool
			if tt.path == remPath {
				got = decode[reminderResponse](t, rr).Completed
			} else {
				got = decode[budgetResponse](t, rr).Active
			}
			if got != tt.want {
				t.Fatalf("flag = %v, want %v", got, tt.want)
			}
		})
	}

	missing := map[string]string{
		"/api/v1/reminders/999": `{"title":"X","amount":1,"due":"2024-03-21","category":"X"}`,
		"/api/v1/budgets/999":   `{"category":"X","limit":1,"period":"monthly"}`,
	}
	for path, body := range missing {
		if rr := env.do(t, http.MethodPut, path, body); rr.Code != http.StatusNotFound {
			t.Fatalf("PUT %s = %d", path, rr.Code)
		}
	}
}

func TestParseReceipt(t *testing.T) {
	env := newTestEnv(t, nil)
	text := "CORNER CAFE\n2024/03/14\nLatte $4.50\nMuffin $3.25\nTOTAL $7.75\nTHANK YOU"

	for _, tt := range []struct {
		name string
		body string
	}{
		{"plain text", text},
		{"json", `{"text":` + string(mustJSON(t, text)) + `}`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/v1/receipts/parse", tt.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d %s", rr.Code, rr.Body.String())
			}
			g := decode[receiptResponse](t, rr)
			if g.Amount != "7.75" || g.Merchant != "CORNER CAFE" || g.Date != "2024-03-14" || g.SuggestedCategory != "Food & Dining" {
				t.Fatalf("guess = %+v", g)
			}
			if g.Draft.Type != "EXPENSE" || g.Draft.Amount != "7.75" {
				t.Fatalf("draft = %+v", g.Draft)
			}
		})
	}

	if rr := env.do(t, http.MethodPost, "/api/v1/receipts/parse", "   "); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank receipt = %d", rr.Code)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	env := newTestEnv(t, func(_ *Services, o *Options) { o.RateLimitRPM = 1 })

	body := `{"amount":1,"description":"x","category":"Food","type":"EXPENSE"}`
	env.do(t, http.MethodPost, "/api/v1/transactions", body)
	rr := env.do(t, http.MethodPost, "/api/v1/transactions", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("second post = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/v1/transactions", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads are not limited, got %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/transactions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("missing CORS headers: %v", rr.Header())
	}
}

func TestNotificationsRouteIsOptional(t *testing.T) {
	env := newTestEnv(t, nil)
	if rr := env.do(t, http.MethodGet, "/api/v1/ws/notifications", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("route without hub = %d", rr.Code)
	}

	hubEnv := newTestEnv(t, func(s *Services, _ *Options) {
		s.Notifications = notify.NewHub(nil)
	})
	// A plain GET is not an upgrade request; the hub rejects it.
	if rr := hubEnv.do(t, http.MethodGet, "/api/v1/ws/notifications", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("non-upgrade request = %d", rr.Code)
	}
}
