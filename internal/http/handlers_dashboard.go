package http

import (
	"net/http"
	"time"

	"walletlens/internal/core"
	"walletlens/internal/services"
)

func summaryKey(r core.DateRange) string {
	return r.Start.Format(time.RFC3339) + "|" + r.End.Format(time.RFC3339)
}

// summary serves r from the cache when possible. The aggregator never
// fails: a store error comes back as an empty summary, which is not cached.
// Neither is a summary whose read raced a transaction change.
func (s *Server) summary(r *http.Request, rng core.DateRange) core.Summary {
	key := summaryKey(rng)
	if cached, ok := s.summaryCache.Get(key); ok {
		return cached
	}
	gen := s.summaryCache.Generation()
	sum := s.svc.Aggregator.Summary(r.Context(), rng)
	if len(sum.Categories) > 0 || !sum.TotalIncome.IsZero() {
		s.summaryCache.SetIfGeneration(gen, key, sum)
	}
	return sum
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseRangeParams(r.URL.Query(), s.now())
	if err != nil {
		badInput(w, err)
		return
	}
	NewJSONResponse().Body(newSummaryResponse(s.summary(r, rng))).Write(w)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseRangeParams(r.URL.Query(), s.now())
	if err != nil {
		badInput(w, err)
		return
	}
	chart := services.GroupCategories(s.summary(r, rng).Categories, s.svc.Aggregator.MaxChartCategories())
	NewJSONResponse().Body(newCategoryTotals(chart)).Write(w)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov := s.svc.Dashboard.Overview(r.Context())
	NewJSONResponse().Body(newOverviewResponse(ov)).Write(w)
}

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	widget := s.svc.Aggregator.Widget(r.Context(), s.now())
	NewJSONResponse().Body(newWidgetResponse(widget)).Write(w)
}
