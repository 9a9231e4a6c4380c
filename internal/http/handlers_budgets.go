package http

import (
	"net/http"

	"walletlens/internal/log"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.svc.Budgets.ListActive(r.Context())
	if err != nil {
		s.respondError(w, r, "List budgets failed", log.OpList, err)
		return
	}
	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, newBudgetResponse(b))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	b, err := s.svc.Budgets.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, "Get budget failed", log.OpRead, err)
		return
	}
	NewJSONResponse().Body(newBudgetResponse(b)).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := NewRequestBodyParser(r).Decode(&req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	b, err := req.toCore(s.now().Location())
	if err != nil {
		badInput(w, err)
		return
	}

	created, err := s.svc.Budgets.Create(r.Context(), b)
	if err != nil {
		s.respondError(w, r, "Create budget failed", log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newBudgetResponse(created)).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req budgetRequest
	if err := NewRequestBodyParser(r).Decode(&req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	b, err := req.toCore(s.now().Location())
	if err != nil {
		badInput(w, err)
		return
	}
	b.ID = id

	// A deactivated budget stays inactive unless the edit says otherwise.
	if req.Active == nil {
		existing, err := s.svc.Budgets.Get(r.Context(), id)
		if err != nil {
			s.respondError(w, r, "Update budget failed", log.OpUpdate, err)
			return
		}
		b.Active = existing.Active
	}

	if err := s.svc.Budgets.Update(r.Context(), b); err != nil {
		s.respondError(w, r, "Update budget failed", log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(newBudgetResponse(b)).Write(w)
}

func (s *Server) handleDeactivateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.svc.Budgets.Deactivate(r.Context(), id); err != nil {
		s.respondError(w, r, "Deactivate budget failed", log.OpUpdate, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleBudgetStatus evaluates the active budgets without notifying
func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.svc.Evaluator.Statuses(r.Context())
	if err != nil {
		s.respondError(w, r, "Budget status failed", log.OpEvaluate, err)
		return
	}
	out := make([]budgetStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, newBudgetStatusResponse(st))
	}
	NewJSONResponse().Body(out).Write(w)
}
