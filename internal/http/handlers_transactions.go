package http

import (
	"net/http"

	"walletlens/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseTransactionFilter(r.URL.Query(), s.now())
	if err != nil {
		badInput(w, err)
		return
	}

	txs, err := s.svc.Transactions.List(r.Context(), f)
	if err != nil {
		s.respondError(w, r, "List transactions failed", log.OpList, err)
		return
	}
	NewJSONResponse().Body(newTransactionList(txs)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	t, err := s.svc.Transactions.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, "Get transaction failed", log.OpRead, err)
		return
	}
	NewJSONResponse().Body(newTransactionResponse(t)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := NewRequestBodyParser(r).Decode(&req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := req.toCore(s.now())
	if err != nil {
		badInput(w, err)
		return
	}

	created, err := s.svc.Transactions.Create(r.Context(), t)
	if err != nil {
		s.respondError(w, r, "Create transaction failed", log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newTransactionResponse(created)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req transactionRequest
	if err := NewRequestBodyParser(r).Decode(&req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := req.toCore(s.now())
	if err != nil {
		badInput(w, err)
		return
	}
	t.ID = id

	if err := s.svc.Transactions.Update(r.Context(), t); err != nil {
		s.respondError(w, r, "Update transaction failed", log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(newTransactionResponse(t)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if err := s.svc.Transactions.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, "Delete transaction failed", log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
