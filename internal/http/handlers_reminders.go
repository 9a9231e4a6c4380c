package http

import (
	"net/http"

	"walletlens/internal/core"
	"walletlens/internal/log"
)

// handleListReminders lists active reminders, optionally within from/to
func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	var rng core.DateRange
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		var err error
		if rng, err = ParseRangeParams(q, s.now()); err != nil {
			badInput(w, err)
			return
		}
	}

	list, err := s.svc.Reminders.ListActive(r.Context(), rng)
	if err != nil {
		s.respondError(w, r, "List reminders failed", log.OpList, err)
		return
	}
	NewJSONResponse().Body(newReminderList(list)).Write(w)
}

func (s *Server) handleUpcomingReminders(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Reminders.Upcoming(r.Context(), s.now(), s.lookahead)
	if err != nil {
		s.respondError(w, r, "Upcoming reminders failed", log.OpList, err)
		return
	}
	NewJSONResponse().Body(newReminderList(list)).Write(w)
}

func (s *Server) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rem, err := s.svc.Reminders.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, "Get reminder failed", log.OpRead, err)
		return
	}
	NewJSONResponse().Body(newReminderResponse(rem)).Write(w)
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := NewRequestBodyParser(r).Decode(&req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rem, err := req.toCore(s.now())
	if err != nil {
		badInput(w, err)
		return
	}

	created, err := s.svc.Reminders.Create(r.Context(), rem)
	if err != nil {
		s.respondError(w, r, "Create reminder failed", log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newReminderResponse(created)).Write(w)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req reminderRequest
	if err := NewRequestBodyParser(r).Decode(&req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rem, err := req.toCore(s.now())
	if err != nil {
		badInput(w, err)
		return
	}
	rem.ID = id

	// An edit that does not mention completed keeps the stored state.
	if req.Completed == nil {
		existing, err := s.svc.Reminders.Get(r.Context(), id)
		if err != nil {
			s.respondError(w, r, "Update reminder failed", log.OpUpdate, err)
			return
		}
		rem.Completed = existing.Completed
	}

	if err := s.svc.Reminders.Update(r.Context(), rem); err != nil {
		s.respondError(w, r, "Update reminder failed", log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(newReminderResponse(rem)).Write(w)
}

func (s *Server) handleCompleteReminder(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.svc.Reminders.Complete(r.Context(), id); err != nil {
		s.respondError(w, r, "Complete reminder failed", log.OpUpdate, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.svc.Reminders.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, "Delete reminder failed", log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
