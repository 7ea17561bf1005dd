package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/eventpass/internal/server/models"
	"github.com/dmitrijs2005/eventpass/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type registrationStatusRequest struct {
	Status models.RegistrationStatus `json:"status"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req services.EventInput
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w)
		return
	}
	e, err := s.events.CreateEvent(r.Context(), callerFrom(r.Context()).UserID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter := models.EventFilter{Status: models.EventStatus(r.URL.Query().Get("status"))}
	list, err := s.events.ListEvents(r.Context(), callerFrom(r.Context()), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.events.GetEvent(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleMyEvents(w http.ResponseWriter, r *http.Request) {
	list, err := s.events.MyEvents(r.Context(), callerFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req services.EventInput
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w)
		return
	}
	e, err := s.events.UpdateEvent(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "eventID"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.events.DeleteEvent(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "eventID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateTimeSlot(w http.ResponseWriter, r *http.Request) {
	var req services.TimeSlotInput
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w)
		return
	}
	ts, err := s.events.CreateTimeSlot(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "eventID"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ts)
}

func (s *Server) handleRegisterForEvent(w http.ResponseWriter, r *http.Request) {
	var req services.RegistrationInput
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w)
		return
	}
	var caller *services.Caller
	if ClaimsFromContext(r.Context()) != nil {
		c := callerFrom(r.Context())
		caller = &c
	}
	reg, err := s.events.RegisterForEvent(r.Context(), caller, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (s *Server) handleUpdateRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	var req registrationStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w)
		return
	}
	reg, err := s.events.UpdateRegistrationStatus(r.Context(), chi.URLParam(r, "registrationID"), req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (s *Server) handleMyRegistrations(w http.ResponseWriter, r *http.Request) {
	list, err := s.events.MyRegistrations(r.Context(), callerFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleEventRegistrations(w http.ResponseWriter, r *http.Request) {
	list, err := s.events.EventRegistrations(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleEventPictureUploadURL(w http.ResponseWriter, r *http.Request) {
	up, err := s.events.EventPictureUploadURL(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "eventID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

func (s *Server) handleEventPictureDownloadURL(w http.ResponseWriter, r *http.Request) {
	d, err := s.events.EventPictureDownloadURL(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// nonNil keeps empty collections encoded as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
