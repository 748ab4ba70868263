package http

import (
	"net/http"

	"cashflow/internal/services"
)

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.userService.Profile(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd services.ProfileUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.userService.UpdateProfile(r.Context(), UserID(r.Context()), upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
