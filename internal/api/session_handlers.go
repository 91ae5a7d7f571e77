package api

import (
	"net/http"

	"github.com/p-arndt/codebox/internal/session"
)

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := ValidateSessionID(id); err != nil {
		writeValidationError(w, err.Error(), nil)
		return
	}
	info, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.List(r.Context())
	s.logger.Debug("list sessions", "count", len(sessions))
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleDestroy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := ValidateSessionID(id); err != nil {
		writeValidationError(w, err.Error(), nil)
		return
	}
	if err := s.sessions.Destroy(r.Context(), id); err != nil {
		s.logger.Warn("destroy session", "session_id", id, "request_id", requestID(r.Context()), "error", err)
		writeAPIError(w, err)
		return
	}
	s.logger.Info("session destroyed via api", "session_id", id, "request_id", requestID(r.Context()))

	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(session.StatusDestroyed)})
}
