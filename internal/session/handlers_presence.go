package session

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Presence is a liveness list only; nothing about queue or playback
// correctness depends on it, so failures here are soft.

// POST /sessions/{id}/presence
func (s *Server) handlePresencePing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	if user.UserID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	if err := s.presence.Ping(ctx, sessionID, user); err != nil {
		log.Printf("drinksapp: presence ping: %v", err)
		writeError(w, http.StatusInternalServerError, "presence error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// GET /sessions/{id}/presence
func (s *Server) handleListPresence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	members, err := s.presence.List(ctx, sessionID)
	if err != nil {
		log.Printf("drinksapp: presence list: %v", err)
		writeError(w, http.StatusInternalServerError, "presence error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"connectedUsers": members})
}

// DELETE /sessions/{id}/presence
func (s *Server) handlePresenceLeave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	if user.UserID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	if err := s.presence.Leave(ctx, sessionID, user.UserID); err != nil {
		log.Printf("drinksapp: presence leave: %v", err)
		writeError(w, http.StatusInternalServerError, "presence error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
