package session

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleCreateSession creates a new active session hosted by the
// current user. Any prior active session of the same host is
// deactivated in the same transaction.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	if user.UserID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || len(body.Name) > 200 {
		writeError(w, http.StatusBadRequest, "name must be between 1 and 200 characters")
		return
	}

	sess, err := s.store.Create(ctx, body.Name, user.UserID)
	if err != nil {
		log.Printf("drinksapp: create session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// handleActiveSession reports the caller's currently active hosted
// session, or null when there is none.
func (s *Server) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	if user.UserID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	sess, err := s.store.ActiveByHost(ctx, user.UserID)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"activeSession": nil})
		return
	}
	if err != nil {
		log.Printf("drinksapp: active session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"activeSession": sess})
}

// handleGetSession is the join path: guests resolve a shared session id
// into the full current state plus their ownership flag.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	sess, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("drinksapp: get session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session": sess,
		"isOwner": currentUser(r).UserID == sess.HostID,
	})
}
