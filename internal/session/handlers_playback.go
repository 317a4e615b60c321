package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleAdvance loads the next queued song into the transport. It backs
// the host's Start Playing action, the Skip button, natural end of
// track and media playback errors; all four converge here so a broken
// entry can never wedge the session.
// POST /sessions/{id}/advance
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
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

	sess, err := s.store.Mutate(ctx, sessionID, advance(time.Now().UTC()))
	if err != nil {
		s.writeMutateError(w, "advance", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session": sess,
		"state":   sess.PlaybackState(),
	})
}

// handleSetTransport is the authoritative play/pause + position write.
// Clients throttle their own heartbeats (see TransportThrottle); the
// server stamps whatever arrives.
// POST /sessions/{id}/transport
func (s *Server) handleSetTransport(w http.ResponseWriter, r *http.Request) {
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

	var body struct {
		IsPlaying       *bool    `json:"isPlaying"`
		PositionSeconds *float64 `json:"positionSeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsPlaying == nil || body.PositionSeconds == nil {
		writeError(w, http.StatusBadRequest, "isPlaying and positionSeconds are required")
		return
	}

	sess, err := s.store.Mutate(ctx, sessionID,
		setTransport(*body.IsPlaying, *body.PositionSeconds, time.Now().UTC()))
	if err != nil {
		s.writeMutateError(w, "set transport", err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// handleSeek moves the position only; play/pause state is untouched.
// The resulting broadcast is what the other clients reconcile against.
// POST /sessions/{id}/seek
func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
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

	var body struct {
		PositionSeconds *float64 `json:"positionSeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PositionSeconds == nil {
		writeError(w, http.StatusBadRequest, "positionSeconds is required")
		return
	}

	sess, err := s.store.Mutate(ctx, sessionID, seekTransport(*body.PositionSeconds, time.Now().UTC()))
	if err != nil {
		s.writeMutateError(w, "seek", err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}
