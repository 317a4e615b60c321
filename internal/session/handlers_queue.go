package session

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleAddSong contributes a song to the session queue, spending the
// requested credits for a higher slot.
// POST /sessions/{id}/songs
func (s *Server) handleAddSong(w http.ResponseWriter, r *http.Request) {
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
		MediaID      string `json:"mediaId"`
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnailUrl"`
		Credits      int    `json:"credits"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.MediaID = strings.TrimSpace(body.MediaID)
	body.Title = strings.TrimSpace(body.Title)
	body.ThumbnailURL = strings.TrimSpace(body.ThumbnailURL)

	if body.MediaID == "" {
		writeError(w, http.StatusBadRequest, "mediaId is required")
		return
	}
	if body.Title == "" || len(body.Title) > 300 {
		writeError(w, http.StatusBadRequest, "title must be between 1 and 300 characters")
		return
	}
	if body.Credits < 0 {
		writeError(w, http.StatusBadRequest, "credits must not be negative")
		return
	}

	sess, err := s.store.Mutate(ctx, sessionID,
		addSong(body.MediaID, body.Title, body.ThumbnailURL, user, body.Credits, time.Now().UTC()))
	if err != nil {
		s.writeMutateError(w, "add song", err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// handleRemoveSong removes a queue entry and refunds its credits. The
// host may remove anything; a contributor only their own entries.
// Removing an entry that is already gone succeeds: a concurrent writer
// got there first and the refund must not happen twice.
// DELETE /sessions/{id}/songs/{entryId}
func (s *Server) handleRemoveSong(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	if user.UserID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	sessionID := chi.URLParam(r, "id")
	entryID := chi.URLParam(r, "entryId")
	if sessionID == "" || entryID == "" {
		writeError(w, http.StatusBadRequest, "missing session or entry id")
		return
	}

	sess, err := s.store.Mutate(ctx, sessionID, removeSong(entryID, user.UserID))
	if err != nil {
		s.writeMutateError(w, "remove song", err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// handleUpdateCredits re-weights an existing entry, settling the credit
// difference against the contributor's balance.
// PATCH /sessions/{id}/songs/{entryId}
func (s *Server) handleUpdateCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	if user.UserID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	sessionID := chi.URLParam(r, "id")
	entryID := chi.URLParam(r, "entryId")
	if sessionID == "" || entryID == "" {
		writeError(w, http.StatusBadRequest, "missing session or entry id")
		return
	}

	var body struct {
		Credits *int `json:"credits"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Credits == nil {
		writeError(w, http.StatusBadRequest, "credits is required")
		return
	}
	if *body.Credits < 0 {
		writeError(w, http.StatusBadRequest, "credits must not be negative")
		return
	}

	sess, err := s.store.Mutate(ctx, sessionID, updateCredits(entryID, *body.Credits, user.UserID))
	if err != nil {
		s.writeMutateError(w, "update credits", err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// handleReorder is the host's manual drag-reorder. Locked out as soon
// as any entry carries credits.
// POST /sessions/{id}/reorder
func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
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
		FromIndex *int `json:"fromIndex"`
		ToIndex   *int `json:"toIndex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FromIndex == nil || body.ToIndex == nil {
		writeError(w, http.StatusBadRequest, "fromIndex and toIndex are required")
		return
	}

	sess, err := s.store.Mutate(ctx, sessionID, reorderQueue(*body.FromIndex, *body.ToIndex, user.UserID))
	if err != nil {
		s.writeMutateError(w, "reorder", err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// writeMutateError maps the error taxonomy onto responses; anything
// outside it is logged and reported as a database error.
func (s *Server) writeMutateError(w http.ResponseWriter, op string, err error) {
	if statusFor(err) == http.StatusInternalServerError && !errors.Is(err, ErrConflictRetryExhausted) {
		log.Printf("drinksapp: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeSessionError(w, err)
}
