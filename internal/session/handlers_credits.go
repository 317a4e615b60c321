package session

import (
	"encoding/json"
	"log"
	"net/http"
)

// handleBalance reports the caller's spendable credits. Credits are a
// per-user resource, not a per-session one.
// GET /credits
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	if user.UserID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	balance, err := s.store.Balance(ctx, user.UserID)
	if err != nil {
		log.Printf("drinksapp: balance: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":  user.UserID,
		"balance": balance,
	})
}

// handleGrantCredits is the administrative top-up. The resulting
// balance is broadcast on the user's topic so every client they have
// open picks it up.
// POST /credits/grant
func (s *Server) handleGrantCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	if user.UserID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		UserID string `json:"userId"`
		Amount int    `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if body.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	balance, err := s.store.Grant(ctx, body.UserID, body.Amount)
	if err != nil {
		log.Printf("drinksapp: grant credits: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":  body.UserID,
		"balance": balance,
	})
}
