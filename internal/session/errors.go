package session

import (
	"errors"
	"net/http"
)

// Validation failures are terminal: retrying them cannot change the
// outcome, so they surface straight to the caller. Only version
// conflicts are retried, inside Store.Mutate.
var (
	ErrInsufficientCredits     = errors.New("insufficient credits")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrNotFound                = errors.New("not found")
	ErrOrderingLockedByCredits = errors.New("manual ordering is locked while credited songs are queued")
	ErrConflictRetryExhausted  = errors.New("session is being modified too frequently, try again")
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrInsufficientCredits):
		return http.StatusConflict
	case errors.Is(err, ErrOrderingLockedByCredits):
		return http.StatusConflict
	case errors.Is(err, ErrConflictRetryExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, msg)
}
