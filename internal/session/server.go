package session

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// PresenceMember is one live guest entry in the TTL liveness list.
// Correctness of queue and playback never depends on its contents.
type PresenceMember struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	LastPingAt  time.Time `json:"lastPingAt"`
}

// Presence is the connected-users tracker consumed by the HTTP layer.
type Presence interface {
	Ping(ctx context.Context, sessionID string, user UserRef) error
	List(ctx context.Context, sessionID string) ([]PresenceMember, error)
	Leave(ctx context.Context, sessionID, userID string) error
}

type Server struct {
	store    Store
	presence Presence
}

func NewServer(store Store, presence Presence) *Server {
	return &Server{
		store:    store,
		presence: presence,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/active", s.handleActiveSession)
		r.Get("/sessions/{id}", s.handleGetSession)

		r.Post("/sessions/{id}/songs", s.handleAddSong)
		r.Patch("/sessions/{id}/songs/{entryId}", s.handleUpdateCredits)
		r.Delete("/sessions/{id}/songs/{entryId}", s.handleRemoveSong)
		r.Post("/sessions/{id}/reorder", s.handleReorder)

		// Playback transport
		r.Post("/sessions/{id}/advance", s.handleAdvance)
		r.Post("/sessions/{id}/transport", s.handleSetTransport)
		r.Post("/sessions/{id}/seek", s.handleSeek)

		r.Get("/sessions/{id}/presence", s.handleListPresence)
		r.Post("/sessions/{id}/presence", s.handlePresencePing)
		r.Delete("/sessions/{id}/presence", s.handlePresenceLeave)

		r.Get("/credits", s.handleBalance)
		r.Post("/credits/grant", s.handleGrantCredits)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "drinksapp",
	})
}

// currentUser pulls the identity the gateway resolved for this request.
// Authentication itself lives outside this service.
func currentUser(r *http.Request) UserRef {
	return UserRef{
		UserID:      r.Header.Get("X-User-Id"),
		DisplayName: r.Header.Get("X-User-Name"),
	}
}
