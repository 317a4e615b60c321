package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	hub           *Hub
	rdb           *redis.Client
	allowedOrigin string
	upgrader      websocket.Upgrader
}

func NewServer(hub *Hub, rdb *redis.Client, allowedOrigin string) *Server {
	s := &Server{
		hub:           hub,
		rdb:           rdb,
		allowedOrigin: allowedOrigin,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == s.allowedOrigin
		},
	}
	return s
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/ws", s.handleWS)
	r.Post("/events", s.handleEvents)

	return r
}

// envelope is the published event shape; only the routing fields are
// decoded here, the raw payload passes through untouched.
type envelope struct {
	Type    string `json:"type"`
	Payload struct {
		SessionID string `json:"sessionId"`
		UserID    string `json:"userId"`
	} `json:"payload"`
}

// topicOf routes session events to their session room and credit
// events to the owning user's room, so every client of a user observes
// balance changes regardless of which session it is viewing.
func topicOf(data []byte) string {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ""
	}
	if env.Payload.SessionID != "" {
		return "session." + env.Payload.SessionID
	}
	if env.Payload.UserID != "" {
		return "user." + env.Payload.UserID
	}
	return ""
}

// RunRedisSubscriber pumps the store's change notifications into the
// hub until ctx is cancelled. Delivery to subscribers is
// fire-and-forget; slow clients are dropped by the hub.
func (s *Server) RunRedisSubscriber(ctx context.Context) {
	sub := s.rdb.Subscribe(ctx, "broadcast")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			data := []byte(msg.Payload)
			s.hub.Broadcast(topicOf(data), data)
		}
	}
}

// handleWS upgrades the connection and registers it for the topics in
// the ?topics= query (comma separated, e.g. "session.<id>,user.<id>").
// No topics means everything.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("drinksapp: ws upgrade: %v", err)
		return
	}

	topics := make(map[string]bool)
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics[t] = true
		}
	}

	client := &Client{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		topics: topics,
	}
	s.hub.register <- client

	welcome := map[string]any{
		"type": "welcome",
		"now":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.Marshal(welcome); err == nil {
		client.send <- b
	}

	go client.writePump()
	go client.readPump()
}

// handleEvents lets other processes inject an event into the broadcast
// channel over plain HTTP.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	if err := s.rdb.Publish(r.Context(), "broadcast", string(data)).Err(); err != nil {
		log.Printf("drinksapp: publish error: %v", err)
		http.Error(w, "redis error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}
