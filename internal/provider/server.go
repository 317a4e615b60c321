package provider

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Video, error)
}

type Server struct {
	search   Searcher
	rdb      *redis.Client
	cacheTTL time.Duration
}

func NewServer(search Searcher, rdb *redis.Client, cacheTTL time.Duration) *Server {
	return &Server{
		search:   search,
		rdb:      rdb,
		cacheTTL: cacheTTL,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/search", s.handleSearch)

	return r
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := strings.TrimSpace(r.URL.Query().Get("query"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if len(q) > 200 {
		writeError(w, http.StatusBadRequest, "query is too long")
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 && v <= 25 {
			limit = v
		}
	}

	if cached, ok := s.cacheGet(ctx, q, limit); ok {
		writeJSON(w, http.StatusOK, SearchResponse{Videos: cached})
		return
	}

	videos, err := s.search.Search(ctx, q, limit)
	if errors.Is(err, ErrUpstreamUnavailable) {
		writeError(w, http.StatusBadGateway, "failed to query provider")
		return
	}
	if err != nil {
		log.Printf("drinksapp: search: %v", err)
		writeError(w, http.StatusInternalServerError, "search error")
		return
	}

	s.cacheSet(ctx, q, limit, videos)
	writeJSON(w, http.StatusOK, SearchResponse{Videos: videos})
}

func cacheKey(q string, limit int) string {
	return "search:" + strconv.Itoa(limit) + ":" + strings.ToLower(q)
}

func (s *Server) cacheGet(ctx context.Context, q string, limit int) ([]Video, bool) {
	if s.rdb == nil {
		return nil, false
	}
	raw, err := s.rdb.Get(ctx, cacheKey(q, limit)).Result()
	if err != nil {
		return nil, false
	}
	var videos []Video
	if err := json.Unmarshal([]byte(raw), &videos); err != nil {
		return nil, false
	}
	return videos, true
}

func (s *Server) cacheSet(ctx context.Context, q string, limit int, videos []Video) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(videos)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, cacheKey(q, limit), data, s.cacheTTL).Err(); err != nil {
		log.Printf("drinksapp: search cache set: %v", err)
	}
}
