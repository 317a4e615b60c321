package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ImAlejon/drinksapp/internal/config"
	"github.com/ImAlejon/drinksapp/internal/presence"
	"github.com/ImAlejon/drinksapp/internal/provider"
	"github.com/ImAlejon/drinksapp/internal/realtime"
	"github.com/ImAlejon/drinksapp/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("drinksapp: config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("drinksapp: pg: %v", err)
	}
	defer pool.Close()

	if err := session.AutoMigrate(ctx, pool); err != nil {
		log.Fatalf("drinksapp: migrate: %v", err)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("drinksapp: redis: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	store := session.NewPGStore(pool, rdb, cfg.StartingCredits)
	tracker := presence.NewTracker(rdb, cfg.PresenceTTL)
	tracker.StartSweeper(ctx, cfg.PresenceSweep)

	hub := realtime.NewHub()
	go hub.Run()

	rtServer := realtime.NewServer(hub, rdb, cfg.AllowedOrigin)
	go rtServer.RunRedisSubscriber(ctx)

	yt := provider.NewYouTubeClient(cfg.YouTubeAPIKey, cfg.YouTubeSearchURL)

	r := chi.NewRouter()
	r.Mount("/", session.NewServer(store, tracker).Router())
	r.Mount("/provider", provider.NewServer(yt, rdb, cfg.SearchCacheTTL).Router())
	r.Mount("/realtime", rtServer.Router())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("drinksapp on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("drinksapp: listen: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("drinksapp: shutdown: %v", err)
	}
}
