package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/story-state/internal/config"
	"github.com/jwebster45206/story-state/internal/events"
	"github.com/jwebster45206/story-state/internal/handlers"
	"github.com/jwebster45206/story-state/internal/logger"
	"github.com/jwebster45206/story-state/internal/middleware"
	"github.com/jwebster45206/story-state/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Story State API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"state_ttl", cfg.StateTTL,
		"stop_on_error", cfg.StopOnError)

	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.StateTTL, log)
	if err != nil {
		log.Error("Failed to configure storage", "error", err)
		os.Exit(1)
	}

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	registry := handlers.NewRegistry(store, log).WithStopOnError(cfg.StopOnError)
	broadcaster := events.NewBroadcaster(store.Client(), log)

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, registry, log))

	gameStateHandler := handlers.NewGameStateHandler(registry, broadcaster, log)
	mux.Handle("/v1/gamestate", gameStateHandler)
	mux.Handle("/v1/gamestate/", gameStateHandler)

	mux.Handle("/v1/events/gamestate/", handlers.NewEventsHandler(store.Client(), log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the events endpoint streams.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
