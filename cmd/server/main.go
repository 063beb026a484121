package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/collabcast/internal/actor"
	"github.com/pscheid92/collabcast/internal/canvas"
	"github.com/pscheid92/collabcast/internal/config"
	"github.com/pscheid92/collabcast/internal/logging"
	"github.com/pscheid92/collabcast/internal/notes"
	"github.com/pscheid92/collabcast/internal/redis"
	"github.com/pscheid92/collabcast/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupRedis connects to Redis when a URL is configured. Without one the
// canvas event logs are memory-only and nil is returned.
func setupRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		slog.Info("No Redis URL configured, canvas history is memory-only")
		return nil
	}

	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		logging.WithError(err).Error("Failed to create Redis client")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		logging.WithError(err).Error("Failed to connect to Redis")
		os.Exit(1)
	}

	return client
}

func runGracefulShutdown(srv *server.Server, notesDir, canvasDir *actor.Directory, redisClient *redis.Client) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.WithError(err).Error("Server shutdown error")
		}

		// Stopping a directory closes every session and flushes handlers.
		notesDir.Stop()
		canvasDir.Stop()

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logging.WithError(err).Error("Failed to close Redis client")
			}
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		slog.Error("Failed to create data dir", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	redisClient := setupRedis(cfg)

	actorOpts := actor.Options{
		Clock:            clock,
		BatchWindow:      cfg.BatchWindow,
		RetryDelay:       cfg.RetryDelay,
		RebroadcastDelay: cfg.RebroadcastDelay,
		MaxClients:       cfg.MaxClientsPerEntity,
	}

	notesOpts := actorOpts
	notesOpts.Kind = "notes"
	notesDir := actor.NewDirectory(
		func(key string) actor.Handler {
			return notes.NewHandler(cfg.DataDir, key, clock)
		},
		notesOpts,
	)

	canvasOpts := actorOpts
	canvasOpts.Kind = "canvas"
	canvasOpts.AnnouncePresence = true
	canvasDir := actor.NewDirectory(
		func(key string) actor.Handler {
			var log canvas.EventLog = canvas.NewMemoryLog(cfg.CanvasRetention)
			if redisClient != nil {
				log = redis.NewEventLog(redisClient, key, cfg.CanvasRetention)
			}
			return canvas.NewHandler(key, log, cfg.CanvasRetention, clock)
		},
		canvasOpts,
	)

	srv := server.NewServer(cfg, notesDir, canvasDir, redisClient, clock)

	done := runGracefulShutdown(srv, notesDir, canvasDir, redisClient)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
