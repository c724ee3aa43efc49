package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/waleedxyz/blockchat-relay/internal/config"
	"github.com/waleedxyz/blockchat-relay/internal/httpapi"
	"github.com/waleedxyz/blockchat-relay/internal/presence"
	"github.com/waleedxyz/blockchat-relay/internal/relay"
)

func main() {
	// Load config (fallback to env/default)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Optional presence mirror; the relay runs fine without it
	var store *presence.Store
	if cfg.PresenceEnabled {
		store, err = presence.NewStore(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			logger.Warn("presence_store_unavailable",
				"error", err.Error(),
			)
			store = nil
		}
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload dir: %v", err)
	}

	// Core relay wiring: one registry instance, injected everywhere
	registry := relay.NewRegistry()
	router := relay.NewRouter(registry, presenceRecorder(store))
	sweeper := relay.NewSweeper(router, cfg.SweepInterval)
	go sweeper.Run()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpapi.CORS(cfg.CORSOrigins))

	r.GET("/ws", relay.WSHandler(router, rate.Limit(cfg.MsgRateLimit), cfg.MsgRateBurst))
	httpapi.NewHealthHandler(registry).RegisterRoutes(r)
	httpapi.NewUploadHandler(cfg.UploadDir, cfg.UploadMaxBytes(), uploadRecorder(store)).RegisterRoutes(r)
	if store != nil {
		httpapi.NewPresenceHandler(store).RegisterRoutes(r)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	logger.Info("starting_relay_server",
		"http_port", cfg.HTTPPort,
		"sweep_interval", cfg.SweepInterval.String(),
		"presence_enabled", store != nil,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
		os.Exit(1)
	}

	// Orderly shutdown: stop accepting, close every live handle, stop the
	// sweeper. In-flight messages are dropped without notification.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http_shutdown_error", "error", err.Error())
	}
	registry.CloseAll()
	sweeper.Stop()
	if store != nil {
		store.Close()
	}
	logger.Info("server_stopped_gracefully")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// presenceRecorder avoids handing the router a non-nil interface wrapping a
// nil *presence.Store.
func presenceRecorder(store *presence.Store) relay.PresenceRecorder {
	if store == nil {
		return nil
	}
	return store
}

func uploadRecorder(store *presence.Store) httpapi.UploadRecorder {
	if store == nil {
		return nil
	}
	return store
}
