// cmd/factum-web serves the Factum dashboard: a read-only HTTP API over the
// memory store plus a WebSocket feed of live mutation events. It shares the
// document database with factum-mcp, so both can run side by side.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/factumhq/factum/internal/config"
	"github.com/factumhq/factum/internal/embedding"
	"github.com/factumhq/factum/internal/engine"
	"github.com/factumhq/factum/internal/storage"
	"github.com/factumhq/factum/internal/storage/postgres"
	"github.com/factumhq/factum/internal/storage/sqlite"
	"github.com/factumhq/factum/web/handlers"
)

func main() {
	configPath := flag.String("config", "factum.yaml", "path to the YAML config file")
	flag.Parse()

	logger := log.New(os.Stderr).With("component", "factum-web")

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", "error", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("failed to open store", "engine", cfg.Storage.Engine, "error", err)
	}
	defer store.Close()

	embedder, err := embedding.NewService(cfg.EmbeddingProviderConfig())
	if err != nil {
		logger.Fatal("failed to configure embedding provider", "error", err)
	}

	hub := handlers.NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	opts := []engine.Option{
		engine.WithLogger(logger.With("component", "engine")),
		engine.WithNotifier(hub),
	}
	if embedder != nil {
		opts = append(opts, engine.WithEmbedder(embedder))
	}
	eng := engine.New(store, cfg.User.UserID, opts...)

	mux := http.NewServeMux()
	handlers.NewAPIHandlers(eng).Register(mux)
	mux.Handle("/ws", hub)

	limiter := handlers.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	var root http.Handler = mux
	root = handlers.RateLimitMiddleware(root, limiter)
	root = handlers.RequireAuth(root, cfg.Security.APIToken)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("dashboard running", "addr", "http://"+addr, "user", cfg.User.UserID)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", "error", err)
	}
}

// openStore builds the configured storage backend.
func openStore(cfg *config.Config) (storage.DocumentStore, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.New(cfg.Storage.PostgresDSN)
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, err
		}
		return sqlite.New(filepath.Join(cfg.Storage.DataPath, "factum.db"))
	}
}
