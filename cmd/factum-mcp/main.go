// cmd/factum-mcp is the entry point for the Factum MCP (Model Context
// Protocol) server. It wires the configured document store and embedding
// provider into the memory engine and serves JSON-RPC 2.0 tools over stdio.
//
// Startup sequence:
//  1. Load configuration (optional YAML file, FACTUM_ env vars on top).
//  2. Open the document store (SQLite or PostgreSQL).
//  3. Detect an embedding provider; without credentials the server runs in
//     lexical-only mode.
//  4. Serve JSON-RPC 2.0 requests from stdin, writing responses to stdout.
//
// CRITICAL: ALL logging MUST go to stderr. Any bytes written to stdout that
// are not valid JSON-RPC 2.0 response frames will corrupt the protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/factumhq/factum/internal/api/mcp"
	"github.com/factumhq/factum/internal/config"
	"github.com/factumhq/factum/internal/embedding"
	"github.com/factumhq/factum/internal/engine"
	"github.com/factumhq/factum/internal/storage"
	"github.com/factumhq/factum/internal/storage/postgres"
	"github.com/factumhq/factum/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "factum.yaml", "path to the YAML config file")
	flag.Parse()

	logger := log.New(os.Stderr).With("component", "factum-mcp")

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

	opts := []engine.Option{engine.WithLogger(logger.With("component", "engine"))}
	if embedder != nil {
		logger.Info("embedding provider active", "provider", embedder.Name(), "dimensions", embedder.Dimension())
		opts = append(opts, engine.WithEmbedder(embedder))
	} else {
		logger.Info("no embedding credentials, running lexical-only")
	}
	eng := engine.New(store, cfg.User.UserID, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	srv := mcp.NewServer(eng, mcp.WithLogger(logger.With("component", "mcp")))
	transport := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout)

	logger.Info("serving", "user", cfg.User.UserID, "storage", cfg.Storage.Engine)
	if err := transport.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("transport error", "error", err)
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
