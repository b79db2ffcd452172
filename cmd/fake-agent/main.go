// ABOUTME: Minimal fake agent for local and E2E testing, echoes queries with markdown
// ABOUTME: Usage: fake-agent [-config path] [-addr localhost:8001] [-db path]

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2389/coven-chat/internal/agent"
	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/dedupe"
	"github.com/2389/coven-chat/internal/logging"
	"github.com/2389/coven-chat/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Config file (default: $COVEN_CHAT_CONFIG or ~/.config/coven/chat.yaml)")
	addr := flag.String("addr", "", "Listen address (overrides agent.listen_addr)")
	dbPath := flag.String("db", "", "SQLite database path (overrides database.path)")
	dedupeTTL := flag.Duration("dedupe-ttl", agent.DefaultDedupeTTL, "How long a request_id is remembered")
	dedupeSize := flag.Int("dedupe-size", agent.DefaultDedupeSize, "Maximum remembered request_ids")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath == "" {
		cfg, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Agent.ListenAddr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	seen := dedupe.New[string](*dedupeTTL, *dedupeSize)
	if err := run(ctx, cfg, seen); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, seen *dedupe.Cache[string]) error {
	logger := logging.Setup(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	endpoint, err := url.Parse(cfg.Agent.URL)
	if err != nil {
		return fmt.Errorf("parsing agent url: %w", err)
	}
	path := endpoint.Path
	if path == "" {
		path = "/"
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	handler := agent.NewHandler(db, agent.EchoResponder(), logger, agent.WithDedupe(seen))
	defer handler.Close()

	server := &http.Server{
		Addr:              cfg.Agent.ListenAddr,
		Handler:           handler.Routes(path),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fake agent listening", "addr", cfg.Agent.ListenAddr, "path", path, "database", cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down fake agent")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
