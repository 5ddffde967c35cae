package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/koopa0/steenbok/internal/api"
	"github.com/koopa0/steenbok/internal/config"
)

// Server timeout configuration. Write timeout covers the slowest allowed
// fetch: per-hop timeout times the redirect budget, plus extraction.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 10 * time.Second
)

// parseRateBurst reads STEENBOK_RATE_BURST from the environment.
// Returns 0 (use default) if unset or invalid.
func parseRateBurst() int {
	v := os.Getenv("STEENBOK_RATE_BURST")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// runServe starts the local fetch server.
func runServe(args []string) (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return exitFailure, fmt.Errorf("loading config: %w", err)
	}

	// A positional argument overrides the configured address; it passes
	// through the same loopback-only validation.
	if len(args) > 0 {
		cfg.ListenAddr = args[0]
		if err := cfg.Validate(); err != nil {
			return exitFailure, fmt.Errorf("validating address: %w", err)
		}
	}

	logger := newLogger(cfg)
	logger.Info("starting fetch server", "version", Version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(cfg, logger)
	if err != nil {
		return exitFailure, err
	}
	defer a.closeQuiet()

	// Reload the allowlist file on change for the lifetime of the server.
	go func() {
		if err := a.allowlist.Watch(ctx, cfg.AllowlistFile, cfg.AllowedDomains, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("allowlist watcher stopped", "error", err)
		}
	}()

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:    logger,
		Fetcher:   a.fetcher,
		RateBurst: parseRateBurst(),
	})
	if err != nil {
		return exitFailure, fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("fetch server ready",
		"addr", cfg.ListenAddr,
		"endpoint", "/fetch?url=...",
		"health", "/health",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down fetch server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return exitFailure, fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return exitOK, nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return exitOK, nil
		}
		return exitFailure, fmt.Errorf("HTTP server: %w", err)
	}
}
