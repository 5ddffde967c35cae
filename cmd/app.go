package cmd

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/koopa0/steenbok/internal/audit"
	"github.com/koopa0/steenbok/internal/config"
	"github.com/koopa0/steenbok/internal/extract"
	"github.com/koopa0/steenbok/internal/fetch"
	"github.com/koopa0/steenbok/internal/log"
	"github.com/koopa0/steenbok/internal/security"
)

// app wires the fetch pipeline: allowlist, host validator, rate limiter,
// audit trail, fetcher, extractor.
type app struct {
	cfg       *config.Config
	logger    log.Logger
	allowlist *security.Allowlist
	fetcher   *fetch.Fetcher

	auditFile *os.File
}

// setup builds the pipeline from configuration. The allowlist merges the
// configured patterns with the allowlist file when one exists.
func setup(cfg *config.Config, logger log.Logger) (*app, error) {
	patterns := slices.Clone(cfg.AllowedDomains)
	filePatterns, err := security.LoadPatternFile(cfg.AllowlistFile)
	switch {
	case err == nil:
		patterns = append(patterns, filePatterns...)
	case errors.Is(err, os.ErrNotExist):
		// No file is fine; the configured patterns stand alone.
	default:
		return nil, err
	}
	allowlist := security.NewAllowlist(patterns)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		allowlist: allowlist,
	}

	recorder, err := a.openAudit()
	if err != nil {
		return nil, err
	}

	fetcher, err := fetch.New(
		fetch.Config{
			UserAgent:    cfg.UserAgent,
			Timeout:      cfg.Timeout,
			MaxBytes:     cfg.MaxBytes,
			MaxPDFBytes:  cfg.MaxPDFBytes,
			MaxRedirects: cfg.MaxRedirects,
			AllowHTTP:    cfg.AllowHTTP,
		},
		fetch.Deps{
			Allowlist: allowlist,
			Hosts:     security.NewHost(nil),
			Limiter:   fetch.NewLimiter(cfg.RateInterval),
			Audit:     recorder,
			Logger:    logger,
			Extract:   extract.Text,
		},
	)
	if err != nil {
		a.closeQuiet()
		return nil, fmt.Errorf("creating fetcher: %w", err)
	}
	a.fetcher = fetcher
	return a, nil
}

// openAudit opens the audit destination: the configured file in append
// mode, or stderr.
func (a *app) openAudit() (audit.Recorder, error) {
	if a.cfg.AuditLog == "" {
		return audit.NewLog(os.Stderr), nil
	}
	f, err := os.OpenFile(a.cfg.AuditLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	a.auditFile = f
	return audit.NewLog(f), nil
}

// Close releases resources held by the pipeline.
func (a *app) Close() error {
	if a.auditFile != nil {
		if err := a.auditFile.Close(); err != nil {
			return fmt.Errorf("closing audit log: %w", err)
		}
	}
	return nil
}

func (a *app) closeQuiet() {
	if err := a.Close(); err != nil {
		a.logger.Warn("shutdown error", "error", err)
	}
}
