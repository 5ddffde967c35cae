package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/koopa0/steenbok/internal/config"
	"github.com/koopa0/steenbok/internal/fetch"
)

// Exit codes for the fetch command.
const (
	exitOK         = 0
	exitFailure    = 1
	exitAllowlist  = 2
	exitBlocked    = 3
	exitExtraction = 4
)

// runFetch fetches one URL and prints the extracted text to stdout.
func runFetch(args []string) (int, error) {
	flags := flag.NewFlagSet("fetch", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	allowHTTP := flags.Bool("allow-http", false, "permit plain http for this fetch")
	if err := flags.Parse(args); err != nil {
		return exitFailure, fmt.Errorf("parsing fetch flags: %w", err)
	}
	if flags.NArg() != 1 {
		return exitFailure, errors.New("usage: steenbok fetch [--allow-http] <url>")
	}
	rawURL := flags.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		return exitFailure, fmt.Errorf("loading config: %w", err)
	}
	if *allowHTTP {
		cfg.AllowHTTP = true
	}

	logger := newLogger(cfg)
	a, err := setup(cfg, logger)
	if err != nil {
		return exitFailure, err
	}
	defer a.closeQuiet()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	text, err := a.fetcher.FetchText(ctx, rawURL)
	if err != nil {
		return exitCode(err), err
	}

	fmt.Println(text)
	return exitOK, nil
}

// exitCode maps a fetch failure onto the command's exit code taxonomy.
// Errors that are not fetch outcomes come from the extraction stage.
func exitCode(err error) int {
	var ferr *fetch.Error
	if !errors.As(err, &ferr) {
		return exitExtraction
	}
	switch ferr.Reason {
	case fetch.ReasonAllowlistRejected:
		return exitAllowlist
	case fetch.ReasonSchemeRejected, fetch.ReasonHostBlockedIP, fetch.ReasonHostResolutionFailed:
		return exitBlocked
	default:
		return exitFailure
	}
}
