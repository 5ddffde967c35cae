// Package cmd provides the steenbok CLI commands.
//
// Commands:
//   - fetch: fetch one URL and print its extracted text
//   - serve: local HTTP server exposing GET /fetch
//
// The fetch command's exit code reflects the outcome category: 2 for an
// allowlist rejection, 3 for a blocked URL (scheme, address, or
// unresolvable host), 4 for an extraction failure, 1 for anything else.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/koopa0/steenbok/internal/config"
	"github.com/koopa0/steenbok/internal/log"
)

// Execute is the main entry point. It returns the process exit code and,
// for non-zero codes, the error to print.
func Execute() (int, error) {
	if len(os.Args) < 2 {
		runHelp()
		return 0, nil
	}

	switch os.Args[1] {
	case "fetch":
		return runFetch(os.Args[2:])
	case "serve":
		return runServe(os.Args[2:])
	case "version", "--version", "-v":
		runVersion()
		return 0, nil
	case "help", "--help", "-h":
		runHelp()
		return 0, nil
	default:
		return 1, fmt.Errorf("unknown command: %s (try \"steenbok help\")", os.Args[1])
	}
}

// newLogger builds the operational logger from the configuration. DEBUG in
// the environment forces debug level regardless of config.
func newLogger(cfg *config.Config) log.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: cfg.LogJSON})
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Steenbok - safe URL text extraction for research")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  steenbok fetch <url>       Fetch URL and print extracted text")
	fmt.Println("  steenbok serve [addr]      Start local fetch server (default: 127.0.0.1:8877)")
	fmt.Println("  steenbok --version         Show version information")
	fmt.Println("  steenbok --help            Show this help")
	fmt.Println()
	fmt.Println("Fetch exit codes:")
	fmt.Println("  0  success")
	fmt.Println("  2  URL not on allowlist")
	fmt.Println("  3  URL blocked (scheme, address, or unresolvable host)")
	fmt.Println("  4  no text could be extracted")
	fmt.Println("  1  network or other failure")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  STEENBOK_ALLOWED_DOMAINS   Extra allowlist patterns (comma-separated)")
	fmt.Println("  STEENBOK_ALLOWLIST_FILE    Allowlist file (default: ~/.steenbok/allowlist.txt)")
	fmt.Println("  STEENBOK_ALLOW_HTTP        Permit plain http URLs (default: false)")
	fmt.Println("  STEENBOK_AUDIT_LOG         Audit trail file (default: stderr)")
	fmt.Println("  DEBUG                      Enable debug logging")
	fmt.Println()
	fmt.Println("Learn more: https://github.com/koopa0/steenbok")
}
