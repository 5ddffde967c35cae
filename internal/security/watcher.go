package security

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is how long to wait after a file event before reloading,
// so editors that write in multiple steps trigger a single reload.
const reloadDebounce = 500 * time.Millisecond

// Watch reloads the allowlist pattern file whenever it changes, replacing
// the pattern set atomically. extra patterns (e.g. from the environment)
// are re-merged on every reload. Watch blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// rename-based atomic writes (editor save, `mv` into place) are seen.
func (a *Allowlist) Watch(ctx context.Context, path string, extra []string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating allowlist watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			patterns, err := LoadPatternFile(path)
			if err != nil {
				logger.Warn("allowlist reload failed, keeping previous set",
					"path", path, "error", err)
				continue
			}
			a.Replace(append(patterns, extra...))
			logger.Info("allowlist reloaded", "path", path, "patterns", len(patterns)+len(extra))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("allowlist watcher error", "error", err)
		}
	}
}
