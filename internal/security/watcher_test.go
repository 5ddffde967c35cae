package security

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koopa0/steenbok/internal/log"
)

func TestAllowlistWatchReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "allowlist.txt")
	if err := os.WriteFile(path, []byte("arxiv.org\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	patterns, err := LoadPatternFile(path)
	if err != nil {
		t.Fatal(err)
	}
	a := NewAllowlist(patterns)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- a.Watch(ctx, path, []string{"extra.example.org"}, log.NewNop())
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("arxiv.org\n*.wikipedia.org\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for !a.IsAllowed("en.wikipedia.org") {
		select {
		case <-deadline:
			t.Fatal("allowlist not reloaded within 5s")
		case <-time.After(50 * time.Millisecond):
		}
	}

	// Extra patterns are re-merged on reload.
	if !a.IsAllowed("extra.example.org") {
		t.Error("extra pattern lost on reload")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
