package security

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestAllowlistIsAllowed(t *testing.T) {
	a := NewAllowlist([]string{
		"arxiv.org",
		"wikipedia.org",
		"*.wikipedia.org",
		"*.edu",
		"pubmed.ncbi.nlm.nih.gov",
	})

	tests := []struct {
		name string
		host string
		want bool
	}{
		{name: "exact match", host: "arxiv.org", want: true},
		{name: "exact is case-insensitive", host: "ArXiv.ORG", want: true},
		{name: "trailing dot stripped", host: "arxiv.org.", want: true},
		{name: "wildcard subdomain", host: "en.wikipedia.org", want: true},
		{name: "wildcard deep subdomain", host: "a.b.wikipedia.org", want: true},
		{name: "bare suffix listed exactly", host: "wikipedia.org", want: true},
		{name: "wildcard without exact entry", host: "edu", want: false},
		{name: "wildcard single label suffix", host: "mit.edu", want: true},
		{name: "suffix must align on label", host: "fakewikipedia.org", want: false},
		{name: "not listed", host: "example.com", want: false},
		{name: "subdomain of exact entry", host: "sub.arxiv.org", want: false},
		{name: "empty hostname", host: "", want: false},
		{name: "whitespace only", host: "   ", want: false},
		{name: "invalid label character", host: "ex ample.com", want: false},
		{name: "underscore rejected", host: "_dmarc.wikipedia.org", want: false},
		{name: "empty label", host: "en..wikipedia.org", want: false},
		{name: "ip literal never matches", host: "127.0.0.1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.IsAllowed(tt.host); got != tt.want {
				t.Errorf("IsAllowed(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestAllowlistWildcardSuffixNotItself(t *testing.T) {
	// "*.suffix" alone must not admit the bare suffix.
	a := NewAllowlist([]string{"*.ncbi.nlm.nih.gov"})

	if a.IsAllowed("ncbi.nlm.nih.gov") {
		t.Error("bare suffix allowed without an exact entry")
	}
	if !a.IsAllowed("pubmed.ncbi.nlm.nih.gov") {
		t.Error("proper subdomain not allowed")
	}
}

func TestAllowlistReplace(t *testing.T) {
	a := NewAllowlist([]string{"old.example.org"})
	if !a.IsAllowed("old.example.org") {
		t.Fatal("initial pattern not active")
	}

	a.Replace([]string{"new.example.org"})

	if a.IsAllowed("old.example.org") {
		t.Error("old pattern survived Replace")
	}
	if !a.IsAllowed("new.example.org") {
		t.Error("new pattern not active after Replace")
	}
}

func TestAllowlistMalformedPatternsDropped(t *testing.T) {
	a := NewAllowlist([]string{"", "*", "*.", "a.*.b", "good.example.org"})

	got := a.Patterns()
	if len(got) != 1 || got[0] != "good.example.org" {
		t.Errorf("Patterns() = %v, want only good.example.org", got)
	}
}

func TestAllowlistConcurrentAccess(t *testing.T) {
	a := NewAllowlist([]string{"*.wikipedia.org"})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				a.IsAllowed("en.wikipedia.org")
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				a.Replace([]string{"*.wikipedia.org", "arxiv.org"})
			}
		}()
	}
	wg.Wait()

	if !a.IsAllowed("en.wikipedia.org") {
		t.Error("pattern lost after concurrent replaces")
	}
}

func TestLoadPatternFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.txt")
	content := "# research domains\narxiv.org\n\n  *.wikipedia.org  \n# trailing comment\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	patterns, err := LoadPatternFile(path)
	if err != nil {
		t.Fatalf("LoadPatternFile() error = %v", err)
	}
	want := []string{"arxiv.org", "*.wikipedia.org"}
	if len(patterns) != len(want) {
		t.Fatalf("got %d patterns %v, want %d", len(patterns), patterns, len(want))
	}
	for i := range want {
		if patterns[i] != want[i] {
			t.Errorf("pattern[%d] = %q, want %q", i, patterns[i], want[i])
		}
	}
}

func TestLoadPatternFileMissing(t *testing.T) {
	if _, err := LoadPatternFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
