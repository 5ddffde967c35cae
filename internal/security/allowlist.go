package security

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Allowlist decides whether a hostname is a permitted fetch target.
//
// Patterns are either exact hostnames ("arxiv.org") or wildcards
// ("*.wikipedia.org"). A wildcard matches proper subdomains only: the bare
// suffix matches only if it is also listed as an exact pattern. Matching is
// case-insensitive and ignores a trailing dot.
//
// The pattern set is swapped atomically by Replace, so a reload never
// exposes a partially updated set to concurrent readers.
type Allowlist struct {
	mu        sync.RWMutex
	exact     map[string]struct{}
	wildcards []string // stored as ".suffix"
}

// NewAllowlist creates an allowlist from the given patterns.
// Malformed patterns (empty, bare "*", embedded wildcards) are dropped.
func NewAllowlist(patterns []string) *Allowlist {
	a := &Allowlist{}
	a.Replace(patterns)
	return a
}

// Replace swaps the entire pattern set atomically.
func (a *Allowlist) Replace(patterns []string) {
	exact := make(map[string]struct{}, len(patterns))
	var wildcards []string

	for _, p := range patterns {
		p = normalizeHost(p)
		if p == "" {
			continue
		}
		if suffix, ok := strings.CutPrefix(p, "*."); ok {
			if suffix == "" || strings.Contains(suffix, "*") {
				continue
			}
			wildcards = append(wildcards, "."+suffix)
			continue
		}
		if strings.Contains(p, "*") {
			continue
		}
		exact[p] = struct{}{}
	}

	a.mu.Lock()
	a.exact = exact
	a.wildcards = wildcards
	a.mu.Unlock()
}

// IsAllowed reports whether the hostname matches the pattern set.
// Empty hostnames and hostnames with characters invalid in DNS labels are
// always rejected. Unicode confusable/homograph domains are out of scope;
// the label check below is a syntax check, not a confusable defense.
func (a *Allowlist) IsAllowed(hostname string) bool {
	host := normalizeHost(hostname)
	if !validHostname(host) {
		return false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, ok := a.exact[host]; ok {
		return true
	}
	for _, suffix := range a.wildcards {
		// Proper subdomain: the host must extend the suffix by at least
		// one label, so "*.edu" matches "mit.edu" but never "edu".
		if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}

// Patterns returns the current pattern set, exact entries first.
func (a *Allowlist) Patterns() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]string, 0, len(a.exact)+len(a.wildcards))
	for p := range a.exact {
		out = append(out, p)
	}
	for _, s := range a.wildcards {
		out = append(out, "*"+s)
	}
	return out
}

// LoadPatternFile reads one pattern per line, skipping blanks and
// '#' comments.
func LoadPatternFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening allowlist file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading allowlist file: %w", err)
	}
	return patterns, nil
}

// normalizeHost lowercases and strips surrounding whitespace and a single
// trailing dot ("example.com." == "example.com").
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimSuffix(host, ".")
}

// validHostname checks DNS label syntax: non-empty labels of letters,
// digits, and hyphens, no label longer than 63 bytes.
func validHostname(host string) bool {
	if host == "" || len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		for _, r := range label {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= '0' && r <= '9':
			case r == '-':
			default:
				return false
			}
		}
	}
	return true
}
