package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrNoAllowedDomains indicates the allowlist would be empty.
	ErrNoAllowedDomains = errors.New("no allowed domains configured")

	// ErrInvalidTimeout indicates the per-request timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidMaxBytes indicates a response size ceiling is out of range.
	ErrInvalidMaxBytes = errors.New("invalid max bytes")

	// ErrInvalidMaxRedirects indicates the redirect limit is out of range.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects")

	// ErrInvalidRateInterval indicates the rate interval is out of range.
	ErrInvalidRateInterval = errors.New("invalid rate interval")

	// ErrInvalidListenAddr indicates the serve address is malformed or
	// not a loopback address.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Validate checks the configuration, failing fast on the first problem.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if len(c.AllowedDomains) == 0 {
		return fmt.Errorf("%w: set allowed_domains or %s", ErrNoAllowedDomains, allowedDomainsEnv)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: %v (must be positive)", ErrInvalidTimeout, c.Timeout)
	}
	if c.MaxBytes <= 0 {
		return fmt.Errorf("%w: max_bytes %d (must be positive)", ErrInvalidMaxBytes, c.MaxBytes)
	}
	if c.MaxPDFBytes <= 0 || c.MaxPDFBytes > c.MaxBytes {
		return fmt.Errorf("%w: max_pdf_bytes %d (must be in (0, max_bytes])", ErrInvalidMaxBytes, c.MaxPDFBytes)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 20 {
		return fmt.Errorf("%w: %d (must be in [0, 20])", ErrInvalidMaxRedirects, c.MaxRedirects)
	}
	if c.RateInterval < 0 {
		return fmt.Errorf("%w: %v (must not be negative)", ErrInvalidRateInterval, c.RateInterval)
	}
	if err := validateListenAddr(c.ListenAddr); err != nil {
		return err
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q (use debug, info, warn, or error)", ErrInvalidLogLevel, c.LogLevel)
	}
	return nil
}

// validateListenAddr enforces a loopback bind. The fetch service has no
// authentication; exposing it beyond the local host would hand out the
// allowlisted egress path to the network.
func validateListenAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidListenAddr, addr, err)
	}
	if port == "" {
		return fmt.Errorf("%w: %q: missing port", ErrInvalidListenAddr, addr)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%w: %q: serve binds loopback only", ErrInvalidListenAddr, addr)
	}
	return nil
}
