// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.steenbok/config.yaml)
//  3. Default values
//
// The domain allowlist is additive across sources: the defaults, the
// allowlist file, and STEENBOK_ALLOWED_DOMAINS all merge rather than
// replace, so an operator can widen the list without restating it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultAllowedDomains is the built-in research allowlist.
//
// *.edu and *.ac.uk are broad by design (tens of thousands of
// subdomains); the trade-off is coverage vs risk from compromised
// institution pages. Narrow via the allowlist file or
// STEENBOK_ALLOWED_DOMAINS.
var DefaultAllowedDomains = []string{
	"arxiv.org",
	"pubmed.ncbi.nlm.nih.gov",
	"*.ncbi.nlm.nih.gov",
	"jstor.org",
	"doi.org",
	"*.edu",
	"*.ac.uk",
	"wikipedia.org",
	"*.wikipedia.org",
	"www.google.com",
	"scholar.google.com",
	"books.google.com",
	"patents.google.com",
}

const (
	// DefaultListenAddr is the serve-mode bind address. Loopback only;
	// Validate rejects anything else.
	DefaultListenAddr = "127.0.0.1:8877"

	// allowedDomainsEnv appends comma-separated patterns to the allowlist.
	allowedDomainsEnv = "STEENBOK_ALLOWED_DOMAINS"
)

// Config stores application configuration.
type Config struct {
	// Domain policy
	AllowedDomains []string `mapstructure:"allowed_domains"`
	AllowlistFile  string   `mapstructure:"allowlist_file"`
	AllowHTTP      bool     `mapstructure:"allow_http"`

	// Fetch limits
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBytes     int64         `mapstructure:"max_bytes"`
	MaxPDFBytes  int64         `mapstructure:"max_pdf_bytes"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
	UserAgent    string        `mapstructure:"user_agent"`

	// Serve mode
	ListenAddr string `mapstructure:"listen_addr"`

	// AuditLog is the audit trail destination; empty means stderr.
	AuditLog string `mapstructure:"audit_log"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".steenbok")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Env patterns append to whatever the file or defaults provided.
	cfg.AllowedDomains = append(cfg.AllowedDomains, splitDomains(os.Getenv(allowedDomainsEnv))...)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("allowed_domains", DefaultAllowedDomains)
	v.SetDefault("allowlist_file", filepath.Join(configDir, "allowlist.txt"))
	v.SetDefault("allow_http", false)

	v.SetDefault("timeout", "10s")
	v.SetDefault("max_bytes", 5*1024*1024)
	v.SetDefault("max_pdf_bytes", 2*1024*1024)
	v.SetDefault("max_redirects", 3)
	v.SetDefault("rate_interval", "5s")
	v.SetDefault("user_agent", "")

	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("audit_log", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds the supported environment overrides explicitly.
// STEENBOK_ALLOWED_DOMAINS is handled separately in Load because it
// appends rather than replaces.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("allowlist_file", "STEENBOK_ALLOWLIST_FILE")
	mustBind("allow_http", "STEENBOK_ALLOW_HTTP")
	mustBind("listen_addr", "STEENBOK_LISTEN_ADDR")
	mustBind("audit_log", "STEENBOK_AUDIT_LOG")
	mustBind("log_level", "STEENBOK_LOG_LEVEL")
	mustBind("log_json", "STEENBOK_LOG_JSON")
	mustBind("rate_interval", "STEENBOK_RATE_INTERVAL")
}

// splitDomains parses a comma-separated pattern list, dropping empties.
func splitDomains(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
