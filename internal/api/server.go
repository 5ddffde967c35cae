// Package api serves the local fetch endpoint.
//
// The server is loopback-only and unauthenticated; anything it reveals,
// a local caller may see, but response bodies still stay generic so a
// prompt-injected caller cannot probe which defense rejected a URL. The
// detail lives in the audit trail, not the HTTP response.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// TextFetcher fetches a URL and returns its extracted plain text.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger    *slog.Logger
	Fetcher   TextFetcher // Required
	RateBurst int         // Per-client burst (0 = default 30)
}

// Server is the local HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fh := &fetchHandler{fetcher: cfg.Fetcher, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /fetch", fh.fetch)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 30
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first: Recovery → Logging → RateLimit.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probe bypasses the middleware stack.
	topMux := http.NewServeMux()
	topMux.Handle("GET /health", health(logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
