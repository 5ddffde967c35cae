package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koopa0/steenbok/internal/log"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := newRateLimiter(1.0, 5)
	for i := range 5 {
		if !rl.allow("127.0.0.1") {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if rl.allow("127.0.0.1") {
		t.Error("request allowed past burst")
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := newRateLimiter(1.0, 1)
	if !rl.allow("127.0.0.1") {
		t.Fatal("first client denied")
	}
	if rl.allow("127.0.0.1") {
		t.Error("first client allowed past burst")
	}
	// A different client has its own bucket.
	if !rl.allow("::1") {
		t.Error("second client denied")
	}
}

func TestRateLimitMiddlewareResponse(t *testing.T) {
	rl := newRateLimiter(0.001, 1)
	handler := rateLimitMiddleware(rl, log.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fetch?url=x", nil)
	req.RemoteAddr = "127.0.0.1:54321"
	handler.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"127.0.0.1:54321", "127.0.0.1"},
		{"[::1]:54321", "::1"},
		{"unparsable", "unparsable"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
