// Package fetch implements the safe URL fetch loop: allowlist and host
// validation before any network I/O, serialized request pacing, manual
// redirect following with full re-validation at every hop, and streaming
// body reads against a byte ceiling.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/koopa0/steenbok/internal/audit"
	"github.com/koopa0/steenbok/internal/security"
)

const (
	// DefaultTimeout is the wall-clock budget for a single hop, covering
	// connect, TLS, headers, and the body read.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBytes is the body ceiling for text formats.
	DefaultMaxBytes = 5 * 1024 * 1024

	// DefaultMaxPDFBytes is the stricter ceiling applied before handing
	// bytes to the PDF parser.
	DefaultMaxPDFBytes = 2 * 1024 * 1024

	// DefaultMaxRedirects bounds the redirect chain.
	DefaultMaxRedirects = 3

	// DefaultUserAgent identifies Steenbok to upstream servers.
	DefaultUserAgent = "Steenbok-fetcher/1.0 (research; +https://github.com/koopa0/steenbok)"

	// maxURLLength rejects absurd URLs before parsing effort.
	maxURLLength = 2048

	// chunkSize is the streaming read granularity; a response is aborted
	// after at most ceiling+chunkSize bytes.
	chunkSize = 32 * 1024

	// redirectDrainLimit caps how much of a redirect response body is
	// drained before reconnecting.
	redirectDrainLimit = 64 * 1024
)

// blockedSchemes are rejected outright, before the http/https check.
var blockedSchemes = map[string]struct{}{
	"file":       {},
	"data":       {},
	"javascript": {},
	"vbscript":   {},
	"ftp":        {},
}

// Allowlist is the domain policy dependency.
type Allowlist interface {
	IsAllowed(hostname string) bool
}

// HostValidator resolves a hostname and rejects disallowed addresses.
type HostValidator interface {
	Validate(ctx context.Context, hostname string) error
}

// Waiter serializes request starts; *Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Extractor converts accepted bytes plus their declared content type into
// plain text. Treated as a black box by the fetch loop.
type Extractor func(body []byte, contentType, pageURL string) (string, error)

// Config holds the fetch policy knobs. Zero values fall back to the
// package defaults.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBytes     int64
	MaxPDFBytes  int64
	MaxRedirects int
	AllowHTTP    bool
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.MaxPDFBytes <= 0 {
		c.MaxPDFBytes = DefaultMaxPDFBytes
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = DefaultMaxRedirects
	}
	return c
}

// Request describes a single fetch. Per-call fields override the Fetcher
// configuration when set.
type Request struct {
	URL          string
	MaxBytes     int64
	MaxRedirects int
	AllowHTTP    bool
}

// Result is a successful fetch.
type Result struct {
	Body        []byte
	ContentType string
	FinalURL    string
	Status      int
	Elapsed     time.Duration
}

// Deps are the collaborators of a Fetcher.
type Deps struct {
	Allowlist Allowlist
	Hosts     HostValidator
	Limiter   Waiter
	Audit     audit.Recorder
	Logger    *slog.Logger

	// Client overrides the HTTP client; tests inject one with a custom
	// transport. Automatic redirect following is always disabled.
	Client *http.Client

	// Extract is required only for FetchText.
	Extract Extractor
}

// Fetcher runs the validated fetch loop. Safe for concurrent use; the
// only shared mutable state is the rate limiter.
type Fetcher struct {
	cfg       Config
	allowlist Allowlist
	hosts     HostValidator
	gate      *Gate
	limiter   Waiter
	audit     audit.Recorder
	logger    *slog.Logger
	client    *http.Client
	extract   Extractor
}

// New creates a Fetcher.
func New(cfg Config, deps Deps) (*Fetcher, error) {
	if deps.Allowlist == nil {
		return nil, fmt.Errorf("allowlist is required")
	}
	if deps.Hosts == nil {
		return nil, fmt.Errorf("host validator is required")
	}
	if deps.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	client := deps.Client
	if client == nil {
		client = &http.Client{}
	}
	// Redirects are followed manually so every hop is re-validated.
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Fetcher{
		cfg:       cfg.withDefaults(),
		allowlist: deps.Allowlist,
		hosts:     deps.Hosts,
		gate:      NewGate(),
		limiter:   deps.Limiter,
		audit:     deps.Audit,
		logger:    deps.Logger,
		client:    client,
		extract:   deps.Extract,
	}, nil
}

// Fetch retrieves the URL, following redirects manually. Every hop passes
// scheme, allowlist, and host validation before its request is issued and
// consumes its own rate-limit slot. Exactly one audit event is recorded
// per terminal outcome; for a rejection inside a redirect chain the event
// names the offending hop's URL.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	maxRedirects := req.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = f.cfg.MaxRedirects
	}
	allowHTTP := req.AllowHTTP || f.cfg.AllowHTTP

	currentURL := req.URL
	hops := 0

	for {
		u, ferr := f.validate(ctx, currentURL, allowHTTP)
		if ferr != nil {
			return nil, f.fail(ferr, start, 0)
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, f.fail(&Error{Reason: classify(err), URL: currentURL, Err: err}, start, 0)
		}

		resp, ferr := f.request(ctx, u)
		if ferr != nil {
			return nil, f.fail(ferr, start, 0)
		}

		if location := resp.Header.Get("Location"); resp.StatusCode >= 300 && resp.StatusCode < 400 && location != "" {
			// Drain before reconnecting so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, redirectDrainLimit))
			_ = resp.Body.Close()

			hops++
			if hops > maxRedirects {
				return nil, f.fail(&Error{Reason: ReasonTooManyRedirects, URL: currentURL, Status: resp.StatusCode}, start, 0)
			}
			next, err := u.Parse(location)
			if err != nil {
				return nil, f.fail(&Error{Reason: ReasonNetworkError, URL: currentURL, Err: fmt.Errorf("bad Location %q: %w", location, err)}, start, 0)
			}
			f.logger.Debug("following redirect", "from", currentURL, "to", next.String(), "hop", hops)
			currentURL = next.String()
			continue
		}

		return f.consume(resp, req, currentURL, start)
	}
}

// FetchText fetches the URL and runs the extractor over the result.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	if f.extract == nil {
		return "", fmt.Errorf("no extractor configured")
	}
	res, err := f.Fetch(ctx, Request{URL: rawURL})
	if err != nil {
		return "", err
	}
	text, err := f.extract(res.Body, res.ContentType, res.FinalURL)
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", res.FinalURL, err)
	}
	return text, nil
}

// validate runs the pre-request checks for one hop: URL shape, scheme,
// domain allowlist, and host validation. No network I/O besides DNS.
func (f *Fetcher) validate(ctx context.Context, rawURL string, allowHTTP bool) (*url.URL, *Error) {
	if len(rawURL) > maxURLLength {
		return nil, &Error{Reason: ReasonSchemeRejected, URL: rawURL, Err: fmt.Errorf("URL longer than %d bytes", maxURLLength)}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Reason: ReasonSchemeRejected, URL: rawURL, Err: err}
	}

	scheme := strings.ToLower(u.Scheme)
	if _, blocked := blockedSchemes[scheme]; blocked {
		return nil, &Error{Reason: ReasonSchemeRejected, URL: rawURL, Err: fmt.Errorf("blocked scheme %q", scheme)}
	}
	switch scheme {
	case "https":
	case "http":
		if !allowHTTP {
			return nil, &Error{Reason: ReasonSchemeRejected, URL: rawURL, Err: errors.New("plain http disabled")}
		}
	default:
		return nil, &Error{Reason: ReasonSchemeRejected, URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", scheme)}
	}

	host := u.Hostname()

	// IP-literal hosts are classified before the allowlist so a literal
	// like 169.254.169.254 reports as a blocked address rather than an
	// allowlist miss. A literal in a permitted range is still subject to
	// the allowlist like any other host: nothing is reachable by address
	// alone.
	if security.ParseIPLiteral(host) != nil {
		if ferr := f.validateHost(ctx, rawURL, host); ferr != nil {
			return nil, ferr
		}
		if !f.allowlist.IsAllowed(host) {
			return nil, &Error{Reason: ReasonAllowlistRejected, URL: rawURL, Err: fmt.Errorf("host %q not on allowlist", host)}
		}
		return u, nil
	}

	if !f.allowlist.IsAllowed(host) {
		return nil, &Error{Reason: ReasonAllowlistRejected, URL: rawURL, Err: fmt.Errorf("host %q not on allowlist", host)}
	}
	if ferr := f.validateHost(ctx, rawURL, host); ferr != nil {
		return nil, ferr
	}

	return u, nil
}

// validateHost runs the host validator under the per-hop wall-clock
// budget so a stalled resolver cannot hang the call indefinitely.
func (f *Fetcher) validateHost(ctx context.Context, rawURL, host string) *Error {
	vctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	err := f.hosts.Validate(vctx, host)
	if err == nil {
		return nil
	}
	reason := ReasonHostBlockedIP
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(vctx.Err(), context.DeadlineExceeded):
		reason = ReasonNetworkTimeout
	case errors.Is(err, security.ErrHostResolution):
		reason = ReasonHostResolutionFailed
	}
	return &Error{Reason: reason, URL: rawURL, Err: err}
}

// request issues one GET under the per-hop timeout. The response body
// deadline is enforced by the caller reading promptly; consume applies
// the same budget.
func (f *Fetcher) request(ctx context.Context, u *url.URL) (*http.Response, *Error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, &Error{Reason: ReasonNetworkError, URL: u.String(), Err: err}
	}
	httpReq.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, &Error{Reason: classify(err), URL: u.String(), Err: err}
	}

	// The cancel travels with the body: it fires when the body is closed.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// consume gates the content type, streams the body against the ceiling,
// and produces the terminal outcome for a non-redirect response.
func (f *Fetcher) consume(resp *http.Response, req Request, currentURL string, start time.Time) (*Result, error) {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, f.fail(&Error{Reason: ReasonUpstreamHTTPError, URL: currentURL, Status: resp.StatusCode}, start, 0)
	}

	contentType := resp.Header.Get("Content-Type")
	if !f.gate.Acceptable(contentType) {
		// Rejected on the declared type alone; no body bytes are read.
		return nil, f.fail(&Error{Reason: ReasonContentTypeRejected, URL: currentURL, Status: resp.StatusCode,
			Err: fmt.Errorf("content type %q", contentType)}, start, 0)
	}

	limit := f.ceiling(req, contentType)
	body, err := readCapped(resp.Body, limit)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return nil, f.fail(&Error{Reason: ReasonResponseTooLarge, URL: currentURL, Status: resp.StatusCode,
				Err: fmt.Errorf("body exceeds %d bytes", limit)}, start, int64(len(body)))
		}
		return nil, f.fail(&Error{Reason: classify(err), URL: currentURL, Status: resp.StatusCode, Err: err}, start, int64(len(body)))
	}

	elapsed := time.Since(start)
	f.audit.Record(audit.Event{
		Reason:  "success",
		URL:     currentURL,
		Status:  resp.StatusCode,
		Bytes:   int64(len(body)),
		Elapsed: elapsed,
	})
	f.logger.Info("fetch succeeded", "url", currentURL, "status", resp.StatusCode, "bytes", len(body))

	return &Result{
		Body:        body,
		ContentType: contentType,
		FinalURL:    currentURL,
		Status:      resp.StatusCode,
		Elapsed:     elapsed,
	}, nil
}

// ceiling picks the byte limit for the response: per-request override,
// then the stricter PDF cap, then the text default.
func (f *Fetcher) ceiling(req Request, contentType string) int64 {
	if req.MaxBytes > 0 {
		return req.MaxBytes
	}
	if IsPDF(contentType) {
		return f.cfg.MaxPDFBytes
	}
	return f.cfg.MaxBytes
}

// fail records the audit event for a terminal non-success outcome and
// returns the error.
func (f *Fetcher) fail(ferr *Error, start time.Time, bytesRead int64) error {
	f.audit.Record(audit.Event{
		Reason:  string(ferr.Reason),
		URL:     ferr.URL,
		Status:  ferr.Status,
		Bytes:   bytesRead,
		Elapsed: time.Since(start),
		Error:   errText(ferr.Err),
	})
	f.logger.Info("fetch rejected or failed", "url", ferr.URL, "reason", ferr.Reason)
	return ferr
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// classify maps transport errors onto the reason taxonomy.
func classify(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonNetworkTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ReasonNetworkTimeout
	}
	return ReasonNetworkError
}

var errTooLarge = errors.New("response too large")

// readCapped streams r in fixed chunks, failing with errTooLarge once the
// running total exceeds limit. It never buffers more than limit+chunkSize
// bytes; the partial body read so far is returned alongside the error.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	var body bytes.Buffer
	chunk := make([]byte, chunkSize)
	var total int64

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			total += int64(n)
			body.Write(chunk[:n])
			if total > limit {
				return body.Bytes(), errTooLarge
			}
		}
		if err == io.EOF {
			return body.Bytes(), nil
		}
		if err != nil {
			return body.Bytes(), err
		}
	}
}

// cancelOnClose ties a context cancel func to a response body so the
// per-hop timeout is released exactly when the body is done.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
