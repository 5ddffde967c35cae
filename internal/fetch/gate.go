package fetch

import "strings"

// Gate decides whether a declared Content-Type may be fetched.
//
// Two ordered stages: a high-risk blocklist, then an explicit allowlist,
// then default deny. The blocklist runs first so a server declaring e.g.
// "application/msword; charset=text/html" cannot smuggle a dangerous type
// past an allowlist substring.
type Gate struct {
	blocked []string
	allowed []string
}

// defaultBlocked covers office documents, archives, SVG, executables, and
// script types. Matched as substrings of the normalized header value.
var defaultBlocked = []string{
	"application/msword",
	"application/vnd.ms-",
	"application/vnd.openxmlformats-officedocument",
	"application/rtf",
	"application/zip",
	"application/x-rar",
	"application/x-7z",
	"application/gzip",
	"application/x-tar",
	"image/svg+xml",
	"application/javascript",
	"text/javascript",
	"application/x-msdownload",
	"application/x-executable",
	"application/octet-stream",
}

// defaultAllowed are the media types the extractor can handle. Matched as
// prefixes of the media type (parameters like charset are ignored).
var defaultAllowed = []string{
	"text/html",
	"text/plain",
	"application/xhtml+xml",
	"application/pdf",
}

// NewGate creates a gate with the default policy.
func NewGate() *Gate {
	return &Gate{blocked: defaultBlocked, allowed: defaultAllowed}
}

// Acceptable reports whether the declared content type passes the gate.
// An empty declaration is denied: a server that won't say what it is
// sending doesn't get parsed.
func (g *Gate) Acceptable(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" {
		return false
	}

	for _, b := range g.blocked {
		if strings.Contains(ct, b) {
			return false
		}
	}

	mediaType := ct
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	for _, a := range g.allowed {
		if strings.HasPrefix(mediaType, a) {
			return true
		}
	}
	return false
}

// IsPDF reports whether the declared type is a PDF, which carries a
// stricter byte ceiling than text formats.
func IsPDF(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "application/pdf")
}
