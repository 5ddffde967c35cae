package fetch

import "fmt"

// Reason classifies a terminal non-success outcome.
type Reason string

// Reason codes, one per terminal branch of the fetch loop. None are
// retried at this layer; retry policy belongs to the caller.
const (
	ReasonSchemeRejected       Reason = "scheme_rejected"
	ReasonAllowlistRejected    Reason = "allowlist_rejected"
	ReasonHostResolutionFailed Reason = "host_resolution_failed"
	ReasonHostBlockedIP        Reason = "host_blocked_ip"
	ReasonTooManyRedirects     Reason = "too_many_redirects"
	ReasonContentTypeRejected  Reason = "content_type_rejected"
	ReasonResponseTooLarge     Reason = "response_too_large"
	ReasonNetworkTimeout       Reason = "network_timeout"
	ReasonNetworkError         Reason = "network_error"
	ReasonUpstreamHTTPError    Reason = "upstream_http_error"
)

// Error is a terminal fetch outcome other than success. URL is the URL the
// outcome applies to, which for redirect chains is the offending hop, not
// necessarily the origin.
type Error struct {
	Reason Reason
	URL    string
	Status int // upstream HTTP status, if one was received
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Reason, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Rejected reports whether the outcome is a policy rejection (the request
// was refused before or without consuming the body) as opposed to a
// network or upstream failure.
func (e *Error) Rejected() bool {
	switch e.Reason {
	case ReasonSchemeRejected, ReasonAllowlistRejected, ReasonHostBlockedIP, ReasonContentTypeRejected:
		return true
	}
	return false
}
