package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/koopa0/steenbok/internal/fetch"
)

// fetchHandler serves GET /fetch?url=<encoded>.
type fetchHandler struct {
	fetcher TextFetcher
	logger  *slog.Logger
}

// fetch runs a safe fetch and returns the extracted text as plain UTF-8.
//
// Status mapping: policy rejection → 403, fetch or extraction failure →
// 502, missing parameter → 400. The body never says which defense fired;
// that detail is in the audit trail only.
func (h *fetchHandler) fetch(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "missing url", h.logger)
		return
	}

	text, err := h.fetcher.FetchText(r.Context(), rawURL)
	if err != nil {
		var ferr *fetch.Error
		if errors.As(err, &ferr) && ferr.Rejected() {
			writeError(w, http.StatusForbidden, "URL not allowed", h.logger)
			return
		}
		writeError(w, http.StatusBadGateway, "fetch failed", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := w.Write([]byte(text)); err != nil {
		h.logger.Debug("writing fetch response", "error", err)
	}
}
