package api

import (
	"log/slog"
	"net/http"
)

// health returns a liveness probe handler. Responds 200 OK with
// {"status":"ok"}.
func health(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}
