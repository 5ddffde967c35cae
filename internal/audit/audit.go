// Package audit emits the append-only fetch audit trail.
//
// Every fetch attempt produces exactly one event per terminal outcome,
// including one per rejected hop inside a redirect chain. Events share a
// single shape regardless of outcome so the trail stays greppable; only
// the reason and the optional fields differ.
package audit

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// tsFormat is ISO-8601 UTC with millisecond precision.
const tsFormat = "2006-01-02T15:04:05.000Z"

// Event is one terminal fetch outcome.
type Event struct {
	// ID is a unique event identifier for cross-referencing.
	ID string
	// Time is when the outcome was reached; stamped by the recorder if zero.
	Time time.Time
	// Reason names the outcome: "success" or one of the fetch reason codes.
	Reason string
	// URL is the URL the outcome applies to (the hop URL for per-hop
	// rejections, not the origin).
	URL string
	// Status is the upstream HTTP status, if one was received.
	Status int
	// Bytes is the number of body bytes read, for outcomes that read any.
	Bytes int64
	// Elapsed is the wall-clock duration of the attempt.
	Elapsed time.Duration
	// Error is the server-side failure detail. Never sent to callers.
	Error string
}

// Recorder receives audit events.
type Recorder interface {
	Record(Event)
}

// Log is a Recorder writing one JSON line per event.
type Log struct {
	logger *slog.Logger
}

// NewLog creates an audit log writing to w.
func NewLog(w io.Writer) *Log {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				// Uniform ISO-8601 UTC millisecond timestamps.
				return slog.String("ts", a.Value.Time().UTC().Format(tsFormat))
			case slog.MessageKey, slog.LevelKey:
				// Every line is the same kind of record; the reason
				// field carries the signal.
				return slog.Attr{}
			}
			return a
		},
	})
	return &Log{logger: slog.New(handler)}
}

// Record writes the event. Optional fields (status, bytes, elapsed, error)
// are omitted when unset so rejection and success lines stay compact.
func (l *Log) Record(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	r := slog.NewRecord(ev.Time, slog.LevelInfo, "", 0)
	r.Add("id", ev.ID, "reason", ev.Reason, "url", ev.URL)
	if ev.Status != 0 {
		r.Add("status", ev.Status)
	}
	if ev.Bytes != 0 {
		r.Add("bytes", ev.Bytes)
	}
	if ev.Elapsed != 0 {
		r.Add("elapsed_ms", ev.Elapsed.Milliseconds())
	}
	if ev.Error != "" {
		r.Add("error", ev.Error)
	}
	_ = l.logger.Handler().Handle(context.Background(), r)
}

// Nop is a Recorder that discards events. Tests only.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(Event) {}
