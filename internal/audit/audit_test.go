package audit

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestLogRecordShape(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)

	l.Record(Event{
		Reason:  "success",
		URL:     "https://en.wikipedia.org/wiki/Steenbok",
		Status:  200,
		Bytes:   4096,
		Elapsed: 1234 * time.Millisecond,
	})

	line := strings.TrimSpace(buf.String())
	var got map[string]any
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("audit line is not JSON: %v\n%s", err, line)
	}

	if got["reason"] != "success" {
		t.Errorf("reason = %v, want success", got["reason"])
	}
	if got["url"] != "https://en.wikipedia.org/wiki/Steenbok" {
		t.Errorf("url = %v", got["url"])
	}
	if got["status"] != float64(200) {
		t.Errorf("status = %v, want 200", got["status"])
	}
	if got["bytes"] != float64(4096) {
		t.Errorf("bytes = %v, want 4096", got["bytes"])
	}
	if got["elapsed_ms"] != float64(1234) {
		t.Errorf("elapsed_ms = %v, want 1234", got["elapsed_ms"])
	}
	if id, _ := got["id"].(string); id == "" {
		t.Error("id missing")
	}
}

func TestLogTimestampFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)

	// Fixed non-UTC time: output must be converted to UTC with ms precision.
	loc := time.FixedZone("UTC+8", 8*3600)
	l.Record(Event{
		Time:   time.Date(2026, 8, 25, 20, 30, 45, 123_000_000, loc),
		Reason: "host_blocked_ip",
		URL:    "http://169.254.169.254/latest/meta-data/",
	})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	ts, _ := got["ts"].(string)
	if ts != "2026-08-25T12:30:45.123Z" {
		t.Errorf("ts = %q, want 2026-08-25T12:30:45.123Z", ts)
	}
}

func TestLogTimestampAlwaysMilliseconds(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)
	l.Record(Event{Reason: "network_error", URL: "https://arxiv.org/"})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	ts, _ := got["ts"].(string)
	matched, err := regexp.MatchString(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, ts)
	if err != nil {
		t.Fatal(err)
	}
	if !matched {
		t.Errorf("ts %q is not ISO-8601 UTC with milliseconds", ts)
	}
}

func TestLogOptionalFieldsOmitted(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)
	l.Record(Event{Reason: "allowlist_rejected", URL: "https://example.com/"})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"status", "bytes", "elapsed_ms", "error", "msg", "level"} {
		if _, ok := got[key]; ok {
			t.Errorf("unset field %q present in record: %v", key, got)
		}
	}
}

func TestLogOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)
	for range 3 {
		l.Record(Event{Reason: "success", URL: "https://arxiv.org/abs/2401.12345"})
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("got %d lines, want 3", len(lines))
	}
}
