package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info").With("lead_id", "abc")
	logger.Debug("hidden")
	logger.Info("lead created", "area", "Koramangala")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "lead created" {
		t.Fatalf("unexpected msg %v", entry["msg"])
	}
	if entry["lead_id"] != "abc" || entry["area"] != "Koramangala" {
		t.Fatalf("missing attributes: %v", entry)
	}
	if entry["service"] != "inlane-funnel" {
		t.Fatalf("expected service attribute, got %v", entry["service"])
	}
}

func TestNilLoggerWith(t *testing.T) {
	var l *Logger
	if l.With("k", "v") == nil {
		t.Fatal("expected a usable logger from nil receiver")
	}
}
