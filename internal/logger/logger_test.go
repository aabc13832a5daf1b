package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInitWriter_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	logger := InitWriter(&buf, "test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Info("hello", "symbol", "BTC")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if rec["service"] != "test-service" || rec["symbol"] != "BTC" {
		t.Errorf("unexpected record: %v", rec)
	}

	buf.Reset()
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug must be filtered at info level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestRunID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if rid := RunID(ctx); rid != "" {
		t.Errorf("expected empty run id, got %q", rid)
	}

	ctx = WithRunID(ctx, "run-123")
	if rid := RunID(ctx); rid != "run-123" {
		t.Errorf("expected 'run-123', got %q", rid)
	}
}

func TestGenerateRunID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	rid := GenerateRunID("BTC-USD", ts)

	if !strings.HasPrefix(rid, "BTC-USD-") {
		t.Errorf("expected run id to start with 'BTC-USD-', got %s", rid)
	}
	if !strings.Contains(rid, "123456789") {
		t.Errorf("expected run id to contain nanoseconds, got %s", rid)
	}
}

func TestLogWithRun(t *testing.T) {
	ctx := context.Background()

	if attrs := LogWithRun(ctx); attrs != nil {
		t.Errorf("expected nil attrs when no run id, got %v", attrs)
	}

	ctx = WithRunID(ctx, "abc-123")
	if attrs := LogWithRun(ctx); len(attrs) != 1 {
		t.Fatalf("expected one attr with run id set, got %v", attrs)
	}
}
