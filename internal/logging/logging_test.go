package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("emits json by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := New(&buf, "info", "")
		logger.Info("hello", "meeting_id", "m-1")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
		}
		if entry["app"] != "sirius-meet" {
			t.Fatalf("expected app attribute, got %v", entry["app"])
		}
		if entry["meeting_id"] != "m-1" {
			t.Fatalf("expected meeting_id attribute, got %v", entry["meeting_id"])
		}
	})

	t.Run("honours text format and level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := New(&buf, "warn", "TEXT")
		logger.Info("dropped")
		logger.Warn("kept")

		out := buf.String()
		if strings.Contains(out, "dropped") {
			t.Fatalf("expected info entry to be filtered, got %q", out)
		}
		if !strings.Contains(out, "msg=kept") {
			t.Fatalf("expected text handler output, got %q", out)
		}
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q): expected %v, got %v", input, want, got)
		}
	}
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) != nil {
		t.Fatalf("expected no logger on empty context")
	}

	logger := slog.Default()
	ctx := ContextWithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("expected logger to round-trip through context")
	}
	if ContextWithLogger(ctx, nil) != ctx {
		t.Fatalf("expected nil logger to leave context untouched")
	}
}
