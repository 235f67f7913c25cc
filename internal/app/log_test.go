package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestKeepHandler(t *testing.T) {
	t.Run("tab separated record", func(t *testing.T) {
		var buf bytes.Buffer
		h := &keepHandler{w: &buf}

		r := slog.NewRecord(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), slog.LevelInfo, "file ingested", 0)
		r.AddAttrs(slog.String("path", "2024-01-15/photos/cat.jpg"), slog.Int64("size", 42))

		if err := h.Handle(context.Background(), r); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}

		line := strings.TrimSuffix(buf.String(), "\n")
		fields := strings.Split(line, "\t")
		if len(fields) != 5 {
			t.Fatalf("got %d fields, want 5: %q", len(fields), line)
		}
		if fields[0] != "2024-01-15T10:30:00Z" {
			t.Errorf("timestamp = %q", fields[0])
		}
		if fields[1] != "INFO" {
			t.Errorf("level = %q", fields[1])
		}
		if fields[2] != "file ingested" {
			t.Errorf("message = %q", fields[2])
		}
		if fields[3] != "path=2024-01-15/photos/cat.jpg" {
			t.Errorf("attr = %q", fields[3])
		}
		if fields[4] != "size=42" {
			t.Errorf("attr = %q", fields[4])
		}
	})

	t.Run("with attrs prepends context", func(t *testing.T) {
		var buf bytes.Buffer
		var h slog.Handler = &keepHandler{w: &buf}
		h = h.WithAttrs([]slog.Attr{slog.String("component", "sync")})

		r := slog.NewRecord(time.Now(), slog.LevelWarn, "queue full", 0)
		if err := h.Handle(context.Background(), r); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}

		if !strings.Contains(buf.String(), "\tcomponent=sync") {
			t.Errorf("pre-set attr missing from %q", buf.String())
		}
	})

	t.Run("all levels enabled", func(t *testing.T) {
		h := &keepHandler{w: &bytes.Buffer{}}
		for _, lvl := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
			if !h.Enabled(context.Background(), lvl) {
				t.Errorf("Enabled(%v) = false", lvl)
			}
		}
	})
}
