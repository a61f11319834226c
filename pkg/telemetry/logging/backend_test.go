package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordingBackend keeps every record and has no level support.
type recordingBackend struct {
	mu      sync.Mutex
	records []record
}

type record struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

func (b *recordingBackend) Log(_ context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	r := record{level: level, msg: msg, attrs: make(map[string]any, len(attrs))}
	for _, a := range attrs {
		r.attrs[a.Key] = a.Value.Resolve().Any()
	}
	b.mu.Lock()
	b.records = append(b.records, r)
	b.mu.Unlock()
}

func (b *recordingBackend) all() []record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]record(nil), b.records...)
}

func (b *recordingBackend) last(t *testing.T) record {
	t.Helper()
	all := b.all()
	if len(all) == 0 {
		t.Fatal("no records")
	}
	return all[len(all)-1]
}

// leveledRecordingBackend answers level checks itself.
type leveledRecordingBackend struct {
	recordingBackend
	min slog.Level
}

func (b *leveledRecordingBackend) Enabled(_ context.Context, level slog.Level) bool {
	return level >= b.min
}

func TestLeveled(t *testing.T) {
	t.Run("wraps backend without level support", func(t *testing.T) {
		rb := &recordingBackend{}
		lb := Leveled(rb, slog.LevelWarn)

		if lb.Enabled(context.Background(), slog.LevelInfo) {
			t.Error("Enabled(info) = true, want false at warn")
		}
		if !lb.Enabled(context.Background(), slog.LevelError) {
			t.Error("Enabled(error) = false, want true at warn")
		}

		lb.(LevelSetter).SetLevel(slog.LevelDebug)
		if !lb.Enabled(context.Background(), slog.LevelDebug) {
			t.Error("Enabled(debug) = false after SetLevel(debug)")
		}

		lb.Log(context.Background(), slog.LevelInfo, "passthrough")
		if got := rb.last(t).msg; got != "passthrough" {
			t.Errorf("msg = %q, want passthrough", got)
		}
	})

	t.Run("keeps backend with level support", func(t *testing.T) {
		b := &leveledRecordingBackend{min: slog.LevelError}
		if got := Leveled(b, slog.LevelDebug); got != LeveledBackend(b) {
			t.Errorf("Leveled() = %T, want the backend itself", got)
		}
	})
}

func TestPlainBackend(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPlainBackend(buf)
	p.now = func() time.Time { return time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC) }

	p.Log(context.Background(), slog.LevelInfo, "request completed",
		slog.String("trace_id", "abc"),
		slog.Int("status", 200),
		slog.String("route", "GET /users"),
		slog.Group("res", slog.Int64("rss", 42)),
	)

	want := `2025-01-02T15:04:05.000Z INFO request completed trace_id=abc status=200 route="GET /users" res.rss=42` + "\n"
	if got := buf.String(); got != want {
		t.Errorf("PlainBackend output =\n%q\nwant\n%q", got, want)
	}
}

func TestZapBackend(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	z := NewZapBackend(zap.New(core), nil)

	if z.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = true for info core")
	}
	if !z.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("Enabled(warn) = false for info core")
	}

	z.Log(context.Background(), slog.LevelWarn, "slow request",
		slog.String("trace_id", "abc"),
		slog.Int("status", 200),
		slog.Group("res", slog.Float64("cpu_ms", 1.5)),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", e.Level)
	}
	if e.Message != "slow request" {
		t.Errorf("message = %q", e.Message)
	}
	fields := e.ContextMap()
	if fields["trace_id"] != "abc" {
		t.Errorf("trace_id = %v", fields["trace_id"])
	}
	if fields["status"] != int64(200) {
		t.Errorf("status = %v (%T)", fields["status"], fields["status"])
	}
	if fields["res.cpu_ms"] != 1.5 {
		t.Errorf("res.cpu_ms = %v", fields["res.cpu_ms"])
	}
}

func TestZapBackend_Redaction(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	z := NewZapBackend(zap.New(core), NewRedactor(nil))

	z.Log(context.Background(), slog.LevelInfo, "login user@example.com", slog.String("password", "hunter2secret"))

	e := logs.All()[0]
	if strings.Contains(e.Message, "user@example.com") {
		t.Errorf("message not redacted: %q", e.Message)
	}
	if e.ContextMap()["password"] != "hunt***" {
		t.Errorf("password = %v", e.ContextMap()["password"])
	}
}

func TestZapLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want zapcore.Level
	}{
		{slog.LevelDebug, zapcore.DebugLevel},
		{slog.LevelDebug + 2, zapcore.DebugLevel},
		{slog.LevelInfo, zapcore.InfoLevel},
		{slog.LevelWarn, zapcore.WarnLevel},
		{slog.LevelError, zapcore.ErrorLevel},
		{slog.LevelError + 4, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		if got := zapLevel(tt.in); got != tt.want {
			t.Errorf("zapLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
