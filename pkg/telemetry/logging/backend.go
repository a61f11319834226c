package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Backend is the minimal logging capability the correlator needs: write one
// record. Filtering is the caller's job; Log itself always writes.
type Backend interface {
	Log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr)
}

// LevelEnabler is implemented by backends that know their own level.
type LevelEnabler interface {
	Enabled(ctx context.Context, level slog.Level) bool
}

// LevelSetter is implemented by backends whose level can change at runtime.
type LevelSetter interface {
	SetLevel(level slog.Level)
}

// LeveledBackend is a Backend that can answer level checks.
type LeveledBackend interface {
	Backend
	LevelEnabler
}

// Leveled returns b unchanged when it already answers level checks, and
// otherwise wraps it with a tracker that compares levels numerically,
// starting at fallback.
func Leveled(b Backend, fallback slog.Level) LeveledBackend {
	if lb, ok := b.(LeveledBackend); ok {
		return lb
	}
	t := &levelTracker{next: b}
	t.level.Store(int64(fallback))
	return t
}

// levelTracker synthesizes level support for backends without it.
type levelTracker struct {
	next  Backend
	level atomic.Int64
}

func (t *levelTracker) Log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	t.next.Log(ctx, level, msg, attrs...)
}

func (t *levelTracker) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.Level(t.level.Load())
}

func (t *levelTracker) SetLevel(level slog.Level) {
	t.level.Store(int64(level))
}

// PlainBackend writes one line per record:
//
//	2025-01-02T15:04:05.000Z INFO request completed trace_id=4bf9... status=200
//
// It has no notion of level; wrap it with Leveled.
type PlainBackend struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewPlainBackend returns a backend writing to w.
func NewPlainBackend(w io.Writer) *PlainBackend {
	return &PlainBackend{w: w, now: time.Now}
}

// Log writes the record as a single line.
func (p *PlainBackend) Log(_ context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	var b strings.Builder
	b.WriteString(p.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	b.WriteByte(' ')
	b.WriteString(level.String())
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, a := range attrs {
		writeAttr(&b, "", a)
	}
	b.WriteByte('\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.w, b.String())
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	s := v.String()
	if strings.ContainsAny(s, " \t\n\"=") {
		s = fmt.Sprintf("%q", s)
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(s)
}

// argsToAttrs converts alternating key/value arguments, as accepted by
// slog.Logger.Info, into attributes.
func argsToAttrs(args []any) []slog.Attr {
	if len(args) == 0 {
		return nil
	}
	return slog.Group("", args...).Value.Group()
}
