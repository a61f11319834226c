package logging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// EventContext correlates log lines without a tracing backend. Each context
// has a unique EventID; children point back at their parent through
// OriginEventID, so the chain of a line can be walked to its root.
//
// Used for background work that has no request span, such as applying a
// reloaded configuration.
type EventContext struct {
	// EventID is unique per context.
	EventID uuid.UUID

	// OriginEventID is the parent's EventID; invalid for a root.
	OriginEventID uuid.NullUUID

	// Name describes the operation.
	Name string

	backend  Backend
	level    slog.Level
	hasLevel bool
	attrs    []slog.Attr
}

// EventOption configures an EventContext.
type EventOption func(*EventContext)

// WithLevel sets the context's own minimum level. Children inherit it.
func WithLevel(level slog.Level) EventOption {
	return func(e *EventContext) {
		e.level = level
		e.hasLevel = true
	}
}

// WithEventAttrs adds fields to every line of the context and its children.
func WithEventAttrs(args ...any) EventOption {
	return func(e *EventContext) {
		e.attrs = append(e.attrs, argsToAttrs(args)...)
	}
}

// NewEventContext creates a root context writing to b.
func NewEventContext(b Backend, name string, opts ...EventOption) *EventContext {
	e := &EventContext{
		EventID: uuid.New(),
		Name:    name,
		backend: b,
		level:   slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateChild returns a context for a sub-operation. It inherits the
// parent's level and fields unless opts override them.
func (e *EventContext) CreateChild(name string, opts ...EventOption) *EventContext {
	child := &EventContext{
		EventID:       uuid.New(),
		OriginEventID: uuid.NullUUID{UUID: e.EventID, Valid: true},
		Name:          name,
		backend:       e.backend,
		level:         e.level,
		hasLevel:      e.hasLevel,
		attrs:         append([]slog.Attr(nil), e.attrs...),
	}
	for _, opt := range opts {
		opt(child)
	}
	return child
}

// IsRoot reports whether the context has no parent.
func (e *EventContext) IsRoot() bool {
	return !e.OriginEventID.Valid
}

// Level returns the context's level and whether one was set explicitly,
// on this context or an ancestor.
func (e *EventContext) Level() (slog.Level, bool) {
	return e.level, e.hasLevel
}

// ShouldLog reports whether a line at level would be written.
//
// An explicit context level is compared numerically. Otherwise the backend
// decides when it can, and the default info threshold applies when it
// cannot.
func (e *EventContext) ShouldLog(ctx context.Context, level slog.Level) bool {
	if e.hasLevel {
		return level >= e.level
	}
	if le, ok := e.backend.(LevelEnabler); ok {
		return le.Enabled(ctx, level)
	}
	return level >= e.level
}

// Log writes msg if level passes ShouldLog.
func (e *EventContext) Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !e.ShouldLog(ctx, level) {
		return
	}
	e.emit(ctx, level, msg, argsToAttrs(args))
}

// LogLazy calls produce only if level passes ShouldLog.
func (e *EventContext) LogLazy(ctx context.Context, level slog.Level, produce func() (string, []any)) {
	if produce == nil || !e.ShouldLog(ctx, level) {
		return
	}
	msg, args := produce()
	e.emit(ctx, level, msg, argsToAttrs(args))
}

// Debug logs at debug level.
func (e *EventContext) Debug(msg string, args ...any) {
	e.Log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info logs at info level.
func (e *EventContext) Info(msg string, args ...any) {
	e.Log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn logs at warn level.
func (e *EventContext) Warn(msg string, args ...any) {
	e.Log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error logs at error level.
func (e *EventContext) Error(msg string, args ...any) {
	e.Log(context.Background(), slog.LevelError, msg, args...)
}

func (e *EventContext) emit(ctx context.Context, level slog.Level, msg string, extra []slog.Attr) {
	if e.backend == nil {
		return
	}
	attrs := make([]slog.Attr, 0, 3+len(e.attrs)+len(extra))
	attrs = append(attrs, slog.String("event_id", e.EventID.String()))
	if e.OriginEventID.Valid {
		attrs = append(attrs, slog.String("origin_event_id", e.OriginEventID.UUID.String()))
	}
	if e.Name != "" {
		attrs = append(attrs, slog.String("event", e.Name))
	}
	attrs = append(attrs, e.attrs...)
	attrs = append(attrs, extra...)
	e.backend.Log(ctx, level, msg, attrs...)
}
