package tracing

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/correlator/pkg/telemetry/guard"
	"mercator-hq/correlator/pkg/telemetry/identity"
)

// ErrSpanAlreadyFinished is returned by TryFinish on a finished span.
// Every other mutator treats a finished span as a silent no-op.
var ErrSpanAlreadyFinished = errors.New("span already finished")

// Kind describes the relationship between a span and its callers.
type Kind int

const (
	KindInternal Kind = iota
	KindServer
	KindClient
	KindProducer
	KindConsumer
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindProducer:
		return "producer"
	case KindConsumer:
		return "consumer"
	default:
		return "internal"
	}
}

// ParseKind maps a kind name to a Kind; unknown names are KindInternal.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "server":
		return KindServer
	case "client":
		return KindClient
	case "producer":
		return KindProducer
	case "consumer":
		return KindConsumer
	default:
		return KindInternal
	}
}

func (k Kind) otel() trace.SpanKind {
	switch k {
	case KindServer:
		return trace.SpanKindServer
	case KindClient:
		return trace.SpanKindClient
	case KindProducer:
		return trace.SpanKindProducer
	case KindConsumer:
		return trace.SpanKindConsumer
	default:
		return trace.SpanKindInternal
	}
}

// StatusCode is the outcome recorded on a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Status is a span status with an optional message.
type Status struct {
	Code    StatusCode
	Message string
}

// Event is a timestamped annotation on a span.
type Event struct {
	Name       string
	Attributes []Attribute
	Time       time.Time
}

// Span is one timed unit of work. All methods are safe for concurrent use;
// once finished, mutators return the span unchanged.
type Span struct {
	mu       sync.Mutex
	name     string
	kind     Kind
	id       identity.TraceIdentity
	attrs    []Attribute
	status   Status
	events   []Event
	start    time.Time
	end      time.Time
	finished bool

	otel     trace.Span
	reporter guard.Reporter
	now      func() time.Time
}

// Name returns the span name.
func (s *Span) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Kind returns the span kind.
func (s *Span) Kind() Kind { return s.kind }

// Identity returns the span's trace identity.
func (s *Span) Identity() identity.TraceIdentity { return s.id }

// StartTime returns when the span started.
func (s *Span) StartTime() time.Time { return s.start }

// EndTime returns when the span finished, and false if it has not.
func (s *Span) EndTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end, s.finished
}

// Finished reports whether Finish has been called.
func (s *Span) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Elapsed returns the time since start, or the total duration once finished.
func (s *Span) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return s.end.Sub(s.start)
	}
	return s.now().Sub(s.start)
}

// Attributes returns a copy of the attributes in insertion order.
func (s *Span) Attributes() []Attribute {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attribute(nil), s.attrs...)
}

// Attribute returns the value recorded for key.
func (s *Span) Attribute(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return nil, false
}

// Status returns the current status.
func (s *Span) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Events returns a copy of the recorded events in order.
func (s *Span) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	for i, e := range s.events {
		out[i] = Event{Name: e.Name, Attributes: append([]Attribute(nil), e.Attributes...), Time: e.Time}
	}
	return out
}

// SetName renames the span. Empty names are ignored.
func (s *Span) SetName(name string) *Span {
	if name == "" {
		return s
	}

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return s
	}
	s.name = name
	s.mu.Unlock()

	s.mirror("set_name", func() { s.otel.SetName(name) })
	return s
}

// SetTag sets a single attribute.
func (s *Span) SetTag(key string, value any) *Span {
	return s.SetAttributes(Any(key, value))
}

// SetAttributes sets attributes. An existing key keeps its position and
// takes the new value.
func (s *Span) SetAttributes(attrs ...Attribute) *Span {
	attrs = normalizeAll(attrs)
	if len(attrs) == 0 {
		return s
	}

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return s
	}
	for _, a := range attrs {
		s.setLocked(a)
	}
	s.mu.Unlock()

	s.mirror("set_attributes", func() { s.otel.SetAttributes(keyValues(attrs)...) })
	return s
}

func (s *Span) setLocked(a Attribute) {
	for i := range s.attrs {
		if s.attrs[i].Key == a.Key {
			s.attrs[i].Value = a.Value
			return
		}
	}
	s.attrs = append(s.attrs, a)
}

// SetStatus sets the span status. The message is kept only for StatusError.
func (s *Span) SetStatus(code StatusCode, message string) *Span {
	if code != StatusError {
		message = ""
	}

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return s
	}
	s.status = Status{Code: code, Message: message}
	s.mu.Unlock()

	s.mirror("set_status", func() {
		switch code {
		case StatusOK:
			s.otel.SetStatus(codes.Ok, "")
		case StatusError:
			s.otel.SetStatus(codes.Error, message)
		default:
			s.otel.SetStatus(codes.Unset, "")
		}
	})
	return s
}

// AddEvent appends a named event stamped with the current time.
func (s *Span) AddEvent(name string, attrs ...Attribute) *Span {
	attrs = normalizeAll(attrs)

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return s
	}
	ts := s.now()
	s.events = append(s.events, Event{Name: name, Attributes: attrs, Time: ts})
	s.mu.Unlock()

	s.mirror("add_event", func() {
		s.otel.AddEvent(name, trace.WithTimestamp(ts), trace.WithAttributes(keyValues(attrs)...))
	})
	return s
}

// StackTracer is implemented by errors that captured their own stack.
type StackTracer interface {
	StackTrace() string
}

// RecordException adds an "exception" event describing err. It does not
// change the span status; callers decide whether the span failed.
func (s *Span) RecordException(err error) *Span {
	if err == nil {
		return s
	}

	stack := ""
	var st StackTracer
	if errors.As(err, &st) {
		stack = st.StackTrace()
	} else {
		stack = string(debug.Stack())
	}
	attrs := []Attribute{
		String(AttrExceptionMessage, err.Error()),
		String(AttrExceptionType, ErrorType(err)),
		String(AttrExceptionStacktrace, stack),
	}

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return s
	}
	s.events = append(s.events, Event{Name: "exception", Attributes: attrs, Time: s.now()})
	s.mu.Unlock()

	s.mirror("record_error", func() { s.otel.RecordError(err, trace.WithStackTrace(true)) })
	return s
}

// ErrorType returns the Go type name of err, e.g. "*errors.errorString".
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%T", err)
}

// Finish records the end time. Later calls are no-ops.
func (s *Span) Finish() {
	_ = s.TryFinish()
}

// TryFinish is Finish that reports ErrSpanAlreadyFinished on repeat calls.
func (s *Span) TryFinish() error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return ErrSpanAlreadyFinished
	}
	s.finished = true
	s.end = s.now()
	end := s.end
	s.mu.Unlock()

	s.mirror("end", func() { s.otel.End(trace.WithTimestamp(end)) })
	return nil
}

// mirror forwards a mutation to the backend span. Backend panics are
// reported, never propagated to the instrumented code.
func (s *Span) mirror(op string, fn func()) {
	if s.otel == nil {
		return
	}
	guard.Run(s.reporter, "tracing", op, fn)
}
