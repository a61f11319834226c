package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/oklog/ulid/v2"

	"mercator-hq/correlator/pkg/telemetry/guard"
	"mercator-hq/correlator/pkg/telemetry/logging"
	"mercator-hq/correlator/pkg/telemetry/metrics"
	"mercator-hq/correlator/pkg/telemetry/propagation"
	"mercator-hq/correlator/pkg/telemetry/resources"
	"mercator-hq/correlator/pkg/telemetry/tracing"
)

// HeaderRequestID carries the request id on responses.
const HeaderRequestID = "x-request-id"

// maxInboundRequestID bounds request ids accepted from clients.
const maxInboundRequestID = 128

// ErrInvalidExclusion is returned for exclusion patterns that are not valid
// absolute path globs.
var ErrInvalidExclusion = errors.New("invalid exclusion pattern")

// RequestSnapshot is what the HTTP adapter knows when a request arrives.
type RequestSnapshot struct {
	Method string

	// URL is the request target as received, e.g. "/users?id=1".
	URL string

	// Path is matched against the exclusion list. Empty means the path
	// of URL.
	Path string

	Headers   propagation.Getter
	IP        string
	UserAgent string

	// ContentLength is the request body size, or -1 when unknown.
	ContentLength int64
}

func (s RequestSnapshot) path() string {
	if s.Path != "" {
		return s.Path
	}
	if u, err := url.Parse(s.URL); err == nil && u.Path != "" {
		return u.Path
	}
	p, _, _ := strings.Cut(s.URL, "?")
	return p
}

// Options wires an Orchestrator to its collaborators.
type Options struct {
	// Correlator binds request loggers and owns the tracer. Required.
	Correlator *logging.Correlator

	// Extractor defaults to propagation.DefaultConfig.
	Extractor *propagation.Extractor

	// Injector defaults to x-trace-id only.
	Injector *propagation.Injector

	// Sampler defaults to a process sampler.
	Sampler resources.Sampler

	// Metrics is optional. Nil records no metrics.
	Metrics *metrics.HTTPMetrics

	// Exclusions are doublestar globs over the URL path.
	Exclusions []string

	// AutoSpanEvents mirrors every request log line onto the span.
	AutoSpanEvents bool

	Reporter guard.Reporter
}

// Orchestrator drives every request through the telemetry lifecycle.
// It is safe for concurrent use; all per-request state lives in Request.
type Orchestrator struct {
	correlator     *logging.Correlator
	tracer         *tracing.Tracer
	extractor      *propagation.Extractor
	injector       *propagation.Injector
	sampler        resources.Sampler
	metrics        *metrics.HTTPMetrics
	autoSpanEvents bool
	reporter       guard.Reporter

	exclusions atomic.Pointer[[]string]
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Correlator == nil {
		return nil, errors.New("lifecycle: correlator is required")
	}

	o := &Orchestrator{
		correlator:     opts.Correlator,
		tracer:         opts.Correlator.Tracer(),
		extractor:      opts.Extractor,
		injector:       opts.Injector,
		sampler:        opts.Sampler,
		metrics:        opts.Metrics,
		autoSpanEvents: opts.AutoSpanEvents,
		reporter:       opts.Reporter,
	}
	if o.extractor == nil {
		o.extractor = propagation.NewExtractor(propagation.DefaultConfig())
	}
	if o.injector == nil {
		o.injector = propagation.NewInjector()
	}
	if o.sampler == nil {
		o.sampler = resources.NewProcessSampler(opts.Reporter)
	}

	if err := o.SetExclusions(opts.Exclusions); err != nil {
		return nil, err
	}
	return o, nil
}

// SetExclusions replaces the exclusion list. On error the previous list
// stays in effect. Requests already in flight are unaffected.
func (o *Orchestrator) SetExclusions(patterns []string) error {
	for _, p := range patterns {
		if !strings.HasPrefix(p, "/") || !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: %q", ErrInvalidExclusion, p)
		}
	}
	list := append([]string(nil), patterns...)
	o.exclusions.Store(&list)
	return nil
}

// Exclusions returns a copy of the current exclusion list.
func (o *Orchestrator) Exclusions() []string {
	return append([]string(nil), (*o.exclusions.Load())...)
}

// Excluded reports whether path matches an exclusion pattern.
func (o *Orchestrator) Excluded(path string) bool {
	for _, p := range *o.exclusions.Load() {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// Extractor returns the extractor used by Begin.
func (o *Orchestrator) Extractor() *propagation.Extractor {
	return o.extractor
}

// Correlator returns the logger correlator.
func (o *Orchestrator) Correlator() *logging.Correlator {
	return o.correlator
}

// Begin moves a new request out of Idle.
//
// Excluded paths return a Skipped request with no side effects at all.
// Otherwise Begin resolves the trace identity, opens the server span, binds
// the request logger, takes the starting resource snapshot and increments
// the in-flight gauge. The returned request's Context carries the span, the
// logger and the request itself.
//
// With generation disabled and no usable trace header, Begin returns an
// error matching propagation.ErrMissingTraceContext and nothing is started.
func (o *Orchestrator) Begin(ctx context.Context, snap RequestSnapshot) (*Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if o.Excluded(snap.path()) {
		r := &Request{ctx: ctx, snap: snap}
		r.phase.Store(int32(PhaseSkipped))
		return r, nil
	}

	id, source, err := o.extractor.Extract(snap.Headers)
	if err != nil {
		return nil, fmt.Errorf("begin %s %s: %w", snap.Method, snap.path(), err)
	}

	r := &Request{
		o:         o,
		snap:      snap,
		requestID: requestID(snap.Headers),
	}

	attrs := []tracing.Attribute{
		tracing.String(tracing.AttrHTTPMethod, snap.Method),
		tracing.String(tracing.AttrHTTPURL, snap.URL),
		tracing.String(tracing.AttrRequestID, r.requestID),
		tracing.String(tracing.AttrTraceSource, string(source)),
	}
	if snap.IP != "" {
		attrs = append(attrs, tracing.String(tracing.AttrHTTPClientIP, snap.IP))
	}
	if snap.UserAgent != "" {
		attrs = append(attrs, tracing.String(tracing.AttrHTTPUserAgent, snap.UserAgent))
	}
	if id.CorrelationID != "" {
		attrs = append(attrs, tracing.String(tracing.AttrCorrelationID, id.CorrelationID))
	}

	r.span = o.tracer.StartSpan(ctx, "HTTP "+snap.Method,
		tracing.WithIdentity(id),
		tracing.WithKind(tracing.KindServer),
		tracing.WithAttributes(attrs...),
	)
	r.logger.Store(o.correlator.Logger(logging.LoggerContext{
		Span:              r.span,
		OperationName:     r.span.Name(),
		OperationType:     logging.OperationRequest,
		Layer:             logging.LayerHTTP,
		AutoAddSpanEvents: o.autoSpanEvents,
		RequestID:         r.requestID,
		CorrelationID:     id.CorrelationID,
	}))
	r.before = o.sampler.Sample()

	if o.metrics != nil {
		o.metrics.RequestStarted(snap.Method)
	}

	ctx = tracing.ContextWithSpan(ctx, r.span)
	ctx = logging.ContextWithLoggerFunc(ctx, r.Logger)
	r.ctx = ContextWithRequest(ctx, r)
	r.phase.Store(int32(PhaseStarted))

	r.Logger().Debug("request started",
		"method", snap.Method,
		"url", snap.URL,
		"client_ip", snap.IP,
		"user_agent", snap.UserAgent,
		"trace_source", string(source),
	)
	return r, nil
}

// Handler is a unit of business logic run under Run. It returns the status
// it produced.
type Handler func(ctx context.Context) (status int, err error)

// Run wraps fn in a full lifecycle: Begin, then Complete or Fail.
//
// fn's error is returned unchanged. A panic in fn is recorded and then
// re-raised with its original value. If ctx is done when fn returns without
// error, the request is failed with ctx's error so its span is not left
// open, and nil is still returned.
func (o *Orchestrator) Run(ctx context.Context, snap RequestSnapshot, fn Handler) (err error) {
	req, err := o.Begin(ctx, snap)
	if err != nil {
		return err
	}
	if req.Skipped() {
		_, err = fn(req.Context())
		return err
	}

	defer func() {
		if v := recover(); v != nil {
			_ = req.Fail(NewPanicError(v))
			panic(v)
		}
	}()

	status, err := fn(req.Context())
	switch {
	case err != nil:
		return req.Fail(err)
	case req.Context().Err() != nil:
		_ = req.Fail(req.Context().Err())
		return nil
	default:
		req.Complete(status, -1)
		return nil
	}
}

// requestID returns the inbound x-request-id when it is usable and a new
// ULID otherwise.
func requestID(h propagation.Getter) string {
	if h != nil {
		if v := strings.TrimSpace(h.Get(HeaderRequestID)); v != "" && len(v) <= maxInboundRequestID && printable(v) {
			return v
		}
	}
	return ulid.Make().String()
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
