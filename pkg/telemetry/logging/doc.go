// Package logging binds structured loggers to spans.
//
// # Overview
//
// A Correlator turns a LoggerContext (span, operation, layer, request id)
// into a SpanLogger. Every line it writes carries trace_id, span_id,
// parent_span_id, operation, operation_type, layer, elapsed_ms and
// request_id, plus the caller's fields.
//
// Two ways to narrow scope, deliberately named apart:
//
//   - ChildLogger reuses the SAME span with a narrower operation name. Use it
//     for the many functions that run under one request span.
//   - StartSpan opens a NEW child span (new span_id, parent_span_id set) and
//     returns a logger bound to it.
//
// # Backends
//
// Backend is the one required capability: write a record. LevelEnabler is
// optional; Leveled synthesizes it for backends that lack it. Three
// backends ship with the package:
//
//   - Logger: log/slog (JSON, text or console) with PII redaction
//   - ZapBackend: go.uber.org/zap
//   - PlainBackend: one key=value line per record, no level support
//
// # Event Contexts
//
// EventContext correlates lines without any tracing backend: each context has
// an event_id and children record their parent in origin_event_id.
//
// # PII Redaction
//
// PII is redacted from log fields when RedactPII is enabled:
//
//   - API keys: sk-abc123xyz → sk-***
//   - Emails: user@example.com → ***@example.com
//   - SSN: 123-45-6789 → ***-**-****
//   - IP addresses: 192.168.1.100 → *.*.*.*
//   - Sensitive keys (password, token, authorization): value masked
//
// Correlation fields (trace_id, span_id, request_id, ...) are never redacted.
//
// # Usage
//
//	logger, _ := logging.New(logging.Config{Level: "info", RedactPII: true})
//	c := logging.NewCorrelator(logger, tracer, logging.CorrelatorOptions{})
//
//	reqLog := c.Logger(logging.LoggerContext{
//	    Span:          root,
//	    OperationName: "GET /users",
//	    OperationType: logging.OperationRequest,
//	    Layer:         logging.LayerHTTP,
//	    RequestID:     "01J9Z3...",
//	})
//	reqLog.Info("listing users", "limit", 50)
//
//	svc := reqLog.ChildLogger("users.List")
//	span, dbLog := svc.StartSpan(ctx, "users.select", logging.OperationQuery, logging.LayerData)
//	defer span.Finish()
//	dbLog.Debug("query", "rows", 50)
package logging
