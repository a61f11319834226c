// Package propagation recovers a trace identity from inbound request headers
// and writes it back onto responses and outbound requests.
//
// # Extraction Precedence
//
// Headers are looked up case-insensitively, first match wins:
//
//  1. configured custom header (traceparent syntax or a plain id)
//  2. traceparent (W3C Trace Context)
//  3. b3 (Zipkin single header)
//  4. x-amzn-trace-id (AWS X-Ray)
//  5. x-trace-id, x-request-id, x-correlation-id
//  6. a freshly generated identity, unless generation is disabled
//
// A malformed header never fails extraction; it is skipped and the next
// format is tried. Only when nothing validates and generation is disabled
// does Extract return ErrMissingTraceContext.
//
// # Parent Linkage
//
// When upstream sent its own span id (traceparent, b3, X-Ray Parent=), that
// span becomes the parent of the local root span, which always gets a new
// span id:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
//	trace_id:       4bf92f3577b34da6a3ce929d0e0e4736 (same)
//	parent_span_id: 00f067aa0ba902b7 (from upstream)
//	span_id:        5e107e4a0ba902c8 (new)
//
// # Usage
//
//	ex := propagation.NewExtractor(propagation.DefaultConfig())
//	id, source, err := ex.Extract(r.Header)
//
//	inj := propagation.NewInjector(propagation.FormatTraceParent)
//	inj.Inject(w.Header(), id)
package propagation
