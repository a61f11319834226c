package logging

import (
	"context"
	"testing"

	"mercator-hq/correlator/pkg/telemetry/tracing"
)

func TestFromContext(t *testing.T) {
	c := NewCorrelator(&recordingBackend{}, nil, CorrelatorOptions{})
	l := c.Logger(LoggerContext{RequestID: "req-123"})

	ctx := ContextWithLogger(context.Background(), l)

	if got := FromContext(ctx); got != l {
		t.Errorf("FromContext() = %p, want %p", got, l)
	}
	if got := FromContext(context.Background()); got != nil {
		t.Errorf("FromContext(empty) = %v, want nil", got)
	}
	//nolint:staticcheck // nil context is tolerated
	if got := FromContext(nil); got != nil {
		t.Errorf("FromContext(nil) = %v, want nil", got)
	}
}

func TestFromContext_LoggerFunc(t *testing.T) {
	c := NewCorrelator(&recordingBackend{}, nil, CorrelatorOptions{})
	current := c.Logger(LoggerContext{RequestID: "req-123"})

	ctx := ContextWithLoggerFunc(context.Background(), func() *SpanLogger { return current })
	if got := FromContext(ctx); got != current {
		t.Errorf("FromContext() = %p, want %p", got, current)
	}

	current = current.ChildLogger("GET /users")
	if got := FromContext(ctx); got != current {
		t.Errorf("FromContext() after swap = %p, want %p", got, current)
	}
}

func TestExtractContextFields(t *testing.T) {
	tracer := tracing.NewTracer(nil, nil)
	span := tracer.StartSpan(context.Background(), "op")
	id := span.Identity()

	c := NewCorrelator(&recordingBackend{}, tracer, CorrelatorOptions{})
	l := c.Logger(LoggerContext{Span: span, RequestID: "req-1", CorrelationID: "corr-1"})

	tests := []struct {
		name string
		ctx  context.Context
		want map[string]any
	}{
		{
			name: "empty context",
			ctx:  context.Background(),
			want: map[string]any{},
		},
		{
			name: "span only",
			ctx:  tracing.ContextWithSpan(context.Background(), span),
			want: map[string]any{"trace_id": id.TraceID, "span_id": id.SpanID},
		},
		{
			name: "span and logger",
			ctx:  ContextWithLogger(tracing.ContextWithSpan(context.Background(), span), l),
			want: map[string]any{
				"trace_id":       id.TraceID,
				"span_id":        id.SpanID,
				"request_id":     "req-1",
				"correlation_id": "corr-1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := extractContextFields(tt.ctx)
			if len(fields)%2 != 0 {
				t.Fatalf("odd number of fields: %v", fields)
			}
			got := make(map[string]any, len(fields)/2)
			for i := 0; i < len(fields); i += 2 {
				got[fields[i].(string)] = fields[i+1]
			}
			if len(got) != len(tt.want) {
				t.Errorf("extractContextFields() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}
