package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"mercator-hq/correlator/pkg/telemetry/tracing"
)

// StatusClientClosedRequest is recorded when the client went away before
// the response was complete.
const StatusClientClosedRequest = 499

// Error types recorded for context errors.
const (
	ErrorTypeCanceled = "canceled"
	ErrorTypeTimeout  = "timeout"
)

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError captures the current stack. Call it from the deferred
// function that recovered v.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// StackTrace returns the stack captured at recovery.
func (e *PanicError) StackTrace() string {
	return string(e.Stack)
}

// ErrorType classifies err for the error_type metric label.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return ErrorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	default:
		return tracing.ErrorType(err)
	}
}

// errorStatus is the status recorded for a failed request.
func errorStatus(err error) int {
	if errors.Is(err, context.Canceled) {
		return StatusClientClosedRequest
	}
	return http.StatusInternalServerError
}
