// Package guard isolates request handling from failures in telemetry backends.
//
// Calls into exporters, registries and log sinks go through Run, which turns
// panics into a BackendError and hands it to a Reporter. Reporters log through
// a rate limiter so an unreachable collector cannot flood the process log.
package guard

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ErrBackendFailure is matched by every BackendError.
var ErrBackendFailure = errors.New("telemetry backend failure")

// BackendError describes a failed call into a telemetry backend.
type BackendError struct {
	// Component is the engine part that made the call ("tracing", "metrics", "logging").
	Component string

	// Op is the backend operation, e.g. "span.end" or "counter.add".
	Op string

	// Cause is the recovered panic value or returned error.
	Cause error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrBackendFailure, e.Component, e.Op, e.Cause)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrBackendFailure.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackendFailure
}

// Reporter receives backend failures. A nil Reporter discards them.
type Reporter interface {
	Report(err error)
}

// Run calls fn and converts a panic into a BackendError reported to r.
// It never panics itself.
func Run(r Reporter, component, op string, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			report(r, &BackendError{Component: component, Op: op, Cause: panicError(v)})
		}
	}()
	fn()
}

// Check reports err as a BackendError when it is non-nil.
func Check(r Reporter, component, op string, err error) {
	if err == nil {
		return
	}
	report(r, &BackendError{Component: component, Op: op, Cause: err})
}

func report(r Reporter, err error) {
	if r == nil {
		return
	}
	// A failing reporter must not take the request down either.
	defer func() { _ = recover() }()
	r.Report(err)
}

func panicError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", v)
}

// LogReporter counts failures and forwards a rate-limited subset to a sink.
type LogReporter struct {
	sink      func(err error)
	sometimes *rate.Sometimes
	total     atomic.Int64
	last      atomic.Pointer[time.Time]
}

// NewLogReporter creates a reporter that forwards the first `first` failures
// and then at most one per interval to sink.
func NewLogReporter(sink func(err error), first int, interval time.Duration) *LogReporter {
	if first <= 0 {
		first = 5
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &LogReporter{
		sink:      sink,
		sometimes: &rate.Sometimes{First: first, Interval: interval},
	}
}

// Report implements Reporter.
func (r *LogReporter) Report(err error) {
	r.total.Add(1)
	now := time.Now()
	r.last.Store(&now)

	if r.sink == nil {
		return
	}
	r.sometimes.Do(func() {
		r.sink(err)
	})
}

// Total returns the number of failures reported so far.
func (r *LogReporter) Total() int64 {
	return r.total.Load()
}

// LastFailure returns when the most recent failure was reported.
func (r *LogReporter) LastFailure() (time.Time, bool) {
	t := r.last.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}
