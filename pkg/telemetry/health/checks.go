package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Flusher is implemented by span pipelines, e.g. *tracing.Provider.
type Flusher interface {
	ForceFlush(ctx context.Context) error
}

// TracerCheck flushes the span pipeline. A failing exporter fails the check.
func TracerCheck(f Flusher) CheckFunc {
	return func(ctx context.Context) error {
		if err := f.ForceFlush(ctx); err != nil {
			return fmt.Errorf("span export: %w", err)
		}
		return nil
	}
}

// SamplerState is implemented by *resources.PeriodicSampler.
type SamplerState interface {
	Running() bool
	LastSample() (time.Time, bool)
	Interval() time.Duration
}

// SamplerCheck fails when the background sampler is stopped or has missed
// more than two of its intervals.
func SamplerCheck(s SamplerState) CheckFunc {
	return func(ctx context.Context) error {
		if !s.Running() {
			return errors.New("system sampler is not running")
		}
		last, ok := s.LastSample()
		if !ok {
			return errors.New("system sampler has not sampled yet")
		}
		if age := time.Since(last); age > 2*s.Interval() {
			return fmt.Errorf("last system sample is %s old", age.Round(time.Second))
		}
		return nil
	}
}

// FailureLog is implemented by *guard.LogReporter.
type FailureLog interface {
	LastFailure() (time.Time, bool)
	Total() int64
}

// ReporterCheck fails while telemetry backend failures were reported within
// window. Older failures no longer affect readiness.
func ReporterCheck(r FailureLog, window time.Duration) CheckFunc {
	return func(ctx context.Context) error {
		last, ok := r.LastFailure()
		if !ok || time.Since(last) > window {
			return nil
		}
		return fmt.Errorf("%d telemetry backend failures, last at %s", r.Total(), last.UTC().Format(time.RFC3339))
	}
}
