// Package resources measures what a request costs the process.
//
// A Sampler takes point-in-time Snapshots of heap, resident memory and
// cumulative CPU time. Diff turns a before/after pair into a Usage, and the
// Categorize functions map usage onto the low-cardinality buckets used as
// metric labels:
//
//	| Resource      | low | medium | high  | very_high |
//	|---------------|-----|--------|-------|-----------|
//	| memory (MB)   | <1  | <10    | <50   | >=50      |
//	| cpu (ms)      | <10 | <50    | <100  | >=100     |
//	| duration (ms) | <100| <500   | <1000 | >=1000    |
//
// Memory deltas may be negative when a collection ran during the interval.
// They are reported as measured and categorize as low.
//
// CPU time is process-wide. Under concurrency a request's cpu figure
// includes work done by other goroutines during the same interval.
//
// # Platform support
//
// CPU time is read with getrusage on unix systems and reported as zero
// elsewhere. Resident memory is read from /proc on Linux; other platforms
// report the runtime's total obtained memory instead.
//
// # Periodic sampling
//
// PeriodicSampler samples on a fixed interval independent of any request
// and hands each sample to a Publisher (the system_* gauges in package
// metrics). Stop is safe to call more than once.
package resources
