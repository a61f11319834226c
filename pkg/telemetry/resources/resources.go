package resources

import (
	"time"
)

// Snapshot is a point-in-time reading of process memory and CPU counters.
type Snapshot struct {
	// HeapUsed is the number of bytes of allocated heap objects.
	HeapUsed uint64

	// HeapTotal is the number of bytes of heap memory obtained from the OS.
	HeapTotal uint64

	// RSS is the resident set size in bytes.
	RSS uint64

	// CPUUser and CPUSystem are cumulative since process start.
	CPUUser   time.Duration
	CPUSystem time.Duration

	Timestamp time.Time
}

// TimestampMs returns the snapshot time in Unix milliseconds.
func (s Snapshot) TimestampMs() int64 {
	return s.Timestamp.UnixMilli()
}

// CPU returns the total cumulative CPU time.
func (s Snapshot) CPU() time.Duration {
	return s.CPUUser + s.CPUSystem
}

// Usage is the resource cost of one interval, derived from two snapshots.
type Usage struct {
	DurationMs       float64
	MemoryDeltaBytes int64
	CPUTimeMs        float64
	HeapUsedAtEnd    uint64
	HeapTotalAtEnd   uint64
}

// Diff computes the usage between before and after. The memory delta is
// not clamped and is negative when the heap shrank.
func Diff(before, after Snapshot) Usage {
	return Usage{
		DurationMs:       durationMs(after.Timestamp.Sub(before.Timestamp)),
		MemoryDeltaBytes: int64(after.HeapUsed) - int64(before.HeapUsed),
		CPUTimeMs:        durationMs(after.CPU() - before.CPU()),
		HeapUsedAtEnd:    after.HeapUsed,
		HeapTotalAtEnd:   after.HeapTotal,
	}
}

// Categories classifies u on every axis.
func (u Usage) Categories() Categories {
	return Categories{
		Memory:   CategorizeMemory(u.MemoryDeltaBytes),
		CPU:      CategorizeCPU(u.CPUTimeMs),
		Duration: CategorizeDuration(u.DurationMs),
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
