package resources

import (
	"errors"
	"time"

	"mercator-hq/correlator/pkg/telemetry/guard"
)

// errUnsupported is returned by platform readers that have no data source.
var errUnsupported = errors.New("not supported on this platform")

// Sampler takes resource snapshots.
type Sampler interface {
	Sample() Snapshot
}

// ProcessSampler samples the current process. Read failures are reported
// and leave the affected fields zero; Sample never fails.
type ProcessSampler struct {
	reporter guard.Reporter
	now      func() time.Time
	readMem  func() memStats
	readCPU  func() (user, system time.Duration, err error)
	readRSS  func(memStats) (uint64, error)
}

// NewProcessSampler creates a sampler for the running process.
func NewProcessSampler(reporter guard.Reporter) *ProcessSampler {
	return &ProcessSampler{
		reporter: reporter,
		now:      time.Now,
		readMem:  readMemStats,
		readCPU:  cpuTimes,
		readRSS:  newRSSReader(),
	}
}

// Sample implements Sampler.
func (s *ProcessSampler) Sample() Snapshot {
	ms := s.readMem()

	snap := Snapshot{
		HeapUsed:  ms.HeapUsed,
		HeapTotal: ms.HeapTotal,
		Timestamp: s.now(),
	}

	user, system, err := s.readCPU()
	if err == nil {
		snap.CPUUser, snap.CPUSystem = user, system
	} else if !errors.Is(err, errUnsupported) {
		guard.Check(s.reporter, "resources", "cpu.read", err)
	}

	rss, err := s.readRSS(ms)
	if err == nil {
		snap.RSS = rss
	} else if !errors.Is(err, errUnsupported) {
		guard.Check(s.reporter, "resources", "rss.read", err)
	}

	return snap
}
