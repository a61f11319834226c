package metrics

import (
	"mercator-hq/correlator/pkg/telemetry/resources"
)

// SystemMetrics publishes periodic resource samples as system_* gauges.
// It implements resources.Publisher.
type SystemMetrics struct {
	heapUsed  *Gauge
	heapTotal *Gauge
	rss       *Gauge
	cpu       *Gauge
	cpuUtil   *Gauge
}

// NewSystemMetrics creates the system gauges on r.
func NewSystemMetrics(r *Recorder) *SystemMetrics {
	return &SystemMetrics{
		heapUsed:  r.Gauge("system_heap_used_bytes", "Bytes of allocated heap objects"),
		heapTotal: r.Gauge("system_heap_total_bytes", "Bytes of heap memory obtained from the OS"),
		rss:       r.Gauge("system_rss_bytes", "Resident set size in bytes"),
		cpu:       r.Gauge("system_cpu_seconds", "Cumulative process CPU time in seconds", "mode"),
		cpuUtil:   r.Gauge("system_cpu_utilization_ratio", "Process CPU time per wall-clock second over the last sampling interval"),
	}
}

// Publish implements resources.Publisher.
func (s *SystemMetrics) Publish(prev, cur resources.Snapshot) {
	s.heapUsed.Set(float64(cur.HeapUsed), nil)
	s.heapTotal.Set(float64(cur.HeapTotal), nil)
	s.rss.Set(float64(cur.RSS), nil)
	s.cpu.Set(cur.CPUUser.Seconds(), Labels{"mode": "user"})
	s.cpu.Set(cur.CPUSystem.Seconds(), Labels{"mode": "system"})

	wall := cur.Timestamp.Sub(prev.Timestamp)
	if wall > 0 {
		s.cpuUtil.Set((cur.CPU() - prev.CPU()).Seconds()/wall.Seconds(), nil)
	}
}
