package resources

import rtmetrics "runtime/metrics"

// memMetrics are read on every Sample. runtime/metrics is used instead of
// runtime.ReadMemStats, which stops the world and runs twice per request.
var memMetrics = [...]string{
	"/memory/classes/heap/objects:bytes",
	"/memory/classes/heap/unused:bytes",
	"/memory/classes/heap/free:bytes",
	"/memory/classes/heap/released:bytes",
	"/memory/classes/total:bytes",
}

// memStats holds the memory figures a snapshot needs.
type memStats struct {
	// HeapUsed matches MemStats.HeapAlloc.
	HeapUsed uint64
	// HeapTotal matches MemStats.HeapSys.
	HeapTotal uint64
	// Sys matches MemStats.Sys.
	Sys uint64
}

func readMemStats() memStats {
	var samples [len(memMetrics)]rtmetrics.Sample
	for i, name := range memMetrics {
		samples[i].Name = name
	}
	rtmetrics.Read(samples[:])

	v := func(i int) uint64 {
		if samples[i].Value.Kind() != rtmetrics.KindUint64 {
			return 0
		}
		return samples[i].Value.Uint64()
	}
	return memStats{
		HeapUsed:  v(0),
		HeapTotal: v(0) + v(1) + v(2) + v(3),
		Sys:       v(4),
	}
}
