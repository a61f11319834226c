//go:build linux

package resources

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// newRSSReader reads the resident set size from /proc/self/stat. If procfs
// is not mounted it falls back to the runtime's obtained memory.
func newRSSReader() func(memStats) (uint64, error) {
	proc, err := procfs.Self()
	if err != nil {
		return runtimeRSS
	}
	return func(memStats) (uint64, error) {
		stat, err := proc.Stat()
		if err != nil {
			return 0, fmt.Errorf("read /proc/self/stat: %w", err)
		}
		return uint64(stat.ResidentMemory()), nil
	}
}

func runtimeRSS(ms memStats) (uint64, error) {
	return ms.Sys, nil
}
