//go:build !unix

package resources

import "time"

func cpuTimes() (time.Duration, time.Duration, error) {
	return 0, 0, errUnsupported
}
