// Package backoff computes retry delays for repeatedly failing sources.
package backoff

import "time"

const maxMinutes = 30

// Delay returns how long a source should wait after n consecutive
// failures: 1, 2, 4, 8, 16 minutes, then capped at 30.
func Delay(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	shift := failures - 1
	if shift > 5 {
		shift = 5
	}
	mins := int64(1) << shift
	if mins > maxMinutes {
		mins = maxMinutes
	}
	return time.Duration(mins) * time.Minute
}
