// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_windows.go, affinity_other.go) guarded
// by build tags.

package affinity

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/momentics/hioload-rngd/api"
)

// SetAffinity pins the current OS thread to a given logical CPU on supported platforms.
// The caller must hold runtime.LockOSThread for the pin to stick to its goroutine.
func SetAffinity(cpuID int) error {
	if cpuID < 0 {
		return fmt.Errorf("affinity: cpu %d: %w", cpuID, api.ErrInvalidArgument)
	}
	return setAffinityPlatform(cpuID)
}

// LockAndPin locks the calling goroutine to its OS thread and pins that
// thread to cpuID. The goroutine should return without unlocking so the
// runtime retires the pinned thread. On failure the thread is unlocked.
func LockAndPin(cpuID int) error {
	runtime.LockOSThread()
	if err := SetAffinity(cpuID); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	return nil
}

// ParseCPUList parses a list such as "0,2-3" into CPU indexes, in order.
func ParseCPUList(s string) ([]int, error) {
	var out []int
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(lo)
		if err != nil || a < 0 {
			return nil, fmt.Errorf("affinity: bad cpu %q: %w", part, api.ErrInvalidArgument)
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(hi); err != nil || b < a {
				return nil, fmt.Errorf("affinity: bad cpu range %q: %w", part, api.ErrInvalidArgument)
			}
		}
		for c := a; c <= b; c++ {
			out = append(out, c)
		}
	}
	return out, nil
}
