//go:build !linux && !windows
// +build !linux,!windows

// File: affinity/affinity_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package affinity

import (
	"fmt"

	"github.com/momentics/hioload-rngd/api"
)

// setAffinityPlatform is a stub for platforms where CPU affinity is not supported.
func setAffinityPlatform(cpuID int) error {
	return fmt.Errorf("affinity: %w", api.ErrNotSupported)
}

func current() ([]int, error) { return nil, api.ErrNotSupported }
