//go:build !linux
// +build !linux

// control/platform_other.go
// Author: momentics <momentics@gmail.com>
//
// Platform probes for systems without a feedable kernel pool.

package control

import "runtime"

// RegisterPlatformProbes sets the generic debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	registerCommonProbes(dp)
	dp.RegisterProbe("platform.kernel", func() any {
		return runtime.GOOS
	})
}
