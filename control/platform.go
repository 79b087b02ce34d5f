// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Platform probes common to every OS.

package control

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

func registerCommonProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.rdrand", func() any {
		return cpu.X86.HasRDRAND
	})
	dp.RegisterProbe("platform.rdseed", func() any {
		return cpu.X86.HasRDSEED
	})
}
