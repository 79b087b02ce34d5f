//go:build linux
// +build linux

// control/platform_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific platform metrics or debug probe integrations.

package control

import (
	"github.com/momentics/hioload-rngd/internal/kernel"
)

// RegisterPlatformProbes sets Linux-specific debug metrics.
func RegisterPlatformProbes(dp *DebugProbes) {
	registerCommonProbes(dp)
	dp.RegisterProbe("platform.kernel", func() any {
		rel, err := kernel.Release()
		if err != nil {
			return err.Error()
		}
		return rel
	})
}
