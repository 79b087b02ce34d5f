// File: api/control.go
// Package api defines Control interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Control exposes runtime metrics and debug probes of the daemon.
type Control interface {
	Stats() map[string]any
	SetMetric(key string, value any)
	RegisterDebugProbe(name string, fn func() any)
}
