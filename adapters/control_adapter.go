// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control interface using control package primitives.

package adapters

import (
	"github.com/momentics/hioload-rngd/api"
	"github.com/momentics/hioload-rngd/control"
)

// ControlAdapter exposes published statistics and debug probes.
type ControlAdapter struct {
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
}

var _ api.Control = (*ControlAdapter)(nil)

// NewControlAdapter builds an adapter with the platform probes registered.
func NewControlAdapter() *ControlAdapter {
	adapter := &ControlAdapter{
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
	}
	control.RegisterPlatformProbes(adapter.debug)
	return adapter
}

// Stats merges the published metrics with the current probe values, the
// latter under a "debug." prefix.
func (c *ControlAdapter) Stats() map[string]any {
	stats := c.metrics.GetSnapshot()
	debugStats := c.debug.DumpState()
	combined := make(map[string]any, len(stats)+len(debugStats))
	for k, v := range stats {
		combined[k] = v
	}
	for k, v := range debugStats {
		combined["debug."+k] = v
	}
	return combined
}

func (c *ControlAdapter) SetMetric(key string, value any) {
	c.metrics.Set(key, value)
}

// Publish replaces the metric values with a full statistics snapshot.
func (c *ControlAdapter) Publish(snapshot map[string]any) {
	c.metrics.Publish(snapshot)
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}
