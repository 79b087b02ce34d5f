package adapters_test

import (
	"testing"

	"github.com/momentics/hioload-rngd/adapters"
)

func TestControlAdapterBasic(t *testing.T) {
	ctrl := adapters.NewControlAdapter()
	stats := ctrl.Stats()
	if _, ok := stats["debug.platform.cpus"]; !ok {
		t.Error("platform probes not registered")
	}
	ctrl.SetMetric("k", 1)
	ctrl.Publish(map[string]any{"sink.bytes_sent": uint64(64)})
	ctrl.RegisterDebugProbe("pool.free", func() any { return 3 })

	stats = ctrl.Stats()
	if stats["k"] != 1 || stats["sink.bytes_sent"] != uint64(64) {
		t.Errorf("metrics not applied: %v", stats)
	}
	if stats["debug.pool.free"] != 3 {
		t.Error("probe not reported")
	}
}
