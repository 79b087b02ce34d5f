package control

import (
	"reflect"
	"testing"
)

func TestMetricsPublish(t *testing.T) {
	mr := NewMetricsRegistry()
	if !mr.Updated().IsZero() {
		t.Error("fresh registry has an update time")
	}
	mr.Set("a", 1)
	mr.Publish(map[string]any{"b": 2, "a": 3})
	snap := mr.GetSnapshot()
	if !reflect.DeepEqual(snap, map[string]any{"a": 3, "b": 2}) {
		t.Errorf("snapshot %v", snap)
	}
	snap["a"] = 99
	if mr.GetSnapshot()["a"] != 3 {
		t.Error("snapshot aliases registry storage")
	}
	if mr.Updated().IsZero() {
		t.Error("update time not recorded")
	}
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	n := 0
	dp.RegisterProbe("counter", func() any { n++; return n })
	dp.RegisterProbe("reentrant", func() any { return len(dp.Names()) })
	st := dp.DumpState()
	if st["counter"] != 1 || st["reentrant"] != 2 {
		t.Errorf("state %v", st)
	}
	if dp.DumpState()["counter"] != 2 {
		t.Error("probe not evaluated on each dump")
	}
}

func TestPlatformProbes(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	want := []string{"platform.cpus", "platform.kernel", "platform.rdrand", "platform.rdseed"}
	if got := dp.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("probes %v", got)
	}
	st := dp.DumpState()
	if cpus, ok := st["platform.cpus"].(int); !ok || cpus < 1 {
		t.Errorf("cpus %v", st["platform.cpus"])
	}
	if rel, ok := st["platform.kernel"].(string); !ok || rel == "" {
		t.Errorf("kernel %v", st["platform.kernel"])
	}
}
