package affinity

import (
	"errors"
	"reflect"
	"runtime"
	"testing"

	"github.com/momentics/hioload-rngd/api"
)

func TestParseCPUList(t *testing.T) {
	cases := map[string][]int{
		"":        nil,
		"0":       {0},
		"0,2":     {0, 2},
		"1-3":     {1, 2, 3},
		"4, 0-1 ": {4, 0, 1},
	}
	for in, want := range cases {
		got, err := ParseCPUList(in)
		if err != nil || !reflect.DeepEqual(got, want) {
			t.Errorf("ParseCPUList(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"x", "-1", "3-1", "1,,2", "2-y"} {
		if _, err := ParseCPUList(bad); !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("ParseCPUList(%q) accepted: %v", bad, err)
		}
	}
}

func TestSetAffinityRejectsNegative(t *testing.T) {
	if err := SetAffinity(-1); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("err=%v", err)
	}
}

func TestLockAndPin(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("pinning verified on linux only")
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		allowed, err := current()
		if err != nil || len(allowed) == 0 {
			t.Errorf("current affinity: %v %v", allowed, err)
			return
		}
		cpu := allowed[len(allowed)-1]
		// exits locked, so the pinned thread is not reused
		if err := LockAndPin(cpu); err != nil {
			t.Errorf("pin %d: %v", cpu, err)
			return
		}
		got, err := current()
		if err != nil || !reflect.DeepEqual(got, []int{cpu}) {
			t.Errorf("affinity after pin = %v, %v", got, err)
		}
	}()
	<-done
}
