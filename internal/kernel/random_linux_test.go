//go:build linux

package kernel

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-rngd/api"
)

func openOrSkip(t *testing.T) *Random {
	t.Helper()
	r, err := OpenRandom("/dev/random")
	if err != nil {
		t.Skipf("no /dev/random: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestFillLevel(t *testing.T) {
	r := openOrSkip(t)
	if r.PoolBits() <= 0 {
		t.Fatalf("pool bits %d", r.PoolBits())
	}
	pct, err := r.FillLevel()
	if errors.Is(err, unix.ENOTTY) || errors.Is(err, unix.EPERM) {
		t.Skipf("ioctl unavailable: %v", err)
	}
	if err != nil {
		t.Fatal(err)
	}
	if pct < 0 || pct > 100 {
		t.Errorf("fill level %v", pct)
	}
}

func TestWaitForDemand(t *testing.T) {
	r := openOrSkip(t)
	err := r.WaitForDemand(10 * time.Millisecond)
	if err != nil && !errors.Is(err, api.ErrTimeout) {
		t.Errorf("err=%v", err)
	}
}

func TestFeedRequiresPrivilege(t *testing.T) {
	r := openOrSkip(t)
	err := r.Feed(make([]byte, 64), 0)
	if errors.Is(err, unix.EPERM) {
		if !errors.Is(err, api.ErrSinkWrite) {
			t.Errorf("EPERM not marked as a sink error: %v", err)
		}
		t.Skip("RNDADDENTROPY needs CAP_SYS_ADMIN")
	}
	if err != nil {
		t.Fatal(err)
	}
}

func TestClosedSinkFails(t *testing.T) {
	r := openOrSkip(t)
	_ = r.Close()
	if _, err := r.FillLevel(); !errors.Is(err, api.ErrSinkWrite) {
		t.Errorf("err=%v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestCheckHost(t *testing.T) {
	rel, err := Release()
	if err != nil {
		t.Fatal(err)
	}
	if rel == "" {
		t.Fatal("empty release")
	}
	if err := Check(); err != nil {
		t.Errorf("running kernel %s rejected: %v", rel, err)
	}
}

func TestRandomKey(t *testing.T) {
	a, err := RandomKey(32)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := RandomKey(32)
	if len(a) != 32 || string(a) == string(b) {
		t.Error("getrandom returned short or repeated output")
	}
}
