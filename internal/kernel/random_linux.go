//go:build linux

// File: internal/kernel/random_linux.go
// Author: momentics <momentics@gmail.com>
//
// Kernel entropy sink over the /dev/random ioctl interface.

package kernel

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-rngd/api"
)

const poolSizePath = "/proc/sys/kernel/random/poolsize"

// Random feeds the kernel entropy pool through RNDADDENTROPY.
type Random struct {
	path     string
	poolBits int

	mu  sync.Mutex
	fd  int
	req []byte // rand_pool_info header followed by data
}

// OpenRandom opens the kernel random device, usually /dev/random.
func OpenRandom(path string) (*Random, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, sinkError(errors.Wrapf(err, "open entropy sink %s", path))
	}
	return &Random{path: path, poolBits: readPoolBits(), fd: fd}, nil
}

func readPoolBits() int {
	raw, err := os.ReadFile(poolSizePath)
	if err != nil {
		return DefaultPoolBits
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || n <= 0 {
		return DefaultPoolBits
	}
	return n
}

// PoolBits returns the kernel pool capacity in bits.
func (r *Random) PoolBits() int { return r.poolBits }

// EntropyCount returns the entropy currently credited to the pool, in bits.
func (r *Random) EntropyCount() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := unix.IoctlGetInt(r.fd, unix.RNDGETENTCNT)
	if err != nil {
		return 0, sinkError(errors.Wrapf(err, "RNDGETENTCNT %s", r.path))
	}
	return n, nil
}

// FillLevel implements api.EntropySink.
func (r *Random) FillLevel() (float64, error) {
	n, err := r.EntropyCount()
	if err != nil {
		return 0, err
	}
	pct := 100 * float64(n) / float64(r.poolBits)
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

// Feed implements api.EntropySink: p is mixed into the pool and entropyBits
// are credited.
func (r *Random) Feed(p []byte, entropyBits int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	need := 8 + len(p)
	if cap(r.req) < need {
		r.req = make([]byte, need)
	}
	req := r.req[:need]
	binary.NativeEndian.PutUint32(req[0:], uint32(int32(entropyBits)))
	binary.NativeEndian.PutUint32(req[4:], uint32(int32(len(p))))
	copy(req[8:], p)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(r.fd), unix.RNDADDENTROPY, uintptr(unsafe.Pointer(&req[0])))
	clear(req[8:])
	if errno != 0 {
		return sinkError(errors.Wrapf(errno, "RNDADDENTROPY %s", r.path))
	}
	return nil
}

// WaitForDemand implements api.DemandWaiter. The kernel marks the device
// writable once the pool drops below its write wakeup threshold.
func (r *Random) WaitForDemand(timeout time.Duration) error {
	r.mu.Lock()
	fd := r.fd
	r.mu.Unlock()
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	deadline := time.Now().Add(timeout)
	for {
		ms := int(time.Until(deadline) / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return sinkError(errors.Wrapf(err, "poll %s", r.path))
		}
		if n == 0 {
			return api.ErrTimeout
		}
		return nil
	}
}

// Close releases the device.
func (r *Random) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fd < 0 {
		return nil
	}
	err := unix.Close(r.fd)
	r.fd = -1
	return errors.Wrapf(err, "close %s", r.path)
}

// Release returns the running kernel release string.
func Release() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", errors.Wrap(err, "uname")
	}
	return unix.ByteSliceToString(uts.Release[:]), nil
}

// Check rejects kernels too old to run the daemon.
func Check() error {
	rel, err := Release()
	if err != nil {
		return api.Wrap(api.ErrCodeOS, err, "kernel check")
	}
	return CheckRelease(rel)
}

// RandomKey returns n bytes from getrandom(2).
func RandomKey(n int) ([]byte, error) {
	key := make([]byte, n)
	for off := 0; off < n; {
		m, err := unix.Getrandom(key[off:], 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "getrandom")
		}
		off += m
	}
	return key, nil
}

func sinkError(err error) error {
	return fmt.Errorf("%w: %w", api.ErrSinkWrite, err)
}
