//go:build !linux

// File: internal/kernel/random_other.go
// Author: momentics <momentics@gmail.com>
//
// The kernel sink needs the Linux random ioctls.

package kernel

import (
	"crypto/rand"
	"fmt"
	"runtime"
	"time"

	"github.com/momentics/hioload-rngd/api"
)

// Random is unavailable on this platform.
type Random struct{}

// OpenRandom always fails on this platform.
func OpenRandom(path string) (*Random, error) {
	return nil, fmt.Errorf("kernel: %s on %s: %w", path, runtime.GOOS, api.ErrNotSupported)
}

func (r *Random) PoolBits() int                             { return DefaultPoolBits }
func (r *Random) EntropyCount() (int, error)                { return 0, api.ErrNotSupported }
func (r *Random) FillLevel() (float64, error)               { return 0, api.ErrNotSupported }
func (r *Random) Feed(p []byte, entropyBits int) error      { return api.ErrNotSupported }
func (r *Random) WaitForDemand(timeout time.Duration) error { return api.ErrNotSupported }
func (r *Random) Close() error                              { return nil }

// Release reports the platform instead of a kernel release.
func Release() (string, error) { return runtime.GOOS, nil }

// Check fails: there is no kernel pool to feed.
func Check() error {
	return api.Wrap(api.ErrCodeOS, api.ErrNotSupported, "unsupported kernel").WithContext("os", runtime.GOOS)
}

// RandomKey returns n bytes from the platform CSPRNG.
func RandomKey(n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
