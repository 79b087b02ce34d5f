// File: api/entropy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contracts for the entropy source and the kernel entropy sink.

package api

import "time"

// EntropySource supplies raw bytes from a hardware or software generator.
type EntropySource interface {
	// Read fills up to len(p) bytes, waiting at most timeout for the device
	// to become readable. A wait that expires returns ErrTimeout; any other
	// error means the device is unusable.
	Read(p []byte, timeout time.Duration) (int, error)
}

// EntropySink accepts verified bytes for the kernel entropy pool.
type EntropySink interface {
	// FillLevel reports the current pool fill level in percent (0..100).
	FillLevel() (float64, error)

	// Feed writes p into the pool crediting entropyBits bits of entropy.
	Feed(p []byte, entropyBits int) error
}

// DemandWaiter is implemented by sinks that can block until the pool asks
// for more entropy. WaitForDemand returns after at most timeout.
type DemandWaiter interface {
	WaitForDemand(timeout time.Duration) error
}
