//go:build unix

// File: internal/entsource/device.go
// Author: momentics <momentics@gmail.com>
//
// Entropy source reading a character device (or any file) with a per-read
// timeout enforced through poll(2).

package entsource

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-rngd/api"
)

// Device is an api.EntropySource backed by a file descriptor.
type Device struct {
	path string

	mu sync.Mutex
	fd int
}

// Open opens path for non-blocking reads.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, deviceError(errors.Wrapf(err, "open entropy source %s", path))
	}
	return &Device{path: path, fd: fd}, nil
}

// Path returns the device path.
func (d *Device) Path() string { return d.path }

// Read waits up to timeout for the device to become readable and reads what
// is available into p. A quiet device yields api.ErrTimeout; end of file and
// every other failure are device errors.
func (d *Device) Read(p []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return 0, deviceError(errors.Errorf("read %s: device closed", d.path))
	}
	if len(p) == 0 {
		return 0, nil
	}

	deadline := time.Now().Add(timeout)
	for {
		ready, err := d.wait(time.Until(deadline))
		if err != nil {
			return 0, err
		}
		if !ready {
			return 0, api.ErrTimeout
		}
		n, err := unix.Read(d.fd, p)
		switch {
		case err == unix.EAGAIN || err == unix.EINTR:
			if time.Now().After(deadline) {
				return 0, api.ErrTimeout
			}
			continue
		case err != nil:
			return 0, deviceError(errors.Wrapf(err, "read %s", d.path))
		case n == 0:
			return 0, deviceError(errors.Errorf("read %s: unexpected end of file", d.path))
		}
		return n, nil
	}
}

// wait polls for readability. Caller holds d.mu.
func (d *Device) wait(timeout time.Duration) (bool, error) {
	ms := int(timeout / time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, deviceError(errors.Wrapf(err, "poll %s", d.path))
		}
		if n == 0 {
			return false, nil
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			return false, deviceError(errors.Errorf("poll %s: revents %#x", d.path, fds[0].Revents))
		}
		return true, nil
	}
}

// Close releases the descriptor.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return errors.Wrapf(err, "close %s", d.path)
}

func deviceError(err error) error {
	return fmt.Errorf("%w: %w", api.ErrDevice, err)
}
