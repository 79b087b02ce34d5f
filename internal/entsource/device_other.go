//go:build !unix

// File: internal/entsource/device_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without poll(2).

package entsource

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-rngd/api"
)

// Device is unavailable on this platform.
type Device struct{ path string }

// Open always fails on this platform.
func Open(path string) (*Device, error) {
	return nil, fmt.Errorf("entsource: %s: %w", path, api.ErrNotSupported)
}

func (d *Device) Path() string { return d.path }

func (d *Device) Read(p []byte, timeout time.Duration) (int, error) {
	return 0, api.ErrNotSupported
}

func (d *Device) Close() error { return nil }
