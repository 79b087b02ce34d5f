//go:build !unix

// File: internal/pidfile/pidfile_other.go
// Author: momentics <momentics@gmail.com>

package pidfile

import (
	"fmt"

	"github.com/momentics/hioload-rngd/api"
)

// File is unavailable without flock(2).
type File struct{ path string }

// Acquire always fails on this platform.
func Acquire(path string) (*File, error) {
	return nil, fmt.Errorf("pidfile %s: %w", path, api.ErrNotSupported)
}

func (p *File) Write(pid int) error { return api.ErrNotSupported }
func (p *File) Path() string        { return p.path }
func (p *File) Release() error      { return nil }
