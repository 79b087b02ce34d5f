//go:build unix

// File: internal/pidfile/pidfile.go
// Author: momentics <momentics@gmail.com>
//
// Exclusive pidfile held with flock(2) for the lifetime of the daemon.

package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-rngd/api"
)

// File is a locked pidfile.
type File struct {
	path string
	f    *os.File
}

// Acquire opens or creates path, takes an exclusive non-blocking lock and
// writes the current pid. If another process holds the lock the error wraps
// api.ErrAlreadyLocked and carries that process's pid.
func Acquire(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, api.Wrap(api.ErrCodeUsage, errors.Wrapf(err, "can't open or create %s", path), "pidfile")
	}
	if err := lock(f); err != nil {
		defer f.Close()
		if err == unix.EWOULDBLOCK {
			e := api.Wrap(api.ErrCodeUsage, api.ErrAlreadyLocked, fmt.Sprintf("can't lock %s", path))
			if pid, ok := readPid(f); ok {
				e.WithContext("pid", pid)
			}
			return nil, e
		}
		return nil, api.Wrap(api.ErrCodeUsage, errors.Wrapf(err, "can't lock %s", path), "pidfile")
	}
	p := &File{path: path, f: f}
	if err := p.Write(os.Getpid()); err != nil {
		_ = f.Close()
		return nil, err
	}
	return p, nil
}

func lock(f *os.File) error {
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err != unix.EINTR {
			return err
		}
	}
}

func readPid(f *os.File) (int, bool) {
	buf := make([]byte, 32)
	n, _ := f.ReadAt(buf, 0)
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	return pid, err == nil && pid > 0
}

// Write replaces the file content with pid.
func (p *File) Write(pid int) error {
	line := strconv.Itoa(pid) + "\n"
	if _, err := p.f.WriteAt([]byte(line), 0); err != nil {
		return api.Wrap(api.ErrCodeOS, errors.Wrapf(err, "write %s", p.path), "pidfile")
	}
	if err := p.f.Truncate(int64(len(line))); err != nil {
		return api.Wrap(api.ErrCodeOS, errors.Wrapf(err, "truncate %s", p.path), "pidfile")
	}
	return nil
}

// Path returns the pidfile location.
func (p *File) Path() string { return p.path }

// Release removes the pidfile and drops the lock.
func (p *File) Release() error {
	if p == nil || p.f == nil {
		return nil
	}
	rmErr := os.Remove(p.path)
	err := p.f.Close()
	p.f = nil
	if rmErr != nil && !os.IsNotExist(rmErr) {
		return errors.Wrapf(rmErr, "remove %s", p.path)
	}
	return errors.Wrapf(err, "close %s", p.path)
}
