//go:build windows || plan9

// File: internal/logging/syslog_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package logging

import "github.com/momentics/hioload-rngd/api"

// NewSyslog is not available on this platform.
func NewSyslog(tag string, level Level) (*Logger, error) {
	return nil, api.ErrNotSupported
}
