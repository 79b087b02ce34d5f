//go:build !windows && !plan9

// File: internal/logging/syslog_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package logging

import (
	"log"
	"log/syslog"

	"github.com/pkg/errors"
)

// NewSyslog returns a root logger writing to the system log with facility
// LOG_DAEMON under tag.
func NewSyslog(tag string, level Level) (*Logger, error) {
	w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, tag)
	if err != nil {
		return nil, errors.Wrap(err, "logging: connect to syslog")
	}
	return FromStd(log.New(w, "", 0), level), nil
}
