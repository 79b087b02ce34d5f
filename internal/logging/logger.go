// File: internal/logging/logger.go
// Package logging provides the leveled logger used by every daemon layer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Messages are written through a standard library *log.Logger, prefixed
// with the emitting component ("[pipeline] ..."). The level is shared by all
// component loggers derived from one root and can change at runtime.

package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
)

// Level represents logging verbosity.
type Level int32

const (
	LevelOff   Level = 0 // No logging
	LevelError Level = 1 // Errors only
	LevelWarn  Level = 2 // Warnings and errors
	LevelInfo  Level = 3 // Info, warnings, errors
	LevelDebug Level = 4 // All messages including debug
)

var levelTags = map[Level]string{
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
}

// Logger is a leveled, component-scoped logger.
type Logger struct {
	out       *log.Logger
	level     *atomic.Int32
	component string
}

// New creates a root logger writing to w at the given level.
func New(w io.Writer, level Level) *Logger {
	lv := &atomic.Int32{}
	lv.Store(int32(level))
	return &Logger{out: log.New(w, "", log.LstdFlags), level: lv}
}

// NewStd returns a root logger writing to stderr at LevelInfo.
func NewStd() *Logger {
	return New(os.Stderr, LevelInfo)
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, LevelOff)
}

// FromStd wraps an existing *log.Logger, e.g. one writing to syslog.
func FromStd(l *log.Logger, level Level) *Logger {
	lv := &atomic.Int32{}
	lv.Store(int32(level))
	return &Logger{out: l, level: lv}
}

// Named derives a logger for component sharing the output and level.
func (l *Logger) Named(component string) *Logger {
	return &Logger{out: l.out, level: l.level, component: component}
}

// SetLevel changes the level of l and every logger derived from its root.
func (l *Logger) SetLevel(level Level) { l.level.Store(int32(level)) }

// Level returns the current level.
func (l *Logger) Level() Level { return Level(l.level.Load()) }

// Enabled reports whether messages at level are emitted.
func (l *Logger) Enabled(level Level) bool { return l != nil && l.Level() >= level }

func (l *Logger) logf(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.component != "" {
		msg = "[" + l.component + "] " + msg
	}
	_ = l.out.Output(3, levelTags[level]+" "+msg)
}

func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
