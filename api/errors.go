// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-rngd.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the daemon.
var (
	ErrInvalidArgument   = fmt.Errorf("invalid argument")
	ErrTimeout           = fmt.Errorf("operation timeout")
	ErrDevice            = fmt.Errorf("entropy source device error")
	ErrSinkWrite         = fmt.Errorf("entropy sink write error")
	ErrCancelled         = fmt.Errorf("pipeline cancelled")
	ErrIllegalTransition = fmt.Errorf("illegal buffer state transition")
	ErrNotSupported      = fmt.Errorf("operation not supported")
	ErrAlreadyLocked     = fmt.Errorf("resource already locked")
)

// ErrorCode represents specific error conditions in the daemon.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeUsage
	ErrCodeOS
	ErrCodeDevice
	ErrCodeSink
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap builds a structured error around cause.
func Wrap(code ErrorCode, cause error, message string) *Error {
	e := NewError(code, message)
	e.Err = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Process exit statuses, compatible with rngd.
const (
	ExitSuccess = 0
	ExitFail    = 1
	ExitUsage   = 10
	ExitOSErr   = 11
)

// ExitStatus maps an error returned by the daemon to a process exit status.
func ExitStatus(err error) int {
	if err == nil || errors.Is(err, ErrCancelled) {
		return ExitSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case ErrCodeOK:
			return ExitSuccess
		case ErrCodeUsage:
			return ExitUsage
		case ErrCodeOS, ErrCodeDevice, ErrCodeSink:
			return ExitOSErr
		}
		return ExitFail
	}
	switch {
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrAlreadyLocked):
		return ExitUsage
	case errors.Is(err, ErrDevice), errors.Is(err, ErrSinkWrite), errors.Is(err, ErrNotSupported):
		return ExitOSErr
	}
	return ExitFail
}
