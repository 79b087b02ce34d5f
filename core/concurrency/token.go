// File: core/concurrency/token.go
// Package concurrency provides the cooperative cancellation token shared by
// the pipeline goroutines.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Token is set once by the shutdown glue (signal handler, fatal loop error)
// and polled by every loop at its blocking boundaries. Hooks registered with
// OnCancel let blocking primitives wake their waiters.

package concurrency

import (
	"sync"
	"sync/atomic"
)

// Token is a one-shot cancellation flag.
type Token struct {
	cancelled atomic.Bool
	doneCh    chan struct{}

	mu    sync.Mutex
	hooks []func()
	cause error
}

// NewToken returns an unset token.
func NewToken() *Token {
	return &Token{doneCh: make(chan struct{})}
}

// Cancel sets the flag, closes Done and runs registered hooks once.
// The first non-nil cause is retained. Reports whether this call set the flag.
func (t *Token) Cancel(cause error) bool {
	t.mu.Lock()
	if t.cause == nil && cause != nil {
		t.cause = cause
	}
	if !t.cancelled.CompareAndSwap(false, true) {
		t.mu.Unlock()
		return false
	}
	close(t.doneCh)
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return true
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

// Done is closed when the token is cancelled.
func (t *Token) Done() <-chan struct{} {
	return t.doneCh
}

// Cause returns the first error passed to Cancel, or nil.
func (t *Token) Cause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}

// OnCancel registers fn to run when the token is cancelled. If it already
// is, fn runs immediately on the caller's goroutine.
func (t *Token) OnCancel(fn func()) {
	t.mu.Lock()
	if t.cancelled.Load() {
		t.mu.Unlock()
		fn()
		return
	}
	t.hooks = append(t.hooks, fn)
	t.mu.Unlock()
}
