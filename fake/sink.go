// Package fake
// Author: momentics <momentics@gmail.com>
//
// In-memory entropy sink recording everything fed to it.

package fake

import (
	"bytes"
	"sync"
	"time"
)

// Sink is a fake api.EntropySink with a controllable fill level.
type Sink struct {
	mu        sync.Mutex
	data      bytes.Buffer
	credited  int64
	feeds     int
	level     float64
	feedError error
	levelErr  error
	fed       chan struct{}
}

// NewSink returns an empty sink reporting a 0% fill level.
func NewSink() *Sink {
	return &Sink{fed: make(chan struct{}, 1)}
}

// SetFillLevel sets the level returned by FillLevel.
func (s *Sink) SetFillLevel(pct float64) {
	s.mu.Lock()
	s.level = pct
	s.mu.Unlock()
}

// FailFeeds makes subsequent Feed calls return err.
func (s *Sink) FailFeeds(err error) {
	s.mu.Lock()
	s.feedError = err
	s.mu.Unlock()
}

// FailFillLevel makes subsequent FillLevel calls return err.
func (s *Sink) FailFillLevel(err error) {
	s.mu.Lock()
	s.levelErr = err
	s.mu.Unlock()
}

// FillLevel implements api.EntropySink.
func (s *Sink) FillLevel() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level, s.levelErr
}

// Feed implements api.EntropySink.
func (s *Sink) Feed(p []byte, entropyBits int) error {
	s.mu.Lock()
	if s.feedError != nil {
		err := s.feedError
		s.mu.Unlock()
		return err
	}
	s.data.Write(p)
	s.credited += int64(entropyBits)
	s.feeds++
	s.mu.Unlock()
	select {
	case s.fed <- struct{}{}:
	default:
	}
	return nil
}

// Bytes returns a copy of all bytes fed so far.
func (s *Sink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data.Bytes()...)
}

// Len returns the number of bytes fed so far.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Len()
}

// Credited returns the total entropy bits credited.
func (s *Sink) Credited() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credited
}

// Feeds returns the number of successful Feed calls.
func (s *Sink) Feeds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeds
}

// WaitLen blocks until at least n bytes were fed or timeout elapses.
func (s *Sink) WaitLen(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if s.Len() >= n {
			return true
		}
		select {
		case <-s.fed:
		case <-deadline:
			return s.Len() >= n
		}
	}
}

// Discard is a sink that drops everything and always reports an empty pool.
type Discard struct{}

// FillLevel implements api.EntropySink.
func (Discard) FillLevel() (float64, error) { return 0, nil }

// Feed implements api.EntropySink.
func (Discard) Feed(p []byte, entropyBits int) error { return nil }
