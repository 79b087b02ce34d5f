// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the entropy source and sink.

package fake

import (
	"sync"
	"time"

	"golang.org/x/crypto/chacha20"

	"github.com/momentics/hioload-rngd/api"
)

// Source is a deterministic entropy source producing the ChaCha20 keystream
// of a fixed key. Output is cryptographically strong and reproducible.
type Source struct {
	mu     sync.Mutex
	cipher *chacha20.Cipher
	read   int64
	limit  int64 // 0 = unlimited
}

// NewSource returns a keystream source for a 32-byte key.
func NewSource(key []byte) (*Source, error) {
	c, err := chacha20.NewUnauthenticatedCipher(key, make([]byte, chacha20.NonceSize))
	if err != nil {
		return nil, err
	}
	return &Source{cipher: c}, nil
}

// NewLimitedSource is like NewSource but delivers only limit bytes; further
// reads time out, as a device that has gone quiet would.
func NewLimitedSource(key []byte, limit int64) (*Source, error) {
	s, err := NewSource(key)
	if err != nil {
		return nil, err
	}
	s.limit = limit
	return s, nil
}

// Read implements api.EntropySource.
func (s *Source) Read(p []byte, timeout time.Duration) (int, error) {
	s.mu.Lock()
	n := len(p)
	if s.limit > 0 {
		if left := s.limit - s.read; int64(n) > left {
			n = int(left)
		}
	}
	if n > 0 {
		clear(p[:n])
		s.cipher.XORKeyStream(p[:n], p[:n])
		s.read += int64(n)
	}
	s.mu.Unlock()
	if n == 0 && len(p) > 0 {
		time.Sleep(timeout)
		return 0, api.ErrTimeout
	}
	return n, nil
}

// BytesRead returns how many bytes have been delivered.
func (s *Source) BytesRead() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read
}

// Keystream returns the first n bytes a Source keyed with key would deliver.
func Keystream(key []byte, n int) []byte {
	s, err := NewSource(key)
	if err != nil {
		panic(err)
	}
	out := make([]byte, n)
	_, _ = s.Read(out, 0)
	return out
}

// ScriptedSource replays a fixed sequence of chunks. Once exhausted it
// returns the configured terminal error, or times out after the caller's
// timeout when none is set.
type ScriptedSource struct {
	mu       sync.Mutex
	chunks   [][]byte
	terminal error
	reads    int
	wake     chan struct{}
}

// NewScriptedSource creates a source replaying chunks in order.
func NewScriptedSource(chunks ...[]byte) *ScriptedSource {
	cp := make([][]byte, len(chunks))
	for i, c := range chunks {
		cp[i] = append([]byte(nil), c...)
	}
	return &ScriptedSource{chunks: cp, wake: make(chan struct{}, 1)}
}

// Push appends a chunk and wakes a pending reader.
func (s *ScriptedSource) Push(chunk []byte) {
	s.mu.Lock()
	s.chunks = append(s.chunks, append([]byte(nil), chunk...))
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// FailWith makes every read after the script is exhausted return err.
func (s *ScriptedSource) FailWith(err error) {
	s.mu.Lock()
	s.terminal = err
	s.mu.Unlock()
}

// Reads returns the number of Read calls served.
func (s *ScriptedSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Read implements api.EntropySource.
func (s *ScriptedSource) Read(p []byte, timeout time.Duration) (int, error) {
	for {
		s.mu.Lock()
		s.reads++
		if len(s.chunks) > 0 {
			n := copy(p, s.chunks[0])
			if n == len(s.chunks[0]) {
				s.chunks = s.chunks[1:]
			} else {
				s.chunks[0] = s.chunks[0][n:]
			}
			s.mu.Unlock()
			return n, nil
		}
		terminal := s.terminal
		s.mu.Unlock()

		if terminal != nil {
			return 0, terminal
		}
		select {
		case <-s.wake:
			continue
		case <-time.After(timeout):
			return 0, api.ErrTimeout
		}
	}
}
