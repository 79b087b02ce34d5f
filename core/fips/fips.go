// File: core/fips/fips.go
// Package fips implements the FIPS 140-2 statistical test battery used to
// accept or reject blocks of raw entropy.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The engine is pure: a verdict depends only on the block content and the
// State carried over from the previous block. Bits are consumed most
// significant first within each byte.

package fips

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/momentics/hioload-rngd/api"
)

// BlockSize is the FIPS 140-2 block size in bytes (20000 bits).
const BlockSize = 2500

const (
	nibbles    = BlockSize * 2
	monobitMin = 9654
	monobitMax = 10346
	pokerMin   = 1.03
	pokerMax   = 57.4
	longRunMax = 26 // a run of this length or longer fails
)

// FIPS 140-2 acceptance intervals for runs of length 1..5 and 6+,
// identical for runs of zeros and runs of ones.
var (
	runsMin = [6]int{2343, 1135, 542, 251, 111, 111}
	runsMax = [6]int{2657, 1365, 708, 373, 201, 201}
)

// Test identifies one sub-test of the battery.
type Test int

const (
	Monobit Test = iota
	Poker
	Runs
	LongRun
	ContinuousRun
	NumTests
)

var testNames = [NumTests]string{"Monobit", "Poker", "Runs", "Long run", "Continuous run"}

func (t Test) String() string {
	if t < 0 || t >= NumTests {
		return fmt.Sprintf("Test(%d)", int(t))
	}
	return testNames[t]
}

// State is the residual carried between consecutive blocks.
// The zero value is the startup state.
type State struct {
	LastBit   uint8 // value of the run still open at the block boundary
	RunLength int   // length of that run, 0 before the first block
	Last32    uint32
	HasLast32 bool
}

// AfterReject returns the state to carry past a failed block. The long-run
// residual restarts; the continuous-run reference word is kept.
func (s State) AfterReject() State {
	return State{Last32: s.Last32, HasLast32: s.HasLast32}
}

// Result holds the verdicts and raw statistics of one block.
type Result struct {
	Ones       int
	PokerX     float64
	Runs       [2][6]int // Runs[bit][length-1], last bucket is length >= 6
	LongestRun int       // longest run observed, including the carried run
	failed     uint8
}

// Passed reports whether every evaluated sub-test passed.
func (r Result) Passed() bool { return r.failed == 0 }

// Failed reports whether sub-test t failed.
func (r Result) Failed(t Test) bool { return r.failed&(1<<uint(t)) != 0 }

// Failures lists the failed sub-tests in battery order.
func (r Result) Failures() []Test {
	var out []Test
	for t := Monobit; t < NumTests; t++ {
		if r.Failed(t) {
			out = append(out, t)
		}
	}
	return out
}

func (r *Result) fail(t Test) { r.failed |= 1 << uint(t) }

// Engine runs the battery. It carries no mutable state and is safe for
// concurrent use.
type Engine struct {
	continuous bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithContinuousRun enables the continuous run test: two equal consecutive
// 32-bit words fail the block.
func WithContinuousRun() Option {
	return func(e *Engine) { e.continuous = true }
}

// New builds an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Continuous reports whether the continuous run test is enabled.
func (e *Engine) Continuous() bool { return e.continuous }

// Seed returns a startup state whose continuous-run reference word is taken
// from the first four bytes of p. Those bytes must not be fed as data.
func Seed(p []byte) State {
	if len(p) < 4 {
		return State{}
	}
	return State{Last32: binary.BigEndian.Uint32(p), HasLast32: true}
}

// Run tests one block against the battery.
func (e *Engine) Run(prev State, block []byte) (Result, State, error) {
	if len(block) != BlockSize {
		return Result{}, prev, fmt.Errorf("fips: block of %d bytes, want %d: %w", len(block), BlockSize, api.ErrInvalidArgument)
	}

	var res Result
	var poker [16]int

	// per-block run for the runs test
	curBit, curLen := uint8(0), 0
	// run for the long run test, continuing the previous block
	lrBit, lrLen := prev.LastBit, prev.RunLength
	longest := 0

	for _, b := range block {
		poker[b>>4]++
		poker[b&0x0f]++
		res.Ones += bits.OnesCount8(b)

		for j := 7; j >= 0; j-- {
			bit := (b >> uint(j)) & 1
			if curLen > 0 && bit == curBit {
				curLen++
			} else {
				if curLen > 0 {
					res.countRun(curBit, curLen)
				}
				curBit, curLen = bit, 1
			}
			if lrLen > 0 && bit == lrBit {
				lrLen++
			} else {
				lrBit, lrLen = bit, 1
			}
			if lrLen > longest {
				longest = lrLen
			}
		}
	}
	res.countRun(curBit, curLen)
	res.LongestRun = longest

	if res.Ones < monobitMin || res.Ones > monobitMax {
		res.fail(Monobit)
	}

	sum := 0
	for _, f := range poker {
		sum += f * f
	}
	res.PokerX = 16.0*float64(sum)/nibbles - nibbles
	if res.PokerX < pokerMin || res.PokerX > pokerMax {
		res.fail(Poker)
	}

	for bit := 0; bit < 2; bit++ {
		for i := 0; i < 6; i++ {
			if n := res.Runs[bit][i]; n < runsMin[i] || n > runsMax[i] {
				res.fail(Runs)
			}
		}
	}

	if longest >= longRunMax {
		res.fail(LongRun)
	}

	next := State{LastBit: lrBit, RunLength: lrLen, Last32: prev.Last32, HasLast32: prev.HasLast32}
	if e.continuous {
		for off := 0; off+4 <= BlockSize; off += 4 {
			w := binary.BigEndian.Uint32(block[off:])
			if next.HasLast32 && w == next.Last32 {
				res.fail(ContinuousRun)
			}
			next.Last32, next.HasLast32 = w, true
		}
	}
	return res, next, nil
}

func (r *Result) countRun(bit uint8, n int) {
	if n > 6 {
		n = 6
	}
	r.Runs[bit][n-1]++
}
