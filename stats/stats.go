// File: stats/stats.go
// Package stats tracks pipeline counters in three independently locked
// groups so the source, validator and sink never contend on one lock.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Group 1 belongs to the source, group 2 to the validator, group 3 to the
// sink. Snapshot visits the groups one at a time and never holds two locks,
// so the report is per-group consistent but not globally atomic.

package stats

import (
	"sync"
	"time"

	"github.com/momentics/hioload-rngd/core/fips"
)

// Throughput accumulates per-sample transfer rates.
type Throughput struct {
	Samples uint64
	Bits    uint64
	Elapsed time.Duration
	Min     float64 // bits per second, slowest sample
	Max     float64 // bits per second, fastest sample
}

// Add records bits processed in d.
func (t *Throughput) Add(bits int, d time.Duration) {
	if d <= 0 {
		d = time.Nanosecond
	}
	rate := float64(bits) / d.Seconds()
	if t.Samples == 0 || rate < t.Min {
		t.Min = rate
	}
	if t.Samples == 0 || rate > t.Max {
		t.Max = rate
	}
	t.Samples++
	t.Bits += uint64(bits)
	t.Elapsed += d
}

// Avg returns the overall rate in bits per second.
func (t Throughput) Avg() float64 {
	if t.Elapsed <= 0 {
		return 0
	}
	return float64(t.Bits) / t.Elapsed.Seconds()
}

// Durations accumulates min/max/total of a duration series.
type Durations struct {
	Samples uint64
	Total   time.Duration
	Min     time.Duration
	Max     time.Duration
}

// Add records one sample.
func (d *Durations) Add(v time.Duration) {
	if d.Samples == 0 || v < d.Min {
		d.Min = v
	}
	if d.Samples == 0 || v > d.Max {
		d.Max = v
	}
	d.Samples++
	d.Total += v
}

// Avg returns the mean sample.
func (d Durations) Avg() time.Duration {
	if d.Samples == 0 {
		return 0
	}
	return d.Total / time.Duration(d.Samples)
}

type sourceGroup struct {
	mu            sync.Mutex
	bytesReceived uint64
	blockFill     Throughput
}

type fipsGroup struct {
	mu         sync.Mutex
	good       uint64
	bad        uint64
	failures   [fips.NumTests]uint64
	blockCheck Throughput
}

type sinkGroup struct {
	mu          sync.Mutex
	bytesSent   uint64
	entropySent uint64
	lowWater    int
	starved     uint64
	starveWait  Durations
}

// Tracker is the statistics context shared by the pipeline goroutines.
type Tracker struct {
	g1 sourceGroup
	g2 fipsGroup
	g3 sinkGroup
}

// New creates a tracker for a pool of bufferCount buffers.
func New(bufferCount int) *Tracker {
	t := &Tracker{}
	t.g3.lowWater = bufferCount - 1 // one is always in use
	return t
}

// RecordReceived counts n bytes read from the source, taking fill long.
func (t *Tracker) RecordReceived(n int, fill time.Duration) {
	t.g1.mu.Lock()
	t.g1.bytesReceived += uint64(n)
	t.g1.blockFill.Add(n*8, fill)
	t.g1.mu.Unlock()
}

// RecordFIPSResult counts one tested block and its failed sub-tests.
func (t *Tracker) RecordFIPSResult(res fips.Result, elapsed time.Duration) {
	t.g2.mu.Lock()
	if res.Passed() {
		t.g2.good++
	} else {
		t.g2.bad++
		for _, f := range res.Failures() {
			t.g2.failures[f]++
		}
	}
	t.g2.blockCheck.Add(fips.BlockSize*8, elapsed)
	t.g2.mu.Unlock()
}

// RecordSent counts n bytes written to the sink with credit entropy bits.
func (t *Tracker) RecordSent(n, credit int) {
	t.g3.mu.Lock()
	t.g3.bytesSent += uint64(n)
	t.g3.entropySent += uint64(credit)
	t.g3.mu.Unlock()
}

// RecordStarvation counts one wait of the sink for a validated buffer.
func (t *Tracker) RecordStarvation(wait time.Duration) {
	t.g3.mu.Lock()
	t.g3.starved++
	t.g3.starveWait.Add(wait)
	t.g3.mu.Unlock()
}

// RecordBufferLevel lowers the recorded buffer low-water mark.
func (t *Tracker) RecordBufferLevel(lowWater int) {
	t.g3.mu.Lock()
	if lowWater < t.g3.lowWater {
		t.g3.lowWater = lowWater
	}
	t.g3.mu.Unlock()
}

// Snapshot copies all counters without modifying them.
func (t *Tracker) Snapshot() Report {
	var r Report

	t.g1.mu.Lock()
	r.BytesReceived = t.g1.bytesReceived
	r.SourceSpeed = t.g1.blockFill
	t.g1.mu.Unlock()

	t.g2.mu.Lock()
	r.GoodBlocks = t.g2.good
	r.BadBlocks = t.g2.bad
	r.TestFailures = t.g2.failures
	r.FIPSSpeed = t.g2.blockCheck
	t.g2.mu.Unlock()

	t.g3.mu.Lock()
	r.BytesSent = t.g3.bytesSent
	r.EntropySent = t.g3.entropySent
	r.BufferLowWater = t.g3.lowWater
	r.Starvations = t.g3.starved
	r.StarvationWait = t.g3.starveWait
	t.g3.mu.Unlock()

	return r
}

// Printer receives report lines.
type Printer interface {
	Infof(format string, args ...any)
}

// SnapshotAndLog takes a snapshot and writes it line by line to p.
func (t *Tracker) SnapshotAndLog(p Printer) Report {
	r := t.Snapshot()
	for _, line := range r.Lines() {
		p.Infof("%s", line)
	}
	return r
}
