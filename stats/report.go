// File: stats/report.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Point-in-time copy of the tracker and its textual rendering.

package stats

import (
	"fmt"

	"github.com/momentics/hioload-rngd/core/fips"
)

// Report is a snapshot of every counter group.
type Report struct {
	// group 1
	BytesReceived uint64
	SourceSpeed   Throughput

	// group 2
	GoodBlocks   uint64
	BadBlocks    uint64
	TestFailures [fips.NumTests]uint64
	FIPSSpeed    Throughput

	// group 3
	BytesSent      uint64
	EntropySent    uint64 // bits credited to the kernel
	BufferLowWater int
	Starvations    uint64
	StarvationWait Durations
}

const statPrefix = "stats: "

// Lines renders the report the way rngd dumps its statistics.
func (r Report) Lines() []string {
	lines := []string{
		fmt.Sprintf("%d bits received from HRNG source", r.BytesReceived*8),
		fmt.Sprintf("%d bits sent to kernel pool", r.BytesSent*8),
		fmt.Sprintf("%d entropy added to kernel pool", r.EntropySent),
		fmt.Sprintf("%d FIPS 140-2 successes", r.GoodBlocks),
		fmt.Sprintf("%d FIPS 140-2 failures", r.BadBlocks),
	}
	for t := fips.Monobit; t < fips.NumTests; t++ {
		lines = append(lines, fmt.Sprintf("FIPS 140-2(%s): %d", t, r.TestFailures[t]))
	}
	lines = append(lines,
		bandwidthLine("HRNG source speed", r.SourceSpeed),
		bandwidthLine("FIPS tests speed", r.FIPSSpeed),
		fmt.Sprintf("Lowest ready-buffers level: %d", r.BufferLowWater),
		fmt.Sprintf("Entropy starvations: %d", r.Starvations),
		fmt.Sprintf("Time spent starving for entropy: (min=%d; avg=%d; max=%d)us",
			r.StarvationWait.Min.Microseconds(), r.StarvationWait.Avg().Microseconds(), r.StarvationWait.Max.Microseconds()),
	)
	for i := range lines {
		lines[i] = statPrefix + lines[i]
	}
	return lines
}

func bandwidthLine(label string, t Throughput) string {
	const kibit = 1024
	return fmt.Sprintf("%s: (min=%.3f; avg=%.3f; max=%.3f)Kibits/s",
		label, t.Min/kibit, t.Avg()/kibit, t.Max/kibit)
}

// Metrics flattens the report for the control metrics registry.
func (r Report) Metrics() map[string]any {
	m := map[string]any{
		"source.bytes_received":    r.BytesReceived,
		"source.speed_bps":         r.SourceSpeed.Avg(),
		"fips.good_blocks":         r.GoodBlocks,
		"fips.bad_blocks":          r.BadBlocks,
		"fips.speed_bps":           r.FIPSSpeed.Avg(),
		"sink.bytes_sent":          r.BytesSent,
		"sink.entropy_bits":        r.EntropySent,
		"sink.buffer_low_water":    r.BufferLowWater,
		"sink.starvations":         r.Starvations,
		"sink.starvation_wait_avg": r.StarvationWait.Avg(),
	}
	for t := fips.Monobit; t < fips.NumTests; t++ {
		m[fmt.Sprintf("fips.failures.%d", int(t))] = r.TestFailures[t]
	}
	return m
}
