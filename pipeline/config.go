// File: pipeline/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Read-only pipeline configuration.

package pipeline

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-rngd/api"
	"github.com/momentics/hioload-rngd/core/fips"
)

// Config is consumed read-only by the pipeline loops. It must not change
// after New.
type Config struct {
	BufferCount   int           // buffers in the pool
	BlockSize     int           // bytes per buffer, a multiple of fips.BlockSize
	DeviceTimeout time.Duration // per-read source timeout
	ReadRetries   int           // consecutive timeouts tolerated before the source is declared dead
	FeedChunk     int           // bytes written to the sink per call
	FillWatermark float64       // feed only while the sink fill level (percent) is below this
	QualityFactor float64       // entropy credited per bit written, in (0, 1]
	FeedInterval  time.Duration // idle period while the sink is above the watermark
	ContinuousRun bool          // enable the continuous-run test
}

// DefaultConfig returns rngd's defaults.
func DefaultConfig() Config {
	return Config{
		BufferCount:   3,
		BlockSize:     fips.BlockSize,
		DeviceTimeout: 10 * time.Second,
		ReadRetries:   30,
		FeedChunk:     64,
		FillWatermark: 90,
		QualityFactor: 1.0,
		FeedInterval:  5 * time.Second,
	}
}

// Validate checks that the pipeline can be built from c.
func (c Config) Validate() error {
	switch {
	case c.BufferCount < 1:
		return invalid("buffer count %d must be at least 1", c.BufferCount)
	case c.BlockSize < fips.BlockSize || c.BlockSize%fips.BlockSize != 0:
		return invalid("block size %d must be a positive multiple of %d", c.BlockSize, fips.BlockSize)
	case c.DeviceTimeout <= 0:
		return invalid("device timeout %v must be positive", c.DeviceTimeout)
	case c.ReadRetries < 1:
		return invalid("read retries %d must be at least 1", c.ReadRetries)
	case c.FeedChunk < 1:
		return invalid("feed chunk %d must be at least 1", c.FeedChunk)
	case c.FillWatermark <= 0 || c.FillWatermark > 100:
		return invalid("fill watermark %.1f%% out of range (0, 100]", c.FillWatermark)
	case c.QualityFactor <= 0 || c.QualityFactor > 1:
		return invalid("quality factor %.3f out of range (0, 1]", c.QualityFactor)
	case c.FeedInterval <= 0:
		return invalid("feed interval %v must be positive", c.FeedInterval)
	}
	return nil
}

// Credit returns the entropy bits credited for n bytes.
func (c Config) Credit(n int) int {
	return int(float64(n*8) * c.QualityFactor)
}

func invalid(format string, args ...any) error {
	return api.Wrap(api.ErrCodeUsage, api.ErrInvalidArgument, fmt.Sprintf(format, args...))
}
