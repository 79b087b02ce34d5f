// File: facade/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Daemon configuration, rngd defaults and the table of known HRNG profiles.

package facade

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-rngd/api"
	"github.com/momentics/hioload-rngd/core/fips"
	"github.com/momentics/hioload-rngd/internal/kernel"
	"github.com/momentics/hioload-rngd/pipeline"
)

// Config holds parameters immutable per run.
type Config struct {
	EntropySource string        // Entropy source device or file
	RandomDevice  string        // Kernel random device fed with validated data
	PidFile       string        // Lock file held while running
	Foreground    bool          // Skip the pidfile
	FeedInterval  time.Duration // Re-check period while the kernel pool is above the watermark
	FeedChunk     int           // Bytes per write to the kernel
	FillWatermark int           // Negative: percent of pool capacity; positive: bits
	DeviceTimeout time.Duration // Per-read source timeout
	ReadRetries   int           // Consecutive source timeouts tolerated
	Entropy       float64       // Entropy credited per bit, (0, 1]
	Buffers       int           // Buffer pool size
	BlockSize     int           // Buffer size, a multiple of 2500 bytes
	HRNG          string        // Profile tag, optional
	ContinuousRun bool          // Enable the continuous-run FIPS test
	StatsInterval time.Duration // Period of the statistics dump
	CPUs          []int         // CPUs to pin the pipeline goroutines to, empty disables pinning
	DryRun        bool          // Use an in-memory source and a discarding sink
}

// DefaultConfig returns rngd's defaults.
func DefaultConfig() *Config {
	return &Config{
		EntropySource: "/dev/hwrng",
		RandomDevice:  "/dev/random",
		PidFile:       "/var/run/rngd.pid",
		FeedInterval:  5 * time.Second,
		FeedChunk:     64,
		FillWatermark: -90,
		DeviceTimeout: 10 * time.Second,
		ReadRetries:   30,
		Entropy:       1.0,
		Buffers:       3,
		BlockSize:     fips.BlockSize,
		StatsInterval: time.Hour,
	}
}

// Validate checks the fields the pipeline does not check itself.
func (c *Config) Validate() error {
	switch {
	case !c.DryRun && c.EntropySource == "":
		return usage("no entropy source configured")
	case !c.DryRun && c.RandomDevice == "":
		return usage("no random device configured")
	case !c.Foreground && !c.DryRun && c.PidFile == "":
		return usage("no pidfile configured")
	case c.StatsInterval <= 0:
		return usage("stats interval %v must be positive", c.StatsInterval)
	}
	if c.HRNG != "" {
		if _, ok := LookupProfile(c.HRNG); !ok {
			return usage("unknown HRNG profile %q", c.HRNG)
		}
	}
	// the real pool size is only known once the sink is open
	_, err := c.pipelineConfig(kernel.DefaultPoolBits)
	return err
}

// pipelineConfig derives the pipeline configuration for a kernel pool of
// poolBits bits.
func (c *Config) pipelineConfig(poolBits int) (pipeline.Config, error) {
	wm, err := kernel.Watermark(c.FillWatermark, poolBits)
	if err != nil {
		return pipeline.Config{}, err
	}
	pc := pipeline.Config{
		BufferCount:   c.Buffers,
		BlockSize:     c.BlockSize,
		DeviceTimeout: c.DeviceTimeout,
		ReadRetries:   c.ReadRetries,
		FeedChunk:     c.FeedChunk,
		FillWatermark: wm,
		QualityFactor: c.Entropy,
		FeedInterval:  c.FeedInterval,
		ContinuousRun: c.ContinuousRun,
	}
	return pc, pc.Validate()
}

func usage(format string, args ...any) error {
	return api.Wrap(api.ErrCodeUsage, api.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Profile holds known-good parameters for a hardware RNG.
type Profile struct {
	Tag     string  // Short name
	Name    string  // Full name
	Width   int     // Best width for the continuous-run test, in bits
	Buffers int     // Recommended buffer count
	Entropy float64 // Recommended entropy per bit
}

var profiles = []Profile{
	// Intel FWH (82802AB/AC), hw_random or i810_rng driver. Slow, about
	// 20Kibits/s with current drivers; H > 0.999.
	{Tag: "intelfwh", Name: "Intel FWH (82802AB/AC) RNG", Width: 32, Buffers: 5, Entropy: 0.998},
}

// Profiles returns the known HRNG profiles.
func Profiles() []Profile {
	return append([]Profile(nil), profiles...)
}

// LookupProfile finds a profile by tag.
func LookupProfile(tag string) (Profile, bool) {
	for _, p := range profiles {
		if p.Tag == tag {
			return p, true
		}
	}
	return Profile{}, false
}

// Seen marks options set explicitly on the command line.
type Seen uint8

const (
	SeenBuffers Seen = 1 << iota
	SeenEntropy
)

// ApplyProfile fills Buffers and Entropy from the profile tagged tag,
// leaving alone whatever was set explicitly.
func (c *Config) ApplyProfile(tag string, seen Seen) error {
	p, ok := LookupProfile(tag)
	if !ok {
		return usage("unknown HRNG profile %q", tag)
	}
	c.HRNG = tag
	if seen&SeenBuffers == 0 {
		c.Buffers = p.Buffers
	}
	if seen&SeenEntropy == 0 {
		c.Entropy = p.Entropy
	}
	return nil
}
