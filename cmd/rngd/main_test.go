package main

import (
	"bytes"
	"errors"
	"flag"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/momentics/hioload-rngd/api"
)

func TestParseDefaults(t *testing.T) {
	o, err := parseFlags(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	c := o.cfg
	if c.EntropySource != "/dev/hwrng" || c.RandomDevice != "/dev/random" || c.PidFile != "/var/run/rngd.pid" {
		t.Errorf("paths %q %q %q", c.EntropySource, c.RandomDevice, c.PidFile)
	}
	if c.FeedInterval != 5*time.Second || c.DeviceTimeout != 10*time.Second || c.StatsInterval != time.Hour {
		t.Errorf("intervals %v %v %v", c.FeedInterval, c.DeviceTimeout, c.StatsInterval)
	}
	if c.FeedChunk != 64 || c.FillWatermark != -90 || c.Buffers != 3 || c.Entropy != 1.0 {
		t.Errorf("tuning %d %d %d %v", c.FeedChunk, c.FillWatermark, c.Buffers, c.Entropy)
	}
}

func TestParseOverrides(t *testing.T) {
	o, err := parseFlags(strings.Fields("-r /dev/urandom -o /tmp/sink -s 128 -W 2048 -T 2 -t 1 -B 4 -H 0.5 -cpus 0-1 -continuous -f -v"), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	c := o.cfg
	if c.EntropySource != "/dev/urandom" || c.RandomDevice != "/tmp/sink" || c.FeedChunk != 128 || c.FillWatermark != 2048 {
		t.Errorf("overrides not applied: %+v", c)
	}
	if c.DeviceTimeout != 2*time.Second || c.FeedInterval != time.Second || c.Buffers != 4 || c.Entropy != 0.5 {
		t.Errorf("overrides not applied: %+v", c)
	}
	if !reflect.DeepEqual(c.CPUs, []int{0, 1}) || !c.ContinuousRun || !c.Foreground || !o.verbose {
		t.Errorf("flags not applied: %+v", c)
	}
}

func TestProfileKeepsExplicitFlags(t *testing.T) {
	o, err := parseFlags([]string{"-hrng", "intelfwh"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if o.cfg.Buffers != 5 || o.cfg.Entropy != 0.998 {
		t.Errorf("profile not applied: %d %v", o.cfg.Buffers, o.cfg.Entropy)
	}
	o, err = parseFlags([]string{"-hrng", "intelfwh", "-H", "0.9"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if o.cfg.Buffers != 5 || o.cfg.Entropy != 0.9 {
		t.Errorf("explicit -H overridden: %d %v", o.cfg.Buffers, o.cfg.Entropy)
	}
}

func TestParseErrors(t *testing.T) {
	for _, args := range [][]string{
		{"-B", "x"},
		{"-nosuchflag"},
		{"-cpus", "a"},
		{"-hrng", "unknown"},
		{"extra"},
	} {
		_, err := parseFlags(args, &bytes.Buffer{})
		if api.ExitStatus(err) != api.ExitUsage {
			t.Errorf("%v: err=%v status=%d", args, err, api.ExitStatus(err))
		}
	}
	if _, err := parseFlags([]string{"-h"}, &bytes.Buffer{}); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("-h: %v", err)
	}
}

func TestRunExitStatus(t *testing.T) {
	var out bytes.Buffer
	if got := run([]string{"-B", "0", "-f"}, &out); got != api.ExitUsage {
		t.Errorf("bad buffer count: exit %d", got)
	}
	if got := run([]string{"-list-hrng"}, &out); got != api.ExitSuccess || !strings.Contains(out.String(), "intelfwh") {
		t.Errorf("-list-hrng: exit %d, output %q", got, out.String())
	}
	out.Reset()
	if got := run([]string{"-f", "-q", "-r", t.TempDir() + "/missing"}, &out); got != api.ExitOSErr {
		t.Errorf("missing source: exit %d", got)
	}
}
