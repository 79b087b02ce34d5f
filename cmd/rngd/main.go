// File: cmd/rngd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// rngd checks and feeds random data from a hardware device to the kernel
// entropy pool.
// - SIGTERM/SIGINT stop the pipeline, dump statistics and exit
// - SIGUSR1 dumps statistics immediately
// - Exit status: 0 clean, 1 failure, 10 usage error, 11 OS/resource error

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/momentics/hioload-rngd/affinity"
	"github.com/momentics/hioload-rngd/api"
	"github.com/momentics/hioload-rngd/facade"
	"github.com/momentics/hioload-rngd/internal/logging"
	"github.com/momentics/hioload-rngd/internal/pidfile"
)

const doc = "Check and feed random data from hardware device to kernel entropy pool.\n"

type options struct {
	cfg      *facade.Config
	syslog   bool
	verbose  bool
	quiet    bool
	profiles bool
}

// parseFlags maps the command line onto a daemon configuration.
func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{cfg: facade.DefaultConfig()}
	cfg := o.cfg
	fs := flag.NewFlagSet("rngd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: rngd [options]\n%s\n", doc)
		fs.PrintDefaults()
	}

	var (
		timeout   = fs.Int("T", int(cfg.DeviceTimeout/time.Second), "entropy source read timeout, seconds")
		interval  = fs.Int("t", int(cfg.FeedInterval/time.Second), "kernel pool re-check interval while above the watermark, seconds")
		statsSecs = fs.Int("stats-interval", int(cfg.StatsInterval/time.Second), "statistics dump interval, seconds")
		hrng      = fs.String("hrng", "", "load known-good defaults for this HRNG (see -list-hrng)")
		cpus      = fs.String("cpus", "", "pin the source, validator and sink goroutines to these CPUs, e.g. 0,2-3")
	)
	fs.StringVar(&cfg.EntropySource, "r", cfg.EntropySource, "entropy source device or file")
	fs.StringVar(&cfg.RandomDevice, "o", cfg.RandomDevice, "kernel random device")
	fs.StringVar(&cfg.PidFile, "p", cfg.PidFile, "pidfile")
	fs.BoolVar(&cfg.Foreground, "f", false, "do not take the pidfile lock")
	fs.IntVar(&cfg.FeedChunk, "s", cfg.FeedChunk, "bytes written to the kernel per write")
	fs.IntVar(&cfg.FillWatermark, "W", cfg.FillWatermark, "fill watermark: negative is percent of pool size, positive is bits")
	fs.IntVar(&cfg.ReadRetries, "read-retries", cfg.ReadRetries, "consecutive source timeouts before giving up")
	fs.Float64Var(&cfg.Entropy, "H", cfg.Entropy, "entropy per bit of source data, (0, 1]")
	fs.IntVar(&cfg.Buffers, "B", cfg.Buffers, "number of buffers")
	fs.BoolVar(&cfg.ContinuousRun, "continuous", false, "enable the FIPS continuous-run test")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "run the pipeline on an in-memory source and discard the output")
	fs.BoolVar(&o.syslog, "syslog", false, "log to syslog instead of stderr")
	fs.BoolVar(&o.verbose, "v", false, "verbose logging")
	fs.BoolVar(&o.quiet, "q", false, "log errors only")
	fs.BoolVar(&o.profiles, "list-hrng", false, "list known HRNG profiles and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, api.Wrap(api.ErrCodeUsage, api.ErrInvalidArgument, err.Error())
	}
	if fs.NArg() > 0 {
		return nil, api.Wrap(api.ErrCodeUsage, api.ErrInvalidArgument, fmt.Sprintf("unexpected argument %q", fs.Arg(0)))
	}

	cfg.DeviceTimeout = time.Duration(*timeout) * time.Second
	cfg.FeedInterval = time.Duration(*interval) * time.Second
	cfg.StatsInterval = time.Duration(*statsSecs) * time.Second
	if *cpus != "" {
		list, err := affinity.ParseCPUList(*cpus)
		if err != nil {
			return nil, api.Wrap(api.ErrCodeUsage, err, "-cpus")
		}
		cfg.CPUs = list
	}
	if *hrng != "" {
		var seen facade.Seen
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "B":
				seen |= facade.SeenBuffers
			case "H":
				seen |= facade.SeenEntropy
			}
		})
		if err := cfg.ApplyProfile(*hrng, seen); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *options) logger() (*logging.Logger, error) {
	level := logging.LevelInfo
	switch {
	case o.quiet:
		level = logging.LevelError
	case o.verbose:
		level = logging.LevelDebug
	}
	if o.syslog {
		return logging.NewSyslog("rngd", level)
	}
	return logging.New(os.Stderr, level), nil
}

// run executes the daemon and returns its exit status.
func run(args []string, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return api.ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(stderr, "rngd: %v\n", err)
		return api.ExitStatus(err)
	}
	if o.profiles {
		for _, p := range facade.Profiles() {
			fmt.Fprintf(stderr, "%-10s %s (buffers %d, entropy %.3f)\n", p.Tag, p.Name, p.Buffers, p.Entropy)
		}
		return api.ExitSuccess
	}
	lg, err := o.logger()
	if err != nil {
		fmt.Fprintf(stderr, "rngd: %v\n", err)
		return api.ExitOSErr
	}
	mlog := lg.Named("main")

	d, err := facade.New(o.cfg, facade.WithLogger(lg))
	if err != nil {
		mlog.Errorf("%v", err)
		return api.ExitStatus(err)
	}

	if !o.cfg.Foreground && !o.cfg.DryRun {
		pf, err := pidfile.Acquire(o.cfg.PidFile)
		if err != nil {
			var e *api.Error
			if errors.As(err, &e) && e.Context["pid"] != nil {
				mlog.Errorf("%v, running daemon's pid may be %v", err, e.Context["pid"])
			} else {
				mlog.Errorf("%v", err)
			}
			_ = d.Shutdown()
			_ = d.Wait()
			return api.ExitStatus(err)
		}
		defer func() {
			if err := pf.Release(); err != nil {
				mlog.Warnf("%v", err)
			}
		}()
	}

	stopSignals := handleSignals(d, mlog)
	defer stopSignals()

	return api.ExitStatus(d.Run())
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}
