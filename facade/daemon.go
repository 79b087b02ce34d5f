// File: facade/daemon.go
// Unified facade layer for hioload-rngd.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines the Daemon struct, which aggregates the entropy source,
// the kernel sink, the pipeline, statistics and control interfaces behind a
// single facade. It wires components from immutable configuration, runs the
// three pipeline goroutines plus the statistics dumper, and exposes
// start/shutdown/wait and the Control surface.

package facade

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/momentics/hioload-rngd/adapters"
	"github.com/momentics/hioload-rngd/api"
	"github.com/momentics/hioload-rngd/core/concurrency"
	"github.com/momentics/hioload-rngd/fake"
	"github.com/momentics/hioload-rngd/internal/entsource"
	"github.com/momentics/hioload-rngd/internal/kernel"
	"github.com/momentics/hioload-rngd/internal/logging"
	"github.com/momentics/hioload-rngd/pipeline"
	"github.com/momentics/hioload-rngd/pool"
	"github.com/momentics/hioload-rngd/stats"
)

// Version is reported in the service info and start-up banner.
const Version = "2.0.0"

// Option customizes daemon initialization.
type Option func(*Daemon)

// WithLogger sets the root logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Daemon) { d.log = l }
}

// WithSource replaces the configured entropy source device.
func WithSource(src api.EntropySource) Option {
	return func(d *Daemon) { d.src = src }
}

// WithSink replaces the kernel random device.
func WithSink(sink api.EntropySink) Option {
	return func(d *Daemon) { d.sink = sink }
}

// poolSizer is implemented by sinks that know their capacity in bits.
type poolSizer interface {
	PoolBits() int
}

// Daemon is the main facade type.
// It implements api.GracefulShutdown to allow unified shutdown logic.
type Daemon struct {
	config *Config
	log    *logging.Logger
	info   api.ServiceInfo

	src     api.EntropySource
	sink    api.EntropySink
	closers []io.Closer

	pipe    *pipeline.Pipeline
	control *adapters.ControlAdapter
	pinner  *adapters.RolePinner

	mu      sync.Mutex
	started bool
	waited  bool
	loops   sync.WaitGroup
	dumper  sync.WaitGroup
	dumpReq chan struct{}
	stop    chan struct{}
}

// Ensure compliance with api.GracefulShutdown.
var _ api.GracefulShutdown = (*Daemon)(nil)

// New constructs the daemon: it checks the kernel, opens the devices and
// builds the pipeline. Nothing runs until Start.
func New(cfg *Config, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Daemon{
		config:  cfg,
		dumpReq: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		pinner:  adapters.NewRolePinner(cfg.CPUs),
		control: adapters.NewControlAdapter(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.log == nil {
		d.log = logging.NewStd()
	}
	flog := d.log.Named("facade")
	d.info = api.ServiceInfo{Name: "rngd", Version: Version}

	if err := d.openDevices(); err != nil {
		d.closeDevices()
		return nil, err
	}

	poolBits := kernel.DefaultPoolBits
	if ps, ok := d.sink.(poolSizer); ok {
		poolBits = ps.PoolBits()
	}
	pcfg, err := cfg.pipelineConfig(poolBits)
	if err != nil {
		d.closeDevices()
		return nil, err
	}
	d.pipe, err = pipeline.New(pcfg, d.src, d.sink,
		pipeline.WithLogger(d.log.Named("pipeline")),
		pipeline.WithTracker(stats.New(pcfg.BufferCount)),
	)
	if err != nil {
		d.closeDevices()
		return nil, err
	}
	if cfg.HRNG != "" {
		p, _ := LookupProfile(cfg.HRNG)
		flog.Infof("using HRNG profile %s (%s)", p.Tag, p.Name)
	}
	flog.Debugf("buffers=%d block=%d watermark=%.1f%% of %d bits, entropy=%.3f",
		pcfg.BufferCount, pcfg.BlockSize, pcfg.FillWatermark, poolBits, pcfg.QualityFactor)

	bp := d.pipe.Pool()
	d.control.RegisterDebugProbe("pool.free", func() any { return bp.FreeCount() })
	d.control.RegisterDebugProbe("pool.low_water", func() any { return bp.LowWater() })
	d.control.RegisterDebugProbe("pool.states", func() any {
		out := make(map[string]int)
		for s, n := range bp.Counts() {
			out[s.String()] = n
		}
		return out
	})
	d.control.SetMetric("config.buffers", pcfg.BufferCount)
	d.control.SetMetric("config.fill_watermark_pct", pcfg.FillWatermark)
	d.control.SetMetric("config.entropy", pcfg.QualityFactor)
	return d, nil
}

// openDevices fills in the source and sink not injected by options.
func (d *Daemon) openDevices() error {
	cfg := d.config
	if d.src == nil {
		if cfg.DryRun {
			key, err := kernel.RandomKey(32)
			if err != nil {
				return api.Wrap(api.ErrCodeOS, err, "seed dry-run source")
			}
			s, err := fake.NewSource(key)
			if err != nil {
				return api.Wrap(api.ErrCodeInternal, err, "dry-run source")
			}
			d.src = s
		} else {
			dev, err := entsource.Open(cfg.EntropySource)
			if err != nil {
				return api.Wrap(api.ErrCodeOS, err, "can't open entropy source").
					WithContext("path", cfg.EntropySource)
			}
			d.src = dev
			d.closers = append(d.closers, dev)
		}
	}
	if d.sink == nil {
		if cfg.DryRun {
			d.sink = fake.Discard{}
		} else {
			if err := kernel.Check(); err != nil {
				return err
			}
			r, err := kernel.OpenRandom(cfg.RandomDevice)
			if err != nil {
				return api.Wrap(api.ErrCodeOS, err, "can't open random device").
					WithContext("path", cfg.RandomDevice)
			}
			d.sink = r
			d.closers = append(d.closers, r)
		}
	}
	return nil
}

func (d *Daemon) closeDevices() {
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			d.log.Named("facade").Warnf("close: %v", err)
		}
	}
	d.closers = nil
}

// Start fires up the pipeline goroutines and the statistics dumper.
// Subsequent calls to Start() have no effect.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	if d.waited {
		return fmt.Errorf("facade: daemon already stopped: %w", api.ErrIllegalTransition)
	}
	d.started = true
	d.info.StartedAt = time.Now()
	d.log.Named("facade").Infof("%s %s starting up...", d.info.Name, d.info.Version)

	tok := d.pipe.Token()
	roles := []struct {
		role api.Role
		run  func() error
	}{
		{api.RoleSource, d.pipe.RunSource},
		{api.RoleValidator, d.pipe.RunValidator},
		{api.RoleSink, d.pipe.RunSink},
	}
	for _, r := range roles {
		d.loops.Add(1)
		go d.runRole(r.role, r.run)
	}
	d.dumper.Add(1)
	go d.dumpLoop(tok)
	return nil
}

func (d *Daemon) runRole(role api.Role, run func() error) {
	defer d.loops.Done()
	if err := d.pinner.Pin(role); err != nil {
		d.log.Named("facade").Warnf("CPU affinity warning for %s: %v", role, err)
	} else if cpu := d.pinner.CPUFor(role); cpu >= 0 {
		d.log.Named("facade").Debugf("%s loop pinned to cpu %d", role, cpu)
	}
	_ = run()
}

// dumpLoop dumps statistics every StatsInterval and on DumpNow.
func (d *Daemon) dumpLoop(tok *concurrency.Token) {
	defer d.dumper.Done()
	t := time.NewTicker(d.config.StatsInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			d.dump()
		case <-d.dumpReq:
			d.dump()
		case <-tok.Done():
			return
		case <-d.stop:
			return
		}
	}
}

func (d *Daemon) dump() stats.Report {
	r := d.pipe.DumpStats()
	d.control.Publish(r.Metrics())
	return r
}

// DumpNow requests an asynchronous statistics dump.
func (d *Daemon) DumpNow() {
	select {
	case d.dumpReq <- struct{}{}:
	default:
	}
}

// Shutdown implements api.GracefulShutdown: it asks every loop to stop and
// returns without waiting.
func (d *Daemon) Shutdown() error {
	d.pipe.Shutdown()
	return nil
}

// Done is closed once the pipeline has been asked to stop, either by
// Shutdown or by a fatal loop error.
func (d *Daemon) Done() <-chan struct{} {
	return d.pipe.Token().Done()
}

// Wait blocks until every loop has exited, reclaims the pool, dumps the
// final statistics and closes the devices. It returns the fatal error that
// stopped the pipeline, or nil after a clean shutdown.
func (d *Daemon) Wait() error {
	d.mu.Lock()
	if d.waited {
		d.mu.Unlock()
		return d.pipe.Token().Cause()
	}
	d.waited = true
	d.mu.Unlock()

	d.loops.Wait()
	close(d.stop)
	d.dumper.Wait()

	flog := d.log.Named("facade")
	if n := d.pipe.Reclaim(); n > 0 {
		flog.Debugf("reclaimed %d queued buffers", n)
	}
	if free, size := d.pipe.Pool().FreeCount(), d.pipe.Pool().Size(); free != size {
		flog.Errorf("%d of %d buffers not returned to the pool", size-free, size)
	}
	d.dump()
	d.closeDevices()

	err := d.pipe.Token().Cause()
	if err == nil {
		flog.Infof("Exiting...")
	} else {
		flog.Errorf("Exiting with status %d: %v", api.ExitStatus(err), err)
	}
	return err
}

// Run starts the daemon and waits for it to stop.
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}
	return d.Wait()
}

// Stats returns the last published statistics and the current probe values.
func (d *Daemon) Stats() map[string]any {
	return d.control.Stats()
}

// Control returns the control interface.
func (d *Daemon) Control() api.Control {
	return d.control
}

// Report takes a fresh statistics snapshot without logging it.
func (d *Daemon) Report() stats.Report {
	return d.pipe.Stats().Snapshot()
}

// Pool exposes the buffer pool for inspection.
func (d *Daemon) Pool() *pool.Pool {
	return d.pipe.Pool()
}

// Info returns the service description.
func (d *Daemon) Info() api.ServiceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info
}
