// File: pipeline/pipeline.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Three-stage entropy pipeline: the source fills buffers, the validator runs
// the FIPS battery over them, the sink feeds passing buffers to the kernel.
// The stages hand buffers to each other only through the pool.

package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-rngd/api"
	"github.com/momentics/hioload-rngd/core/concurrency"
	"github.com/momentics/hioload-rngd/core/fips"
	"github.com/momentics/hioload-rngd/internal/logging"
	"github.com/momentics/hioload-rngd/pool"
	"github.com/momentics/hioload-rngd/stats"
)

// seedLen is the amount of initial source output spent on seeding the
// continuous-run test.
const seedLen = 4

// Pipeline is the coordinator context shared by the three loops.
type Pipeline struct {
	cfg    Config
	src    api.EntropySource
	sink   api.EntropySink
	pool   *pool.Pool
	engine *fips.Engine
	stats  *stats.Tracker
	log    *logging.Logger
	tok    *concurrency.Token

	observer pool.Observer
	seed     chan fips.State
}

// New validates cfg and builds the pool and statistics context.
func New(cfg Config, src api.EntropySource, sink api.EntropySink, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil || sink == nil {
		return nil, api.Wrap(api.ErrCodeUsage, api.ErrInvalidArgument, "pipeline: source and sink are required")
	}
	p := &Pipeline{cfg: cfg, src: src, sink: sink, seed: make(chan fips.State, 1)}
	for _, o := range opts {
		o(p)
	}
	var popts []pool.Option
	if p.observer != nil {
		popts = append(popts, pool.WithObserver(p.observer))
	}
	bp, err := pool.New(cfg.BufferCount, cfg.BlockSize, popts...)
	if err != nil {
		return nil, err
	}
	p.pool = bp
	if cfg.ContinuousRun {
		p.engine = fips.New(fips.WithContinuousRun())
	} else {
		p.engine = fips.New()
	}
	if p.stats == nil {
		p.stats = stats.New(cfg.BufferCount)
	}
	if p.log == nil {
		p.log = logging.Discard()
	}
	if p.tok == nil {
		p.tok = concurrency.NewToken()
	}
	return p, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

// Pool exposes the buffer pool for inspection.
func (p *Pipeline) Pool() *pool.Pool { return p.pool }

// Stats returns the statistics tracker.
func (p *Pipeline) Stats() *stats.Tracker { return p.stats }

// Token returns the shutdown token.
func (p *Pipeline) Token() *concurrency.Token { return p.tok }

// DumpStats logs and returns a statistics snapshot.
func (p *Pipeline) DumpStats() stats.Report {
	return p.stats.SnapshotAndLog(p.log)
}

// Shutdown requests all loops to exit. It does not wait for them.
func (p *Pipeline) Shutdown() {
	p.tok.Cancel(nil)
}

// Reclaim returns buffers left queued by the loops to the free list.
// Call it only after every loop has returned.
func (p *Pipeline) Reclaim() int {
	return p.pool.Reclaim()
}

// RunSource fills free buffers from the entropy source until the pipeline
// is shut down or the source fails.
func (p *Pipeline) RunSource() error {
	tok := p.tok
	if p.engine.Continuous() {
		var head [seedLen]byte
		if err := p.readFull(tok, head[:]); err != nil {
			return p.exit(tok, "source", err)
		}
		p.seed <- fips.Seed(head[:])
		p.log.Debugf("discarded %d initial bytes to seed the continuous-run test", seedLen)
	}
	for {
		h, err := p.pool.AcquireFree(tok)
		if err != nil {
			return p.exit(tok, "source", err)
		}
		p.stats.RecordBufferLevel(p.pool.LowWater())
		start := time.Now()
		buf := p.pool.Bytes(h)
		if err := p.readFull(tok, buf); err != nil {
			_ = p.pool.Abort(h)
			return p.exit(tok, "source", err)
		}
		p.stats.RecordReceived(len(buf), time.Since(start))
		if err := p.pool.MarkFilled(h); err != nil {
			return p.exit(tok, "source", err)
		}
	}
}

// readFull fills buf, retrying timeouts until ReadRetries consecutive reads
// made no progress.
func (p *Pipeline) readFull(tok *concurrency.Token, buf []byte) error {
	misses := 0
	for off := 0; off < len(buf); {
		if tok.Cancelled() {
			return api.ErrCancelled
		}
		n, err := p.src.Read(buf[off:], p.cfg.DeviceTimeout)
		off += n
		if n > 0 {
			misses = 0
		}
		switch {
		case err == nil:
			if n == 0 {
				misses++
			}
		case errors.Is(err, api.ErrTimeout):
			if n == 0 {
				misses++
			}
			p.log.Debugf("source read timed out after %v (%d/%d)", p.cfg.DeviceTimeout, misses, p.cfg.ReadRetries)
		default:
			return api.Wrap(api.ErrCodeDevice, deviceErr(err), "entropy source read failed")
		}
		if misses >= p.cfg.ReadRetries {
			return api.Wrap(api.ErrCodeDevice, api.ErrDevice, "entropy source stopped delivering data").
				WithContext("timeouts", misses).
				WithContext("timeout", p.cfg.DeviceTimeout)
		}
	}
	return nil
}

// RunValidator tests filled buffers and routes them to the sink or back to
// the free list.
func (p *Pipeline) RunValidator() error {
	tok := p.tok
	var state fips.State
	if p.engine.Continuous() {
		select {
		case state = <-p.seed:
		case <-tok.Done():
			return nil
		}
	}
	for {
		h, err := p.pool.AcquireFilled(tok)
		if err != nil {
			return p.exit(tok, "validator", err)
		}
		buf := p.pool.Bytes(h)
		passed := true
		for off := 0; off < len(buf); off += fips.BlockSize {
			start := time.Now()
			res, next, err := p.engine.Run(state, buf[off:off+fips.BlockSize])
			if err != nil {
				_ = p.pool.Abort(h)
				return p.exit(tok, "validator", api.Wrap(api.ErrCodeInternal, err, "fips battery"))
			}
			state = next
			p.stats.RecordFIPSResult(res, time.Since(start))
			if !res.Passed() {
				state = next.AfterReject()
				passed = false
				p.log.Warnf("failed FIPS 140-2 tests: %v", res.Failures())
			}
		}
		if err := p.pool.MarkValidated(h, passed); err != nil {
			return p.exit(tok, "validator", err)
		}
	}
}

// RunSink feeds validated buffers to the sink in FeedChunk pieces while its
// fill level is below the watermark.
func (p *Pipeline) RunSink() error {
	tok := p.tok
	for {
		start := time.Now()
		h, waited, err := p.pool.AcquireReady(tok)
		if err != nil {
			return p.exit(tok, "sink", err)
		}
		if waited {
			p.stats.RecordStarvation(time.Since(start))
		}
		data := p.pool.Bytes(h)
		for off := 0; off < len(data); {
			if err := p.throttle(tok); err != nil {
				_ = p.pool.Release(h)
				return p.exit(tok, "sink", err)
			}
			end := min(off+p.cfg.FeedChunk, len(data))
			credit := p.cfg.Credit(end - off)
			if err := p.sink.Feed(data[off:end], credit); err != nil {
				_ = p.pool.Release(h)
				return p.exit(tok, "sink", api.Wrap(api.ErrCodeSink, sinkErr(err), "entropy sink write failed"))
			}
			p.stats.RecordSent(end-off, credit)
			off = end
		}
		if err := p.pool.Release(h); err != nil {
			return p.exit(tok, "sink", err)
		}
	}
}

// throttle returns once the sink wants more entropy.
func (p *Pipeline) throttle(tok *concurrency.Token) error {
	for round := 0; ; round++ {
		if tok.Cancelled() {
			return api.ErrCancelled
		}
		level, err := p.sink.FillLevel()
		if err != nil {
			return api.Wrap(api.ErrCodeSink, sinkErr(err), "query sink fill level")
		}
		if level < p.cfg.FillWatermark {
			return nil
		}
		if err := p.idle(tok, round == 0); err != nil {
			return err
		}
	}
}

// idle waits up to FeedInterval, returning early on cancel or, when
// askSink is set, as soon as a demand-aware sink reports it can accept data.
// A sink that signals demand while still above the watermark gets a plain
// sleep on the next round.
func (p *Pipeline) idle(tok *concurrency.Token, askSink bool) error {
	if w, ok := p.sink.(api.DemandWaiter); ok && askSink {
		err := w.WaitForDemand(p.cfg.FeedInterval)
		if err != nil && !errors.Is(err, api.ErrTimeout) {
			return api.Wrap(api.ErrCodeSink, sinkErr(err), "wait for sink demand")
		}
		if tok.Cancelled() {
			return api.ErrCancelled
		}
		return nil
	}
	t := time.NewTimer(p.cfg.FeedInterval)
	defer t.Stop()
	select {
	case <-tok.Done():
		return api.ErrCancelled
	case <-t.C:
		return nil
	}
}

// exit turns a loop error into the loop's return value. Cancellation is a
// clean exit; anything else is fatal and cancels tok.
func (p *Pipeline) exit(tok *concurrency.Token, role string, err error) error {
	if errors.Is(err, api.ErrCancelled) {
		p.log.Debugf("%s loop stopped", role)
		return nil
	}
	p.log.Errorf("%s loop failed: %v", role, err)
	tok.Cancel(err)
	return err
}

func deviceErr(err error) error {
	if errors.Is(err, api.ErrDevice) {
		return err
	}
	return fmt.Errorf("%w: %w", api.ErrDevice, err)
}

func sinkErr(err error) error {
	if errors.Is(err, api.ErrSinkWrite) {
		return err
	}
	return fmt.Errorf("%w: %w", api.ErrSinkWrite, err)
}
