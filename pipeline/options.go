// File: pipeline/options.go
// Package pipeline defines functional options for the Pipeline.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pipeline

import (
	"github.com/momentics/hioload-rngd/core/concurrency"
	"github.com/momentics/hioload-rngd/internal/logging"
	"github.com/momentics/hioload-rngd/pool"
	"github.com/momentics/hioload-rngd/stats"
)

// Option customizes pipeline initialization.
type Option func(*Pipeline)

// WithTracker shares an existing statistics tracker.
func WithTracker(t *stats.Tracker) Option {
	return func(p *Pipeline) { p.stats = t }
}

// WithLogger sets the logger used by the loops.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithTransitionObserver installs a buffer state observer on the pool.
func WithTransitionObserver(fn pool.Observer) Option {
	return func(p *Pipeline) { p.observer = fn }
}

// WithToken makes the pipeline use tok as its shutdown token.
func WithToken(tok *concurrency.Token) Option {
	return func(p *Pipeline) { p.tok = tok }
}
