//go:build !unix

// File: cmd/rngd/signals_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"os"
	"os/signal"

	"github.com/momentics/hioload-rngd/facade"
	"github.com/momentics/hioload-rngd/internal/logging"
)

// handleSignals routes interrupts to shutdown; there is no dump signal here.
func handleSignals(d *facade.Daemon, lg *logging.Logger) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	quit := make(chan struct{})
	go func() {
		select {
		case s := <-sigs:
			lg.Infof("received %v, shutting down", s)
			_ = d.Shutdown()
		case <-quit:
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(quit)
	}
}
