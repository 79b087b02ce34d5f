//go:build unix

// File: cmd/rngd/signals_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/momentics/hioload-rngd/facade"
	"github.com/momentics/hioload-rngd/internal/logging"
)

// handleSignals routes SIGTERM/SIGINT to shutdown and SIGUSR1 to a
// statistics dump. The returned function stops the routing.
func handleSignals(d *facade.Daemon, lg *logging.Logger) func() {
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR1)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case s := <-sigs:
				if s == syscall.SIGUSR1 {
					d.DumpNow()
					continue
				}
				lg.Infof("received %v, shutting down", s)
				_ = d.Shutdown()
			case <-quit:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(quit)
	}
}
