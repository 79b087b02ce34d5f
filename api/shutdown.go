// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// GracefulShutdown is implemented by components that stop cooperatively.
type GracefulShutdown interface {
	// Shutdown requests the component to stop. It does not wait for
	// background goroutines to exit.
	Shutdown() error
}
