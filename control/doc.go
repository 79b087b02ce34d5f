// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer of the daemon.
//
// Provides concurrent-safe state handling primitives including:
//   - a metrics registry holding the last published statistics snapshot
//   - named debug probes evaluated on demand
//   - platform probes (CPU count, hardware RNG instructions, kernel release)
//
// Configuration is immutable once the daemon starts, so there is no reload
// path here. This package is build-tag-partitioned as needed.
package control
