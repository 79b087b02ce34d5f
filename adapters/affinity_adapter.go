// File: adapters/affinity_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
// Description:
//   Adapter assigning pipeline roles to CPUs and delegating the pinning to
//   the affinity package.

package adapters

import (
	"sync"

	"github.com/momentics/hioload-rngd/affinity"
	"github.com/momentics/hioload-rngd/api"
)

// RolePinner maps each pipeline role to a CPU from a configured list. Roles
// are assigned round-robin in role order, so a single CPU pins all three.
// A pinner built from an empty list pins nothing.
type RolePinner struct {
	cpus []int

	mu     sync.Mutex
	pinned map[api.Role]int
}

// NewRolePinner creates a pinner over cpus.
func NewRolePinner(cpus []int) *RolePinner {
	return &RolePinner{cpus: append([]int(nil), cpus...), pinned: make(map[api.Role]int)}
}

// Enabled reports whether any CPU was configured.
func (p *RolePinner) Enabled() bool { return len(p.cpus) > 0 }

// CPUFor returns the CPU assigned to role, or -1 when pinning is disabled.
func (p *RolePinner) CPUFor(role api.Role) int {
	if !p.Enabled() {
		return -1
	}
	return p.cpus[int(role)%len(p.cpus)]
}

// Pin locks the calling goroutine to its thread and pins it to the CPU of
// role. It is a no-op when pinning is disabled.
func (p *RolePinner) Pin(role api.Role) error {
	cpu := p.CPUFor(role)
	if cpu < 0 {
		return nil
	}
	if err := affinity.LockAndPin(cpu); err != nil {
		return err
	}
	p.mu.Lock()
	p.pinned[role] = cpu
	p.mu.Unlock()
	return nil
}

// Pinned returns a copy of the successful role bindings.
func (p *RolePinner) Pinned() map[api.Role]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[api.Role]int, len(p.pinned))
	for r, c := range p.pinned {
		out[r] = c
	}
	return out
}
