// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

import "time"

// Role identifies one of the three pipeline goroutines.
type Role int

const (
	RoleSource Role = iota
	RoleValidator
	RoleSink
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleValidator:
		return "validator"
	case RoleSink:
		return "sink"
	default:
		return "unknown"
	}
}

// ServiceInfo exposes descriptive build- and runtime info.
type ServiceInfo struct {
	Name      string
	Version   string
	StartedAt time.Time
}
