// Package pool
// Author: momentics <momentics@gmail.com>
//
// Bounded buffer arena shared by the entropy pipeline.
// A Pool owns N fixed-size slots allocated once; each slot carries a tagged
// state and moves through Free -> Filling -> Filled -> Validating ->
// (ReadyForSink -> Sending | Rejected) -> Free. Transitions are validated
// under one mutex; each waiting role sleeps on its own condition variable.
// See pool.go and state.go for implementation details.
package pool
