// File: pool/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Slot state tags and the transition table.

package pool

import "fmt"

// State is the lifecycle tag of one buffer slot.
type State uint8

const (
	Free State = iota
	Filling
	Filled
	Validating
	ReadyForSink
	Rejected
	Sending
	numStates
)

var stateNames = [numStates]string{"free", "filling", "filled", "validating", "ready", "rejected", "sending"}

func (s State) String() string {
	if s >= numStates {
		return fmt.Sprintf("State(%d)", uint8(s))
	}
	return stateNames[s]
}

// Legal reports whether a slot may move from one state to another.
// Filling and Validating may fall back to Free when their owner exits early;
// Filled and ReadyForSink fall back to Free only through Reclaim.
func Legal(from, to State) bool {
	switch from {
	case Free:
		return to == Filling
	case Filling:
		return to == Filled || to == Free
	case Filled:
		return to == Validating || to == Free
	case Validating:
		return to == ReadyForSink || to == Rejected || to == Free
	case Rejected:
		return to == Free
	case ReadyForSink:
		return to == Sending || to == Free
	case Sending:
		return to == Free
	}
	return false
}
