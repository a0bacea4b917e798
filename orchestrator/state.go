package orchestrator

import "github.com/KyungtackKim/hantas-torque-link/wire"

// connState is the Connection State Machine of spec.md §3: Idle →
// Connecting → Connected → Closed.
type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateConnected
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateConnecting:
		return "Connecting"
	case stateConnected:
		return "Connected"
	case stateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Identity is the Device Identity of spec.md §3: fixed at Connect, with
// Generation learned during the handshake. Both are cleared on Close.
type Identity struct {
	SlaveID    byte
	Generation wire.Generation
}
