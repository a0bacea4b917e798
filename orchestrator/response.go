package orchestrator

import "github.com/KyungtackKim/hantas-torque-link/wire"

// Response is the decoded view handed to the user's Response callback
// after a frame is correlated to its request (or EmptyAddr if
// uncorrelated — spec.md §4.5 "Response correlation").
type Response struct {
	Code          wire.FunctionCode
	Address       wire.Address
	Frame         []byte
	Registers     []uint16 // ReadHolding / ReadInput
	Firmware      int      // ReadInfo
	Model         wire.Model
	Generation    wire.Generation
	Exception     bool
	ExceptionCode byte
}

// Callbacks holds the application-facing observer sinks the Orchestrator
// fires. Every field is optional.
type Callbacks struct {
	ChangedConnect func(connected bool)
	Response       func(resp Response)
	Error          func(ev wire.ErrorEvent)
}
