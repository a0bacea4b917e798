// Package hidusb names the contract for the HID-USB legacy dialect without
// backing it with an implementation. spec.md §1 lists HID-USB as an
// external collaborator ("spec by analogy"): report size 64 bytes, a fixed
// vendor/product pair, device identification by enumeration-derived
// index. A future HAL author implements transport.Worker against these
// constants; no functional transport lives here.
package hidusb

import "github.com/KyungtackKim/hantas-torque-link/transport"

// ReportSize is the fixed HID report length spec.md §6 assigns to this
// dialect; every request is padded to this length with zeros.
const ReportSize = 64

// VendorID and ProductID are the fixed USB identifiers spec.md §6 assigns
// to the legacy HID-USB tool.
const (
	VendorID  = 0x0483
	ProductID = 0x5710
)

// Worker is the contract a HID-USB implementation must satisfy: the same
// transport.Worker capability trait every other dialect implements. This
// package provides no concrete type satisfying it.
type Worker = transport.Worker
