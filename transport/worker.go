package transport

import "github.com/KyungtackKim/hantas-torque-link/wire"

// Worker is the capability trait every HANTAS transport dialect implements
// (spec.md §4.4): own the connection, move bytes in, classify frames,
// fire observer sinks, and build outbound requests for its dialect.
type Worker interface {
	wire.Encoder

	// Connect opens the connection to target using option (a baud rate for
	// serial dialects, a TCP port for networked dialects) addressed to
	// device_id. It returns false on invalid parameters or a failed open;
	// true means ingestion has begun and ChangedConnect(true) has fired.
	Connect(target string, option int, deviceID byte) bool

	// Close stops ingestion, releases the connection, and fires
	// ChangedConnect(false).
	Close()

	// Write blocks until data has been handed to the OS. It returns false
	// if not connected or the write failed; callers are responsible for
	// retry policy.
	Write(data []byte) bool

	// Connected reports the worker's current connection state.
	Connected() bool
}
