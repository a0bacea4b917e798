// Package ids mints the correlation identifiers used to thread a single
// connection and a single message through the logging and metrics
// pipeline: a session id per Connect() (google/uuid, matching the
// handshake/session ids minted by the pack's networking driver) and a
// compact, sortable trace id per outbound Message (rs/xid), for cheap log
// correlation across the asynchronous ingest/dispatch pipeline.
package ids

import (
	"github.com/google/uuid"
	"github.com/rs/xid"
)

// SessionID identifies one Connect()...Close() lifetime.
type SessionID string

// NewSessionID mints a new random session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// TraceID identifies a single Message for log correlation. It has no
// bearing on wire correlation, which remains FIFO per spec.
type TraceID string

// NewTraceID mints a new trace identifier.
func NewTraceID() TraceID {
	return TraceID(xid.New().String())
}
