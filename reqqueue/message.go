// Package reqqueue implements the Message record and the keyed,
// deduplicating FIFO queue that sits between the application-facing
// Orchestrator API and the per-tick dispatch loop.
package reqqueue

import (
	"time"

	"github.com/rs/xid"

	"github.com/KyungtackKim/hantas-torque-link/wire"
)

// DefaultRetryBudget is the retry count a freshly constructed Message
// carries before a tick timeout discards it.
const DefaultRetryBudget = 3

// Key identifies a Message for queue uniqueness and correlation purposes.
type Key struct {
	Code    wire.FunctionCode
	Address wire.Address
}

// Message is one outbound operation travelling from the application,
// through the queue, to the transport, and (unless NotCheck) back through
// response correlation.
type Message struct {
	Code        wire.FunctionCode
	Address     wire.Address
	Packet      []byte
	Activated   bool
	ActiveTime  time.Time
	RetryBudget int
	NotCheck    bool
	TraceID     xid.ID
}

// Key returns the message's queue key: function code and address.
func (m *Message) Key() Key {
	return Key{Code: m.Code, Address: m.Address}
}

// NewMessage builds a Message with the default retry budget and a fresh
// trace id. addr may be wire.EmptyAddr for address-less operations (e.g.
// ReadInfo).
func NewMessage(code wire.FunctionCode, addr wire.Address, packet []byte) *Message {
	return &Message{
		Code:        code,
		Address:     addr,
		Packet:      packet,
		RetryBudget: DefaultRetryBudget,
		TraceID:     xid.New(),
	}
}

// NewFireAndForget builds a Message that skips response correlation
// entirely: the tick loop dequeues it immediately after a successful write.
func NewFireAndForget(code wire.FunctionCode, addr wire.Address, packet []byte) *Message {
	m := NewMessage(code, addr, packet)
	m.NotCheck = true
	return m
}
