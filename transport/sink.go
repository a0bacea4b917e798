package transport

import (
	"github.com/KyungtackKim/hantas-torque-link/internal/obs"
	"github.com/KyungtackKim/hantas-torque-link/wire"
)

// Sinks holds the five observer callbacks a Worker fires. Every field is
// optional; nil sinks are skipped. Each invocation is wrapped in
// obs.SafeCall so a panicking callback cannot corrupt pipeline state.
type Sinks struct {
	ChangedConnect func(connected bool)
	ReceivedData   func(ev wire.DataEvent)
	ReceivedError  func(ev wire.ErrorEvent)
	ReceivedRaw    func(data []byte)
	TransmitRaw    func(data []byte)
}

func (s Sinks) emitChangedConnect(connected bool) {
	if s.ChangedConnect == nil {
		return
	}
	obs.SafeCall(obs.ComponentTransport, "ChangedConnect", func() { s.ChangedConnect(connected) })
}

func (s Sinks) emitReceivedData(ev wire.DataEvent) {
	if s.ReceivedData == nil {
		return
	}
	obs.SafeCall(obs.ComponentTransport, "ReceivedData", func() { s.ReceivedData(ev) })
}

func (s Sinks) emitReceivedError(ev wire.ErrorEvent) {
	if s.ReceivedError == nil {
		return
	}
	obs.SafeCall(obs.ComponentTransport, "ReceivedError", func() { s.ReceivedError(ev) })
}

func (s Sinks) emitReceivedRaw(data []byte) {
	if s.ReceivedRaw == nil {
		return
	}
	cp := append([]byte(nil), data...)
	obs.SafeCall(obs.ComponentTransport, "ReceivedRaw", func() { s.ReceivedRaw(cp) })
}

func (s Sinks) emitTransmitRaw(data []byte) {
	if s.TransmitRaw == nil {
		return
	}
	cp := append([]byte(nil), data...)
	obs.SafeCall(obs.ComponentTransport, "TransmitRaw", func() { s.TransmitRaw(cp) })
}
