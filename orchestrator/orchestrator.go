// Package orchestrator implements the Request Orchestrator of spec.md
// §4.5: it translates application operations into one or more
// reqqueue.Message values, drives a transport.Worker's per-tick dispatch,
// and runs the connect handshake and keep-alive probe.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/KyungtackKim/hantas-torque-link/internal/ids"
	"github.com/KyungtackKim/hantas-torque-link/internal/obs"
	"github.com/KyungtackKim/hantas-torque-link/reqqueue"
	"github.com/KyungtackKim/hantas-torque-link/transport"
	"github.com/KyungtackKim/hantas-torque-link/wire"
)

// DefaultHandshakeTimeout is the window the Connecting state allows for a
// ReadInfo response before giving up, unless overridden by
// WithHandshakeTimeout.
const DefaultHandshakeTimeout = 5 * time.Second

const (
	maxReadBlock  = 125
	maxWriteBlock = 123

	tickPeriod        = 50 * time.Millisecond
	responseTimeout   = 1 * time.Second
	keepAliveInterval = 3 * time.Second
	keepAliveSilence  = 10 * time.Second
)

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithGenerationThresholds overrides the default numeric thresholds used
// to derive wire.Generation from a ReadInfo response (spec.md §6, §9 Open
// Questions).
func WithGenerationThresholds(th wire.GenerationThresholds) Option {
	return func(o *Orchestrator) { o.thresholds = th }
}

// WithKeepAlive enables or disables the 3s/10s keep-alive probe. Enabled
// by default.
func WithKeepAlive(enabled bool) Option {
	return func(o *Orchestrator) { o.keepAliveEnabled = enabled }
}

// WithMetrics registers orchestrator/transport counters under namespace
// with reg instead of the default no-op registration.
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(o *Orchestrator) { o.metrics = obs.NewMetrics(namespace, reg) }
}

// WithHandshakeTimeout overrides the default 5s window the Connecting
// state allows for a ReadInfo response before giving up and closing.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.handshakeTimeout = d }
}

// Orchestrator is the Request Orchestrator façade. The zero value is not
// usable; construct with New.
type Orchestrator struct {
	mu        sync.Mutex
	worker    transport.Worker
	mbap      bool
	queue     *reqqueue.Queue
	callbacks Callbacks

	thresholds       wire.GenerationThresholds
	keepAliveEnabled bool
	handshakeTimeout time.Duration
	metrics          *obs.Metrics

	state              connState
	identity           Identity
	connectStart       time.Time
	lastKeepAlive      time.Time
	lastKeepAliveProbe time.Time
	connectFired       bool

	sessionID ids.SessionID

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an Orchestrator with no transport attached yet; call
// SetWorker before Connect. mbap selects MBAP-offset frame decoding
// (TCP/legacyeth dialects) versus RTU-offset decoding (serial).
func New(mbap bool, callbacks Callbacks, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		mbap:             mbap,
		queue:            reqqueue.NewQueue(),
		callbacks:        callbacks,
		thresholds:       wire.DefaultGenerationThresholds(),
		keepAliveEnabled: true,
		handshakeTimeout: DefaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = obs.NewMetrics("hantaslink", nil)
	}
	return o
}

// Sinks returns the transport.Sinks a Worker should be constructed with so
// its events reach this Orchestrator.
func (o *Orchestrator) Sinks() transport.Sinks {
	return transport.Sinks{
		ChangedConnect: o.onTransportChangedConnect,
		ReceivedData:   o.onReceivedData,
		ReceivedError:  o.onReceivedError,
	}
}

// SetWorker attaches the transport this Orchestrator drives. Must be
// called before Connect.
func (o *Orchestrator) SetWorker(w transport.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.worker = w
}

// Identity returns the current Device Identity; zero value before Connect
// or after Close.
func (o *Orchestrator) Identity() Identity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.identity
}

// Connected reports whether the handshake has completed.
func (o *Orchestrator) Connected() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == stateConnected
}

// Connect starts the transport, clears the queue, and begins the
// handshake. It returns false if no worker is attached, the transport
// fails to open, or a connection is already in progress.
func (o *Orchestrator) Connect(target string, option int, deviceID byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.worker == nil || o.state == stateConnecting || o.state == stateConnected {
		return false
	}
	o.queue.Clear()
	if !o.worker.Connect(target, option, deviceID) {
		return false
	}
	now := time.Now()
	o.state = stateConnecting
	o.connectStart = now
	o.lastKeepAlive = now
	o.lastKeepAliveProbe = now
	o.identity = Identity{SlaveID: deviceID}
	o.sessionID = ids.NewSessionID()
	o.connectFired = false

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.wg.Add(1)
	go o.run(ctx)

	obs.Infof(obs.ComponentOrchestrator, logrus.Fields{"session": o.sessionID, "target": target, "device_id": deviceID}, "handshake started")
	return true
}

// Close stops the handshake/tick loop, closes the transport, clears the
// queue and identity, and fires ChangedConnect(false) if a connection had
// previously been established.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	args, ok := o.requestCloseLocked()
	o.mu.Unlock()
	if !ok {
		return
	}
	o.finishClose(args)
}

type closeArgs struct {
	worker    transport.Worker
	cancel    context.CancelFunc
	wasFired  bool
	sessionID ids.SessionID
}

func (o *Orchestrator) requestCloseLocked() (closeArgs, bool) {
	if o.state == stateClosed || o.state == stateIdle {
		return closeArgs{}, false
	}
	args := closeArgs{
		worker:    o.worker,
		cancel:    o.cancel,
		wasFired:  o.connectFired,
		sessionID: o.sessionID,
	}
	o.state = stateClosed
	o.identity = Identity{}
	o.queue.Clear()
	o.connectFired = false
	return args, true
}

func (o *Orchestrator) finishClose(args closeArgs) {
	obs.Infof(obs.ComponentOrchestrator, logrus.Fields{"session": args.sessionID}, "connection closed")
	if args.cancel != nil {
		args.cancel()
	}
	o.wg.Wait()
	if args.worker != nil {
		args.worker.Close()
	}
	if args.wasFired {
		o.emitChangedConnect(false)
	}
}

func (o *Orchestrator) run(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(time.Now())
		}
	}
}

// tick implements spec.md §4.5's four-step ordered tick.
func (o *Orchestrator) tick(now time.Time) {
	o.mu.Lock()
	var pendingClose *closeArgs

	switch o.state {
	case stateClosed, stateIdle:
		o.mu.Unlock()
		return
	case stateConnecting:
		if now.Sub(o.connectStart) < o.handshakeTimeout {
			o.enqueueReadInfoLocked()
		} else if args, ok := o.requestCloseLocked(); ok {
			pendingClose = &args
		}
	case stateConnected:
		if o.keepAliveEnabled {
			if now.Sub(o.lastKeepAliveProbe) >= keepAliveInterval && o.queue.Len() == 0 {
				o.enqueueReadInfoLocked()
				o.lastKeepAliveProbe = now
			}
			if now.Sub(o.lastKeepAlive) >= keepAliveSilence {
				if args, ok := o.requestCloseLocked(); ok {
					pendingClose = &args
				}
			}
		}
	}

	if pendingClose == nil {
		o.dispatchLocked(now)
	}
	o.mu.Unlock()

	if pendingClose != nil {
		if pendingClose.cancel != nil {
			pendingClose.cancel()
		}
		if pendingClose.worker != nil {
			pendingClose.worker.Close()
		}
		if pendingClose.wasFired {
			o.emitChangedConnect(false)
		}
	}
}

// dispatchLocked is steps 2-4 of the tick: write the head message, or
// retry/discard it once its response window has elapsed.
func (o *Orchestrator) dispatchLocked(now time.Time) {
	if o.queue.Len() == 0 {
		return
	}
	head, ok := o.queue.TryPeek()
	if !ok {
		return
	}
	if !head.Activated {
		if o.worker.Write(head.Packet) {
			head.Activated = true
			head.ActiveTime = now
			o.metrics.IncMessagesSent()
			o.metrics.AddBytesSent(len(head.Packet))
			if head.NotCheck {
				o.queue.TryDequeue()
			}
		}
		return
	}
	if now.Sub(head.ActiveTime) < responseTimeout {
		return
	}
	head.RetryBudget--
	if head.RetryBudget > 0 {
		head.Activated = false
		o.metrics.IncMessagesRetried()
		return
	}
	o.queue.TryDequeue()
	o.metrics.IncMessagesDropped()
	o.emitError(wire.ErrorEvent{Kind: wire.ErrKindMessageTimeout})
}

func (o *Orchestrator) enqueueReadInfoLocked() {
	packet := o.worker.ReadInfo()
	m := reqqueue.NewMessage(wire.FuncReadInfo, wire.EmptyAddr, packet)
	o.queue.TryEnqueue(m, reqqueue.EnforceUnique)
}

func dedupMode(check bool) reqqueue.DuplicateMode {
	if check {
		return reqqueue.EnforceUnique
	}
	return reqqueue.AllowDuplicate
}

// ReadHolding reads count holding registers starting at addr, split into
// blocks of at most 125 registers.
func (o *Orchestrator) ReadHolding(addr wire.Address, count int, check bool) bool {
	return o.readSplit(wire.FuncReadHolding, addr, count, maxReadBlock, check)
}

// ReadHoldingSplit is ReadHolding with an explicit split size override.
func (o *Orchestrator) ReadHoldingSplit(addr wire.Address, count, split int, check bool) bool {
	return o.readSplit(wire.FuncReadHolding, addr, count, split, check)
}

// ReadInput reads count input registers starting at addr, split into
// blocks of at most 125 registers.
func (o *Orchestrator) ReadInput(addr wire.Address, count int, check bool) bool {
	return o.readSplit(wire.FuncReadInput, addr, count, maxReadBlock, check)
}

// ReadInputSplit is ReadInput with an explicit split size override.
func (o *Orchestrator) ReadInputSplit(addr wire.Address, count, split int, check bool) bool {
	return o.readSplit(wire.FuncReadInput, addr, count, split, check)
}

func (o *Orchestrator) readSplit(code wire.FunctionCode, addr wire.Address, count, split int, check bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.worker == nil || o.state != stateConnected {
		return false
	}
	blocks := splitBlocks(addr, count, split)
	if len(blocks) == 0 {
		return false
	}
	msgs := make([]*reqqueue.Message, 0, len(blocks))
	for _, b := range blocks {
		var packet []byte
		if code == wire.FuncReadHolding {
			packet = o.worker.ReadHolding(b.Address, uint16(b.Count))
		} else {
			packet = o.worker.ReadInput(b.Address, uint16(b.Count))
		}
		msgs = append(msgs, reqqueue.NewMessage(code, b.Address, packet))
	}
	accepted, _, _ := o.queue.TryEnqueueRange(msgs, dedupMode(check))
	return accepted == len(msgs)
}

// WriteSingle writes a single holding register.
func (o *Orchestrator) WriteSingle(addr wire.Address, value uint16, check bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.worker == nil || o.state != stateConnected {
		return false
	}
	packet := o.worker.WriteSingle(addr, value)
	m := reqqueue.NewMessage(wire.FuncWriteSingle, addr, packet)
	return o.queue.TryEnqueue(m, dedupMode(check))
}

// WriteMulti writes values starting at addr, split into blocks of at most
// 123 registers.
func (o *Orchestrator) WriteMulti(addr wire.Address, values []uint16, check bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.worker == nil || o.state != stateConnected {
		return false
	}
	blocks := splitBlocks(addr, len(values), maxWriteBlock)
	if len(blocks) == 0 {
		return false
	}
	msgs := make([]*reqqueue.Message, 0, len(blocks))
	offset := 0
	for _, b := range blocks {
		slice := values[offset : offset+b.Count]
		offset += b.Count
		packet := o.worker.WriteMulti(b.Address, slice)
		msgs = append(msgs, reqqueue.NewMessage(wire.FuncWriteMulti, b.Address, packet))
	}
	accepted, _, _ := o.queue.TryEnqueueRange(msgs, dedupMode(check))
	return accepted == len(msgs)
}

// WriteString writes an ASCII string right-padded to length bytes.
func (o *Orchestrator) WriteString(addr wire.Address, s string, length int, check bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.worker == nil || o.state != stateConnected {
		return false
	}
	packet := o.worker.WriteString(addr, s, length)
	m := reqqueue.NewMessage(wire.FuncWriteMulti, addr, packet)
	return o.queue.TryEnqueue(m, dedupMode(check))
}

// ReadInfo requests the device info/firmware frame.
func (o *Orchestrator) ReadInfo(check bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.worker == nil || o.state != stateConnected {
		return false
	}
	packet := o.worker.ReadInfo()
	m := reqqueue.NewMessage(wire.FuncReadInfo, wire.EmptyAddr, packet)
	return o.queue.TryEnqueue(m, dedupMode(check))
}

func (o *Orchestrator) onTransportChangedConnect(connected bool) {
	if connected {
		return
	}
	o.mu.Lock()
	args, ok := o.requestCloseLocked()
	o.mu.Unlock()
	if !ok {
		return
	}
	o.finishClose(args)
}

func (o *Orchestrator) onReceivedData(ev wire.DataEvent) {
	o.mu.Lock()
	now := time.Now()
	head, peeked := o.queue.TryPeek()
	addr := wire.EmptyAddr
	correlated := peeked && head.Activated && (head.Code == ev.Code || ev.Code == wire.FuncError)
	o.lastKeepAlive = now
	if correlated {
		o.queue.TryDequeue()
		addr = head.Address
		o.metrics.IncResponsesMatched()
	}
	o.metrics.AddBytesReceived(len(ev.Frame))
	resp := o.decodeResponse(ev, addr)

	var becomeConnected bool
	if correlated && o.state == stateConnecting && ev.Code == wire.FuncReadInfo {
		o.identity.Generation = resp.Generation
		o.state = stateConnected
		o.lastKeepAliveProbe = now
		o.connectFired = true
		becomeConnected = true
	}
	o.mu.Unlock()

	o.emitResponse(resp)
	if becomeConnected {
		o.emitChangedConnect(true)
	}
}

func (o *Orchestrator) decodeResponse(ev wire.DataEvent, addr wire.Address) Response {
	resp := Response{Code: ev.Code, Address: addr, Frame: ev.Frame}
	switch ev.Code {
	case wire.FuncReadHolding, wire.FuncReadInput:
		resp.Registers = wire.DecodeRegisters(ev.Frame, o.mbap)
	case wire.FuncReadInfo:
		if fw, model, ok := wire.DecodeInfo(ev.Frame, o.mbap); ok {
			resp.Firmware = fw
			resp.Model = model
			resp.Generation = wire.DeriveGeneration(fw, model, o.thresholds)
		}
	case wire.FuncError:
		resp.Exception = true
		if code, ok := wire.ExceptionCode(ev.Frame, o.mbap); ok {
			resp.ExceptionCode = code
		}
		o.metrics.IncProtocolErrors()
	}
	return resp
}

func (o *Orchestrator) onReceivedError(ev wire.ErrorEvent) {
	switch ev.Kind {
	case wire.ErrKindInvalidCRC:
		o.metrics.IncCRCErrors()
	case wire.ErrKindTimeout:
		o.metrics.IncTimeoutErrors()
	}
	o.emitError(ev)
}

func (o *Orchestrator) emitResponse(resp Response) {
	if o.callbacks.Response == nil {
		return
	}
	obs.SafeCall(obs.ComponentOrchestrator, "Response", func() { o.callbacks.Response(resp) })
}

func (o *Orchestrator) emitError(ev wire.ErrorEvent) {
	if o.callbacks.Error == nil {
		return
	}
	obs.SafeCall(obs.ComponentOrchestrator, "Error", func() { o.callbacks.Error(ev) })
}

func (o *Orchestrator) emitChangedConnect(connected bool) {
	if o.callbacks.ChangedConnect == nil {
		return
	}
	obs.SafeCall(obs.ComponentOrchestrator, "ChangedConnect", func() { o.callbacks.ChangedConnect(connected) })
}
