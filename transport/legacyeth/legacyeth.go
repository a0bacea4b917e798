// Package legacyeth implements the legacy dual-socket HANTAS Ethernet
// dialect: a command socket on port, command framing mirroring MBAP, and a
// monitor socket on port+1 that receives two fixed acknowledgement packets
// on connect and carries graph samples thereafter (spec.md §4.3, §6).
package legacyeth

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/KyungtackKim/hantas-torque-link/internal/obs"
	"github.com/KyungtackKim/hantas-torque-link/transport"
	"github.com/KyungtackKim/hantas-torque-link/wire"
)

const readChunkSize = 16 * 1024

// Worker is the legacy dual-socket HANTAS Ethernet dialect.
type Worker struct {
	wire.MBAPEncoder

	cmdPipeline *transport.Pipeline
	monPipeline *transport.Pipeline
	sinks       transport.Sinks

	mu          sync.Mutex
	cmdConn     net.Conn
	monitorConn net.Conn
	cancel      context.CancelFunc
	connected   bool
}

// New constructs an unconnected legacy Ethernet Worker.
func New(sinks transport.Sinks) *Worker {
	return &Worker{sinks: sinks}
}

// Connect dials the command socket at target:port and the monitor socket
// at target:port+1, sends the two fixed monitor acknowledgements, and
// begins ingestion on both sockets addressed to deviceID.
func (w *Worker) Connect(target string, port int, deviceID byte) bool {
	if deviceID > 0x0F {
		obs.Warnf(obs.ComponentTransport, nil, "legacyeth: invalid device id 0x%02X", deviceID)
		return false
	}
	if port < 1 || port > 65534 {
		obs.Warnf(obs.ComponentTransport, nil, "legacyeth: invalid port %d", port)
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.connected {
		return false
	}

	cmdAddr := fmt.Sprintf("%s:%d", target, port)
	monAddr := fmt.Sprintf("%s:%d", target, port+1)

	cmdConn, err := net.Dial("tcp", cmdAddr)
	if err != nil {
		obs.Errorf(obs.ComponentTransport, nil, "legacyeth: dial command %s: %v", cmdAddr, err)
		w.sinks.emitReceivedError(wire.ErrorEvent{Kind: wire.ErrKindConnectFailed})
		return false
	}
	monConn, err := net.Dial("tcp", monAddr)
	if err != nil {
		obs.Errorf(obs.ComponentTransport, nil, "legacyeth: dial monitor %s: %v", monAddr, err)
		_ = cmdConn.Close()
		w.sinks.emitReceivedError(wire.ErrorEvent{Kind: wire.ErrKindConnectFailed})
		return false
	}

	if _, err := monConn.Write(wire.MonitorAck()); err != nil {
		obs.Errorf(obs.ComponentTransport, nil, "legacyeth: monitor ack: %v", err)
		_ = cmdConn.Close()
		_ = monConn.Close()
		w.sinks.emitReceivedError(wire.ErrorEvent{Kind: wire.ErrKindConnectFailed})
		return false
	}
	if _, err := monConn.Write(wire.MonitorGraphAck()); err != nil {
		obs.Errorf(obs.ComponentTransport, nil, "legacyeth: monitor graph ack: %v", err)
		_ = cmdConn.Close()
		_ = monConn.Close()
		w.sinks.emitReceivedError(wire.ErrorEvent{Kind: wire.ErrKindConnectFailed})
		return false
	}

	w.MBAPEncoder = wire.NewMBAPEncoder(deviceID)
	w.cmdConn = cmdConn
	w.monitorConn = monConn
	// Command and monitor sockets carry independent byte streams and each
	// needs its own pipeline: transport.Pipeline.PushChunk is documented
	// for a single producer goroutine, and sharing one ring buffer between
	// the two sockets would interleave their frames.
	w.cmdPipeline = transport.NewPipeline(transport.Config{}, wire.ClassifyMBAP, w.sinks)
	w.monPipeline = transport.NewPipeline(transport.Config{}, wire.ClassifyMBAP, w.sinks)

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.connected = true
	w.cmdPipeline.Start(ctx)
	w.monPipeline.Start(ctx)
	go w.readLoop(ctx, cmdConn, w.cmdPipeline)
	go w.readLoop(ctx, monConn, w.monPipeline)

	w.sinks.emitChangedConnect(true)
	return true
}

func (w *Worker) readLoop(ctx context.Context, conn net.Conn, pipeline *transport.Pipeline) {
	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := conn.Read(buf)
		if n > 0 {
			pipeline.PushChunk(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			obs.Warnf(obs.ComponentTransport, nil, "legacyeth: read error: %v", err)
			go w.Close()
			return
		}
	}
}

// Close stops ingestion, closes both sockets, and fires
// ChangedConnect(false).
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.connected {
		w.mu.Unlock()
		return
	}
	w.connected = false
	cancel := w.cancel
	cmdConn := w.cmdConn
	monConn := w.monitorConn
	cmdPipeline := w.cmdPipeline
	monPipeline := w.monPipeline
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cmdPipeline != nil {
		cmdPipeline.Stop()
	}
	if monPipeline != nil {
		monPipeline.Stop()
	}
	if cmdConn != nil {
		_ = cmdConn.Close()
	}
	if monConn != nil {
		_ = monConn.Close()
	}
	w.sinks.emitChangedConnect(false)
}

// Write sends data on the command socket.
func (w *Worker) Write(data []byte) bool {
	w.mu.Lock()
	conn := w.cmdConn
	connected := w.connected
	w.mu.Unlock()
	if !connected || conn == nil {
		return false
	}
	if _, err := conn.Write(data); err != nil {
		obs.Warnf(obs.ComponentTransport, nil, "legacyeth: write error: %v", err)
		w.sinks.emitReceivedError(wire.ErrorEvent{Kind: wire.ErrKindWriteFailed})
		return false
	}
	w.sinks.emitTransmitRaw(data)
	return true
}

// Connected reports whether both sockets are currently open and ingesting.
func (w *Worker) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

var _ transport.Worker = (*Worker)(nil)
