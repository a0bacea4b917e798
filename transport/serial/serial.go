// Package serial implements the MODBUS-RTU transport dialect: requests and
// responses framed as [device_id][function_code][payload][CRC-16 LE] over
// an 8N1 serial line with no handshake (spec.md §6).
package serial

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"

	"github.com/KyungtackKim/hantas-torque-link/internal/obs"
	"github.com/KyungtackKim/hantas-torque-link/internal/sockopt"
	"github.com/KyungtackKim/hantas-torque-link/transport"
	"github.com/KyungtackKim/hantas-torque-link/wire"
)

// ReadBufferSize and WriteBufferSize are the fixed OS-level buffer sizes
// spec.md §6 assigns to the serial line.
const (
	ReadBufferSize  = 16 * 1024
	WriteBufferSize = 16 * 1024
)

// Worker is the serial (MODBUS-RTU) transport dialect.
type Worker struct {
	wire.RTUEncoder
	pipeline *transport.Pipeline
	sinks    transport.Sinks

	mu        sync.Mutex
	file      *os.File
	cancel    context.CancelFunc
	connected bool
}

// New constructs an unconnected serial Worker. sinks are the five observer
// callbacks fired by the shared staged-ingest pipeline.
func New(sinks transport.Sinks) *Worker {
	return &Worker{sinks: sinks}
}

// Connect opens the serial device node at target, configures it for baud
// (one of sockopt.SupportedBauds), and begins ingestion addressed to
// deviceID.
func (w *Worker) Connect(target string, baud int, deviceID byte) bool {
	if deviceID > 0x0F {
		obs.Warnf(obs.ComponentTransport, nil, "serial: invalid device id 0x%02X", deviceID)
		return false
	}
	if _, ok := sockopt.SupportedBauds[baud]; !ok {
		obs.Warnf(obs.ComponentTransport, nil, "serial: unsupported baud %d", baud)
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.connected {
		return false
	}

	f, err := os.OpenFile(target, os.O_RDWR|os.O_NOCTTY, 0)
	if err != nil {
		obs.Errorf(obs.ComponentTransport, nil, "serial: open %s: %v", target, err)
		w.sinks.emitReceivedError(wire.ErrorEvent{Kind: wire.ErrKindConnectFailed})
		return false
	}
	if err := sockopt.ConfigureTermios(f, baud); err != nil {
		obs.Errorf(obs.ComponentTransport, nil, "serial: configure %s: %v", target, err)
		_ = f.Close()
		w.sinks.emitReceivedError(wire.ErrorEvent{Kind: wire.ErrKindConnectFailed})
		return false
	}

	w.RTUEncoder = wire.RTUEncoder{DeviceID: deviceID}
	w.file = f
	w.pipeline = transport.NewPipeline(transport.Config{
		ValidateCRC: true,
	}, func(buf []byte) wire.Classification {
		return wire.ClassifyRTU(buf, deviceID)
	}, w.sinks)

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.connected = true
	w.pipeline.Start(ctx)
	go w.readLoop(ctx, f)

	w.sinks.emitChangedConnect(true)
	return true
}

func (w *Worker) readLoop(ctx context.Context, f *os.File) {
	buf := make([]byte, ReadBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := f.Read(buf)
		if n > 0 {
			w.pipeline.PushChunk(buf[:n])
		}
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return
			}
			obs.Warnf(obs.ComponentTransport, nil, "serial: read error: %v", err)
		}
	}
}

// Close stops ingestion, closes the line, and fires ChangedConnect(false).
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.connected {
		w.mu.Unlock()
		return
	}
	w.connected = false
	cancel := w.cancel
	f := w.file
	p := w.pipeline
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if p != nil {
		p.Stop()
	}
	if f != nil {
		_ = f.Close()
	}
	w.sinks.emitChangedConnect(false)
}

// Write blocks until data has been fully written to the line.
func (w *Worker) Write(data []byte) bool {
	w.mu.Lock()
	f := w.file
	connected := w.connected
	w.mu.Unlock()
	if !connected || f == nil {
		return false
	}
	r := bytes.NewReader(data)
	if _, err := io.CopyN(f, r, int64(len(data))); err != nil {
		obs.Warnf(obs.ComponentTransport, nil, "serial: write error: %v", err)
		w.sinks.emitReceivedError(wire.ErrorEvent{Kind: wire.ErrKindWriteFailed})
		return false
	}
	w.sinks.emitTransmitRaw(data)
	return true
}

// Connected reports whether the line is currently open and ingesting.
func (w *Worker) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

var _ transport.Worker = (*Worker)(nil)
