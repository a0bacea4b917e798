// Package tcp implements the MODBUS-TCP (MBAP) transport dialect over a
// single client socket with keep-alive tuning (spec.md §6).
package tcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/KyungtackKim/hantas-torque-link/internal/obs"
	"github.com/KyungtackKim/hantas-torque-link/internal/sockopt"
	"github.com/KyungtackKim/hantas-torque-link/transport"
	"github.com/KyungtackKim/hantas-torque-link/wire"
)

// DefaultPort and StandardModbusPort are the two ports spec.md §6 calls
// out: the HANTAS-common default, and the MODBUS-standard fallback.
const (
	DefaultPort        = 5000
	StandardModbusPort = 502
)

// readChunkSize is the size of each os-level read; spec.md does not fix a
// TCP-side buffer size (unlike the serial dialect's 16 KiB), so this
// matches the serial read buffer for consistency.
const readChunkSize = 16 * 1024

// TransactionIDMode selects how the MBAP encoder assigns transaction ids.
type TransactionIDMode int

const (
	// TransactionIDDeviceID reuses the device id as the transaction id on
	// every frame, the reference's own behaviour (spec.md §4.3, §9).
	TransactionIDDeviceID TransactionIDMode = iota
	// TransactionIDCounter increments a per-connection counter instead.
	TransactionIDCounter
)

// Option configures a Worker at construction time.
type Option func(*Worker)

// WithTransactionIDMode overrides the default device-id transaction id
// scheme with an incrementing counter.
func WithTransactionIDMode(mode TransactionIDMode) Option {
	return func(w *Worker) { w.tidMode = mode }
}

// WithKeepAlive overrides spec.md §6's default keep-alive parameters.
func WithKeepAlive(ka sockopt.KeepAlive) Option {
	return func(w *Worker) { w.keepAlive = ka }
}

// Worker is the TCP (MBAP) transport dialect.
type Worker struct {
	wire.MBAPEncoder
	tidMode   TransactionIDMode
	keepAlive sockopt.KeepAlive

	pipeline *transport.Pipeline
	sinks    transport.Sinks

	mu        sync.Mutex
	conn      net.Conn
	cancel    context.CancelFunc
	connected bool
}

// New constructs an unconnected TCP Worker.
func New(sinks transport.Sinks, opts ...Option) *Worker {
	w := &Worker{sinks: sinks, keepAlive: sockopt.DefaultKeepAlive()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Connect dials target:port and begins ingestion addressed to deviceID.
// port must be in 1..65535.
func (w *Worker) Connect(target string, port int, deviceID byte) bool {
	if deviceID > 0x0F {
		obs.Warnf(obs.ComponentTransport, nil, "tcp: invalid device id 0x%02X", deviceID)
		return false
	}
	if port < 1 || port > 65535 {
		obs.Warnf(obs.ComponentTransport, nil, "tcp: invalid port %d", port)
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.connected {
		return false
	}

	addr := fmt.Sprintf("%s:%d", target, port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		obs.Errorf(obs.ComponentTransport, nil, "tcp: dial %s: %v", addr, err)
		w.sinks.emitReceivedError(wire.ErrorEvent{Kind: wire.ErrKindConnectFailed})
		return false
	}
	if err := sockopt.ConfigureKeepAlive(conn, w.keepAlive); err != nil {
		obs.Warnf(obs.ComponentTransport, nil, "tcp: keep-alive tuning failed: %v", err)
	}

	if w.tidMode == TransactionIDCounter {
		w.MBAPEncoder = *wire.NewCountingMBAPEncoder(0)
	} else {
		w.MBAPEncoder = wire.NewMBAPEncoder(deviceID)
	}
	w.conn = conn
	w.pipeline = transport.NewPipeline(transport.Config{}, wire.ClassifyMBAP, w.sinks)

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.connected = true
	w.pipeline.Start(ctx)
	go w.readLoop(ctx, conn)

	w.sinks.emitChangedConnect(true)
	return true
}

func (w *Worker) readLoop(ctx context.Context, conn net.Conn) {
	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := conn.Read(buf)
		if n > 0 {
			w.pipeline.PushChunk(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if err == io.EOF {
				obs.Infof(obs.ComponentTransport, nil, "tcp: peer closed connection")
			} else {
				obs.Warnf(obs.ComponentTransport, nil, "tcp: read error: %v", err)
			}
			go w.Close()
			return
		}
	}
}

// Close stops ingestion, closes the socket, and fires ChangedConnect(false).
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.connected {
		w.mu.Unlock()
		return
	}
	w.connected = false
	cancel := w.cancel
	conn := w.conn
	p := w.pipeline
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if p != nil {
		p.Stop()
	}
	if conn != nil {
		_ = conn.Close()
	}
	w.sinks.emitChangedConnect(false)
}

// Write blocks until data has been fully written to the socket.
func (w *Worker) Write(data []byte) bool {
	w.mu.Lock()
	conn := w.conn
	connected := w.connected
	w.mu.Unlock()
	if !connected || conn == nil {
		return false
	}
	if _, err := conn.Write(data); err != nil {
		obs.Warnf(obs.ComponentTransport, nil, "tcp: write error: %v", err)
		w.sinks.emitReceivedError(wire.ErrorEvent{Kind: wire.ErrKindWriteFailed})
		return false
	}
	w.sinks.emitTransmitRaw(data)
	return true
}

// Connected reports whether the socket is currently open and ingesting.
func (w *Worker) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

var _ transport.Worker = (*Worker)(nil)
