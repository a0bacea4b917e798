package legacyeth

import (
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyungtackKim/hantas-torque-link/transport"
	"github.com/KyungtackKim/hantas-torque-link/wire"
)

// mbapHoldingResponse builds a minimal MBAP-framed read-holding-registers
// response so a test server can hand back distinguishable register values
// without going through a real Worker encoder.
func mbapHoldingResponse(transactionID uint16, unitID byte, values ...uint16) []byte {
	pduLen := 1 + 1 + 1 + 2*len(values)
	frame := []byte{
		byte(transactionID >> 8), byte(transactionID),
		0, 0,
		byte(pduLen >> 8), byte(pduLen),
		unitID, byte(wire.FuncReadHolding), byte(2 * len(values)),
	}
	for _, v := range values {
		frame = append(frame, byte(v>>8), byte(v))
	}
	return frame
}

// listenAdjacentPorts finds a free command port p with a free monitor port
// p+1 available too, matching the legacy dialect's port/port+1 convention.
func listenAdjacentPorts(t *testing.T) (net.Listener, net.Listener, int) {
	t.Helper()
	for attempt := 0; attempt < 20; attempt++ {
		cmdLn, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := cmdLn.Addr().(*net.TCPAddr).Port
		monLn, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port+1))
		if err != nil {
			cmdLn.Close()
			continue
		}
		return cmdLn, monLn, port
	}
	t.Fatal("could not find adjacent free ports")
	return nil, nil, 0
}

func waitForEvents(t *testing.T, mu *sync.Mutex, events *[]wire.DataEvent, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := len(*events)
		mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events", n)
}

// TestConnectUsesIndependentPipelinesPerSocket guards against the command
// and monitor sockets sharing one pipeline: if they did, concurrent writes
// from both server-side connections would race PushChunk and could merge
// or truncate frames from the two streams.
func TestConnectUsesIndependentPipelinesPerSocket(t *testing.T) {
	cmdLn, monLn, port := listenAdjacentPorts(t)
	defer cmdLn.Close()
	defer monLn.Close()

	const deviceID = 0x01

	var mu sync.Mutex
	var events []wire.DataEvent
	sinks := transport.Sinks{
		ReceivedData: func(ev wire.DataEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		},
	}

	go func() {
		conn, err := cmdLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write(mbapHoldingResponse(1, deviceID, 11, 22))
	}()
	go func() {
		conn, err := monLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		ack := make([]byte, len(wire.MonitorAck())+len(wire.MonitorGraphAck()))
		_, _ = io.ReadFull(conn, ack)
		_, _ = conn.Write(mbapHoldingResponse(2, deviceID, 33))
	}()

	w := New(sinks)
	require.True(t, w.Connect("127.0.0.1", port, deviceID))
	defer w.Close()

	waitForEvents(t, &mu, &events, 2, time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	var seenCmd, seenMon bool
	for _, ev := range events {
		regs := wire.DecodeRegisters(ev.Frame, true)
		switch {
		case len(regs) == 2 && regs[0] == 11 && regs[1] == 22:
			seenCmd = true
		case len(regs) == 1 && regs[0] == 33:
			seenMon = true
		}
	}
	assert.True(t, seenCmd, "command-socket frame was not classified intact")
	assert.True(t, seenMon, "monitor-socket frame was not classified intact")
}
