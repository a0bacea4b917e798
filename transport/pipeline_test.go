package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyungtackKim/hantas-torque-link/wire"
)

func newTestPipeline(t *testing.T, cfg Config, deviceID byte) (*Pipeline, *sync.Mutex, *[]wire.DataEvent, *[]wire.ErrorEvent, *[]bool) {
	t.Helper()
	var mu sync.Mutex
	var data []wire.DataEvent
	var errs []wire.ErrorEvent
	var conns []bool
	sinks := Sinks{
		ReceivedData: func(ev wire.DataEvent) {
			mu.Lock()
			defer mu.Unlock()
			data = append(data, ev)
		},
		ReceivedError: func(ev wire.ErrorEvent) {
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, ev)
		},
		ChangedConnect: func(c bool) {
			mu.Lock()
			defer mu.Unlock()
			conns = append(conns, c)
		},
	}
	p := NewPipeline(cfg, func(buf []byte) wire.Classification {
		return wire.ClassifyRTU(buf, deviceID)
	}, sinks)
	return p, &mu, &data, &errs, &conns
}

func TestPipelineClassifiesCompleteFrameOnTick(t *testing.T) {
	p, mu, data, _, _ := newTestPipeline(t, Config{ValidateCRC: true}, 0x01)
	frame := []byte{0x01, 0x03, 0x04, 0x00, 0x11, 0x00, 0x22, 0x2A, 0x2F}
	p.PushChunk(frame)
	p.tick()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *data, 1)
	assert.Equal(t, wire.FuncReadHolding, (*data)[0].Code)
	assert.Equal(t, frame, (*data)[0].Frame)
}

func TestPipelineWaitsOnPartialFrame(t *testing.T) {
	p, mu, data, errs, _ := newTestPipeline(t, Config{ValidateCRC: true}, 0x01)
	frame := []byte{0x01, 0x03, 0x04, 0x00, 0x11, 0x00, 0x22, 0x2A, 0x2F}
	p.PushChunk(frame[:4])
	p.tick()

	mu.Lock()
	assert.Empty(t, *data)
	assert.Empty(t, *errs)
	mu.Unlock()

	p.PushChunk(frame[4:])
	p.tick()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *data, 1)
}

func TestPipelineEmitsCRCErrorOnCorruptFrame(t *testing.T) {
	p, mu, data, errs, _ := newTestPipeline(t, Config{ValidateCRC: true}, 0x01)
	frame := []byte{0x01, 0x03, 0x04, 0x00, 0x11, 0x00, 0x22, 0xFF, 0xFF}
	p.PushChunk(frame)
	p.tick()

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, *data)
	require.Len(t, *errs, 1)
	assert.Equal(t, wire.ErrKindInvalidCRC, (*errs)[0].Kind)
}

func TestPipelineResyncsOnGarbageByte(t *testing.T) {
	p, mu, data, _, _ := newTestPipeline(t, Config{ValidateCRC: true}, 0x01)
	frame := []byte{0x01, 0x03, 0x04, 0x00, 0x11, 0x00, 0x22, 0x2A, 0x2F}
	garbage := append([]byte{0xFF, 0xFF}, frame...)
	p.PushChunk(garbage)
	p.tick()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *data, 1)
	assert.Equal(t, frame, (*data)[0].Frame)
}

func TestPipelineInterByteTimeoutClearsBuffer(t *testing.T) {
	p, mu, _, errs, _ := newTestPipeline(t, Config{ValidateCRC: true, InterByteTimeout: 10 * time.Millisecond}, 0x01)
	p.PushChunk([]byte{0x01, 0x03, 0x04})
	p.tick()
	time.Sleep(20 * time.Millisecond)
	p.tick()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *errs, 1)
	assert.Equal(t, wire.ErrKindTimeout, (*errs)[0].Kind)
	assert.Equal(t, 3, (*errs)[0].Param)
}

func TestPipelineReceivedRawFiresOnPush(t *testing.T) {
	var mu sync.Mutex
	var raw [][]byte
	sinks := Sinks{ReceivedRaw: func(data []byte) {
		mu.Lock()
		defer mu.Unlock()
		raw = append(raw, data)
	}}
	p := NewPipeline(Config{}, func(buf []byte) wire.Classification { return wire.Classification{Action: wire.ActionWait} }, sinks)
	p.PushChunk([]byte{0x01, 0x02})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, raw, 1)
	assert.Equal(t, []byte{0x01, 0x02}, raw[0])
}
