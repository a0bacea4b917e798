package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hexBytes(bs ...byte) []byte { return bs }

// S1 — RTU ReadHolding build.
func TestS1_RTUReadHoldingBuild(t *testing.T) {
	enc := RTUEncoder{DeviceID: 0x01}
	got := enc.ReadHolding(0x0000, 0x000A)
	want := hexBytes(0x01, 0x03, 0x00, 0x00, 0x00, 0x0A, 0xC5, 0xCD)
	assert.Equal(t, want, got)
}

// S2 — RTU ReadHolding response parse.
func TestS2_RTUReadHoldingResponseParse(t *testing.T) {
	frame := hexBytes(0x01, 0x03, 0x04, 0x00, 0x11, 0x00, 0x22, 0x2A, 0x2F)
	c := ClassifyRTU(frame, 0x01)
	require.Equal(t, ActionFrame, c.Action)
	assert.Equal(t, len(frame), c.Length)
	assert.Equal(t, FuncReadHolding, c.Code)
	assert.True(t, ValidateCRC(frame[:c.Length]))

	regs := DecodeRegisters(frame, false)
	assert.Equal(t, []uint16{0x0011, 0x0022}, regs)
}

// S3 — RTU exception.
func TestS3_RTUException(t *testing.T) {
	frame := hexBytes(0x01, 0x83, 0x02, 0xC0, 0xF1)
	c := ClassifyRTU(frame, 0x01)
	require.Equal(t, ActionFrame, c.Action)
	assert.Equal(t, FuncError, c.Code)
	assert.True(t, c.Exception)
	code, ok := ExceptionCode(frame[:c.Length], false)
	require.True(t, ok)
	assert.Equal(t, byte(0x02), code)
}

// S4 — staged framing: classification only fires once the full frame has
// arrived; this is exercised at the transport layer, but the codec-level
// guarantee is that ClassifyRTU reports ActionWait on every partial
// prefix of a complete frame.
func TestS4_PartialFramesWait(t *testing.T) {
	full := hexBytes(0x01, 0x03, 0x04, 0x00, 0x11, 0x00, 0x22, 0x6A, 0x2C)
	for n := 1; n < len(full); n++ {
		c := ClassifyRTU(full[:n], 0x01)
		assert.NotEqual(t, ActionFrame, c.Action, "n=%d", n)
	}
	c := ClassifyRTU(full, 0x01)
	assert.Equal(t, ActionFrame, c.Action)
}

// S6 — TCP ReadInfo build.
func TestS6_TCPReadInfoBuild(t *testing.T) {
	enc := NewMBAPEncoder(0x01)
	got := enc.ReadInfo()
	want := hexBytes(0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x11)
	assert.Equal(t, want, got)
}

func TestCRC16RoundTrip(t *testing.T) {
	seqs := [][]byte{
		{},
		{0x01},
		{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A},
		{0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA, 0x99},
	}
	for _, s := range seqs {
		framed := AppendCRC(append([]byte{}, s...))
		assert.True(t, ValidateCRC(framed))
		// Flipping any bit should (overwhelmingly likely) invalidate it.
		for i := range framed {
			corrupt := append([]byte{}, framed...)
			corrupt[i] ^= 0x01
			assert.False(t, ValidateCRC(corrupt), "seq=%v byte=%d", s, i)
		}
	}
}

func TestBuildThenClassifyWriteSingle(t *testing.T) {
	enc := RTUEncoder{DeviceID: 0x02}
	frame := enc.WriteSingle(0x0010, 0x00FF)
	c := ClassifyRTU(frame, 0x02)
	require.Equal(t, ActionFrame, c.Action)
	assert.Equal(t, len(frame), c.Length)
	assert.Equal(t, FuncWriteSingle, c.Code)
}

func TestClassifyRTUResyncOnWrongDeviceID(t *testing.T) {
	frame := hexBytes(0x01, 0x03, 0x04, 0x00, 0x11, 0x00, 0x22, 0x6A, 0x2C)
	c := ClassifyRTU(frame, 0x09)
	assert.Equal(t, ActionResync, c.Action)
}

func TestClassifyRTUResyncOnUnknownFunction(t *testing.T) {
	frame := hexBytes(0x01, 0x7F, 0x00)
	c := ClassifyRTU(frame, 0x01)
	assert.Equal(t, ActionResync, c.Action)
}

func TestClassifyMBAPUsesLengthField(t *testing.T) {
	enc := NewMBAPEncoder(0x01)
	frame := enc.ReadHolding(0, 10)
	c := ClassifyMBAP(frame)
	// This is a request frame (4-byte payload), not a response; MBAP
	// classification is length-driven so it still resolves correctly.
	require.Equal(t, ActionFrame, c.Action)
	assert.Equal(t, len(frame), c.Length)
	assert.Equal(t, FuncReadHolding, c.Code)
}

func TestDeriveGeneration(t *testing.T) {
	th := DefaultGenerationThresholds()
	assert.Equal(t, Gen2, DeriveGeneration(400, ModelStandard, th))
	assert.Equal(t, Gen1Plus, DeriveGeneration(250, ModelStandard, th))
	assert.Equal(t, Gen1Ad, DeriveGeneration(150, ModelAd, th))
	assert.Equal(t, Gen1, DeriveGeneration(150, ModelStandard, th))
	assert.Equal(t, Gen1, DeriveGeneration(50, ModelAd, th))
}

func TestWriteMultiStringPayload(t *testing.T) {
	enc := RTUEncoder{DeviceID: 0x01}
	frame := enc.WriteString(0x0000, "AB", 4)
	// addr(2) + count(2)=0x0002 + length(1)=4 + 4 ascii bytes "AB\x00\x00" + crc(2)
	assert.Equal(t, 2+1+2+2+4+2+2-2, len(frame)) // sanity: header(2)+payload(9)+crc(2)=13
	assert.Equal(t, byte(0x00), frame[2])
	assert.Equal(t, byte(0x00), frame[3])
	assert.Equal(t, byte(0x00), frame[4]) // count hi
	assert.Equal(t, byte(0x02), frame[5]) // count lo = length/2
	assert.Equal(t, byte(0x04), frame[6]) // length byte
	assert.Equal(t, []byte("AB\x00\x00"), frame[7:11])
}
