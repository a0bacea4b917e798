package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsUpToPowerOfTwo(t *testing.T) {
	r := New(10)
	assert.Equal(t, 16, r.Cap())

	r2 := New(16)
	assert.Equal(t, 16, r2.Cap())
}

func TestWriteReadFIFOOrder(t *testing.T) {
	r := New(16)
	r.Write([]byte{1, 2, 3, 4})
	require.Equal(t, 4, r.Len())

	got := r.Read(2)
	assert.Equal(t, []byte{1, 2}, got)
	assert.Equal(t, 2, r.Len())

	got = r.Read(10)
	assert.Equal(t, []byte{3, 4}, got)
	assert.Equal(t, 0, r.Len())
}

func TestWriteByteWrapsAndFIFOs(t *testing.T) {
	r := New(4)
	for i := byte(0); i < 4; i++ {
		r.WriteByte(i)
	}
	require.Equal(t, 4, r.Len())
	// Fill past capacity: evicts oldest (0), keeps [1,2,3,4].
	r.WriteByte(4)
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []byte{1, 2, 3, 4}, r.Read(4))
}

func TestOverflowKeepsLastCapacityBytes(t *testing.T) {
	r := New(4)
	r.Write([]byte{1, 2, 3, 4, 5, 6, 7})
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []byte{4, 5, 6, 7}, r.Read(4))
}

func TestWriteLargerThanCapacityKeepsTail(t *testing.T) {
	r := New(4)
	r.Write([]byte{1, 2, 3, 4, 5, 6})
	assert.Equal(t, []byte{3, 4, 5, 6}, r.PeekAll())
}

func TestPeekAllWrapsContiguously(t *testing.T) {
	r := New(4)
	r.Write([]byte{1, 2, 3})
	r.Read(2) // readPos=2, avail=1, writePos=3
	r.Write([]byte{4, 5, 6})
	// avail bytes now wrap around the end of the backing array.
	got := r.PeekAll()
	assert.Equal(t, []byte{3, 4, 5, 6}, got)
}

func TestPeekOutOfRangePanics(t *testing.T) {
	r := New(4)
	r.Write([]byte{1})
	assert.Panics(t, func() { r.Peek(1) })
}

func TestRemoveAdvancesWithoutCopy(t *testing.T) {
	r := New(8)
	r.Write([]byte{1, 2, 3, 4})
	r.Remove(2)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []byte{3, 4}, r.Read(2))
}

func TestClear(t *testing.T) {
	r := New(8)
	r.Write([]byte{1, 2, 3})
	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 8, r.Free())
}

func TestAvailableInvariantUnderInterleaving(t *testing.T) {
	r := New(16)
	var written, readBytes []byte
	var nextWrite byte
	for i := 0; i < 100; i++ {
		switch i % 3 {
		case 0, 1:
			n := 1 + i%5
			if r.Len()+n > r.Cap() {
				continue
			}
			buf := make([]byte, n)
			for j := range buf {
				buf[j] = nextWrite
				nextWrite++
				written = append(written, buf[j])
			}
			r.Write(buf)
		default:
			n := r.Len()
			if n > 2 {
				n = 2
			}
			readBytes = append(readBytes, r.Read(n)...)
		}
		assert.Equal(t, len(written)-len(readBytes), r.Len())
	}
	readBytes = append(readBytes, r.Read(r.Len())...)
	assert.Equal(t, written, readBytes)
}
