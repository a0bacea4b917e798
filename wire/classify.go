package wire

// Action describes what the transport's ingest pipeline should do after
// attempting to classify the head of its analyze buffer.
type Action int

const (
	// ActionWait means not enough bytes are available yet; the caller
	// should leave the buffer untouched and retry once more bytes arrive.
	ActionWait Action = iota
	// ActionResync means the head byte does not begin a recognizable
	// frame; the caller should drop exactly one byte and retry.
	ActionResync
	// ActionFrame means a complete frame of Length bytes is available at
	// the head of the buffer.
	ActionFrame
)

// Classification is the result of attempting to classify the head of an
// inbound byte stream.
type Classification struct {
	Action    Action
	Length    int          // valid only when Action == ActionFrame
	Code      FunctionCode // valid only when Action == ActionFrame
	Exception bool         // valid only when Action == ActionFrame
}

// responseLenRTU returns the total length in bytes of an RTU response
// frame with function code code. ok is false if more bytes must arrive
// before the length itself can be computed, and also for a code with no
// RTU size rule (HighResGraph), which ClassifyRTU then reports as
// ActionWait like an incomplete frame.
func responseLenRTU(buf []byte, code FunctionCode) (length int, ok bool) {
	switch code {
	case FuncReadHolding, FuncReadInput, FuncReadInfo:
		if len(buf) < 3 {
			return 0, false
		}
		return int(buf[2]) + 5, true
	case FuncWriteSingle, FuncWriteMulti:
		return 8, true
	case FuncGraph, FuncGraphRes:
		if len(buf) < 4 {
			return 0, false
		}
		return int(buf[2])<<8 | int(buf[3]) + 6, true
	default:
		return 0, false
	}
}

// ClassifyRTU classifies the head of buf as an RTU frame addressed to
// deviceID. buf is a read-only view (e.g. ringbuf.Ring.PeekAll()); the
// caller is responsible for acting on the returned Classification and
// removing consumed bytes from its own buffer.
func ClassifyRTU(buf []byte, deviceID byte) Classification {
	if len(buf) < 2 {
		return Classification{Action: ActionWait}
	}
	if buf[0] != deviceID {
		return Classification{Action: ActionResync}
	}
	funcByte := buf[1]
	exception := funcByte&exceptionBit != 0
	baseCode := FunctionCode(funcByte &^ exceptionBit)

	if exception {
		const length = 5
		if len(buf) < length {
			return Classification{Action: ActionWait}
		}
		return Classification{Action: ActionFrame, Length: length, Code: FuncError, Exception: true}
	}

	if !knownResponseCode(baseCode) {
		return Classification{Action: ActionResync}
	}
	length, ok := responseLenRTU(buf, baseCode)
	if !ok {
		return Classification{Action: ActionWait}
	}
	if len(buf) < length {
		return Classification{Action: ActionWait}
	}
	return Classification{Action: ActionFrame, Length: length, Code: baseCode}
}

// ClassifyMBAP classifies the head of buf as an MBAP (TCP) frame. Per
// spec.md §4.3, the MBAP length field is used directly rather than
// re-deriving the length from the function code: once the 6-byte MBAP
// prefix (transaction id, protocol id, length) is available, the total
// frame length is fully determined, and only then is the function-code
// byte inspected.
func ClassifyMBAP(buf []byte) Classification {
	if len(buf) < 6 {
		return Classification{Action: ActionWait}
	}
	pduLen := int(buf[4])<<8 | int(buf[5])
	if pduLen < 2 {
		// Malformed: a PDU is at minimum unit id + function code.
		return Classification{Action: ActionResync}
	}
	total := MBAPHeaderSize - 1 + pduLen // 6 bytes of prefix + pduLen
	if len(buf) < total {
		return Classification{Action: ActionWait}
	}
	funcByte := buf[MBAPHeaderSize]
	exception := funcByte&exceptionBit != 0
	baseCode := FunctionCode(funcByte &^ exceptionBit)
	if exception {
		return Classification{Action: ActionFrame, Length: total, Code: FuncError, Exception: true}
	}
	if !knownResponseCode(baseCode) {
		return Classification{Action: ActionResync}
	}
	return Classification{Action: ActionFrame, Length: total, Code: baseCode}
}

// ExceptionCode extracts the exception code byte from a classified
// exception frame. For RTU, that is frame[2]; for MBAP, frame[8]. ok is
// false if frame is too short.
func ExceptionCode(frame []byte, mbap bool) (code byte, ok bool) {
	idx := 2
	if mbap {
		idx = MBAPHeaderSize + 1
	}
	if len(frame) <= idx {
		return 0, false
	}
	return frame[idx], true
}

// DecodeRegisters decodes the register-value payload of a ReadHolding or
// ReadInput response frame into a slice of big-endian uint16 values.
// For RTU, the byte-count field is at index 2 and values start at index 3.
// For MBAP, the byte-count field is at index 8 and values start at index 9.
func DecodeRegisters(frame []byte, mbap bool) []uint16 {
	countIdx, dataIdx := 2, 3
	if mbap {
		countIdx, dataIdx = MBAPHeaderSize+1, MBAPHeaderSize+2
	}
	if len(frame) <= countIdx {
		return nil
	}
	byteCount := int(frame[countIdx])
	n := byteCount / 2
	if dataIdx+byteCount > len(frame) {
		n = (len(frame) - dataIdx) / 2
	}
	out := make([]uint16, 0, n)
	for i := 0; i < n; i++ {
		hi := frame[dataIdx+2*i]
		lo := frame[dataIdx+2*i+1]
		out = append(out, uint16(hi)<<8|uint16(lo))
	}
	return out
}
