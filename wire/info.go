package wire

// DecodeInfo extracts the firmware/model fields carried in a ReadInfo
// response's payload. The byte-count field and payload start indices are
// shared with DecodeRegisters; firmware is the first big-endian uint16 of
// the payload, model is the byte immediately following it (0 = standard,
// nonzero = the Ad variant). Device info payload layout is not pinned by a
// byte-for-byte reference in this core's scope (§6 only specifies the
// derivation rule, not the wire offsets), so this is the core's own
// reasonable placeholder layout, documented for an integrator to override.
func DecodeInfo(frame []byte, mbap bool) (firmware int, model Model, ok bool) {
	countIdx, dataIdx := 2, 3
	if mbap {
		countIdx, dataIdx = MBAPHeaderSize+1, MBAPHeaderSize+2
	}
	if len(frame) <= countIdx {
		return 0, ModelStandard, false
	}
	byteCount := int(frame[countIdx])
	if byteCount < 2 || dataIdx+2 > len(frame) {
		return 0, ModelStandard, false
	}
	firmware = int(frame[dataIdx])<<8 | int(frame[dataIdx+1])
	model = ModelStandard
	if dataIdx+2 < len(frame) && frame[dataIdx+2] != 0 {
		model = ModelAd
	}
	return firmware, model, true
}
