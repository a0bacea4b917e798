package wire

// Payload layouts (spec.md §4.3). All multi-byte fields are big-endian on
// the wire.

func payloadReadRegs(addr Address, count uint16) []byte {
	return []byte{
		byte(uint16(addr) >> 8), byte(uint16(addr)),
		byte(count >> 8), byte(count),
	}
}

func payloadWriteSingle(addr Address, value uint16) []byte {
	return []byte{
		byte(uint16(addr) >> 8), byte(uint16(addr)),
		byte(value >> 8), byte(value),
	}
}

func payloadWriteMulti(addr Address, values []uint16) []byte {
	count := len(values)
	out := make([]byte, 0, 5+2*count)
	out = append(out,
		byte(uint16(addr)>>8), byte(uint16(addr)),
		byte(count>>8), byte(count),
		byte(2*count),
	)
	for _, v := range values {
		out = append(out, byte(v>>8), byte(v))
	}
	return out
}

// payloadWriteString builds the WriteMultiString payload: addr, register
// count (length/2), a length byte, then the ASCII string right-padded
// with NUL to length bytes.
func payloadWriteString(addr Address, s string, length int) []byte {
	if length < 0 {
		length = 0
	}
	count := length / 2
	out := make([]byte, 0, 5+length)
	out = append(out,
		byte(uint16(addr)>>8), byte(uint16(addr)),
		byte(count>>8), byte(count),
		byte(length),
	)
	buf := make([]byte, length)
	copy(buf, s)
	out = append(out, buf...)
	return out
}

func pduRTU(deviceID byte, code FunctionCode, payload []byte) []byte {
	pdu := make([]byte, 0, 2+len(payload)+2)
	pdu = append(pdu, deviceID, byte(code))
	pdu = append(pdu, payload...)
	return AppendCRC(pdu)
}

// MBAPHeaderSize is the number of bytes preceding the PDU on TCP transport.
const MBAPHeaderSize = 7

func pduMBAP(transactionID uint16, unitID byte, code FunctionCode, payload []byte) []byte {
	pduLen := 2 + len(payload) // unitID + function code + payload
	out := make([]byte, 0, 6+pduLen)
	out = append(out,
		byte(transactionID>>8), byte(transactionID),
		0, 0, // protocol id, always zero
		byte(pduLen>>8), byte(pduLen),
		unitID, byte(code),
	)
	out = append(out, payload...)
	return out
}

// Encoder is the set of six outbound builders every transport dialect
// exposes (spec.md §4.3/§4.4).
type Encoder interface {
	ReadHolding(addr Address, count uint16) []byte
	ReadInput(addr Address, count uint16) []byte
	WriteSingle(addr Address, value uint16) []byte
	WriteMulti(addr Address, values []uint16) []byte
	WriteString(addr Address, s string, length int) []byte
	ReadInfo() []byte
}

// RTUEncoder builds RTU-framed ([id][func][payload][crc16 LE]) requests
// for a single device id.
type RTUEncoder struct {
	DeviceID byte
}

func (e RTUEncoder) ReadHolding(addr Address, count uint16) []byte {
	return pduRTU(e.DeviceID, FuncReadHolding, payloadReadRegs(addr, count))
}
func (e RTUEncoder) ReadInput(addr Address, count uint16) []byte {
	return pduRTU(e.DeviceID, FuncReadInput, payloadReadRegs(addr, count))
}
func (e RTUEncoder) WriteSingle(addr Address, value uint16) []byte {
	return pduRTU(e.DeviceID, FuncWriteSingle, payloadWriteSingle(addr, value))
}
func (e RTUEncoder) WriteMulti(addr Address, values []uint16) []byte {
	return pduRTU(e.DeviceID, FuncWriteMulti, payloadWriteMulti(addr, values))
}
func (e RTUEncoder) WriteString(addr Address, s string, length int) []byte {
	return pduRTU(e.DeviceID, FuncWriteMulti, payloadWriteString(addr, s, length))
}
func (e RTUEncoder) ReadInfo() []byte {
	return pduRTU(e.DeviceID, FuncReadInfo, nil)
}

// MBAPEncoder builds MBAP-framed (TCP) requests. TransactionID is called
// once per outbound frame; the default, set by NewMBAPEncoder, returns the
// device id on every call — the reference's behaviour of using the device
// id as the transaction id rather than an incrementing counter (spec.md
// §4.3, §9 Open Questions). UnitID defaults to 0, matching the reference
// wire capture in spec.md §8 scenario S6.
type MBAPEncoder struct {
	UnitID        byte
	TransactionID func() uint16
}

// NewMBAPEncoder returns the reference-faithful encoder: transaction id
// equals deviceID on every frame, unit id is 0.
func NewMBAPEncoder(deviceID byte) MBAPEncoder {
	return MBAPEncoder{
		UnitID:        0,
		TransactionID: func() uint16 { return uint16(deviceID) },
	}
}

// NewCountingMBAPEncoder returns an encoder that increments the
// transaction id on every call instead of reusing the device id, for
// interoperating with servers that expect unique transaction ids (see
// spec.md §9 Open Questions).
func NewCountingMBAPEncoder(unitID byte) *MBAPEncoder {
	var next uint16
	enc := &MBAPEncoder{UnitID: unitID}
	enc.TransactionID = func() uint16 {
		next++
		return next
	}
	return enc
}

func (e MBAPEncoder) tid() uint16 {
	if e.TransactionID == nil {
		return 0
	}
	return e.TransactionID()
}

func (e MBAPEncoder) ReadHolding(addr Address, count uint16) []byte {
	return pduMBAP(e.tid(), e.UnitID, FuncReadHolding, payloadReadRegs(addr, count))
}
func (e MBAPEncoder) ReadInput(addr Address, count uint16) []byte {
	return pduMBAP(e.tid(), e.UnitID, FuncReadInput, payloadReadRegs(addr, count))
}
func (e MBAPEncoder) WriteSingle(addr Address, value uint16) []byte {
	return pduMBAP(e.tid(), e.UnitID, FuncWriteSingle, payloadWriteSingle(addr, value))
}
func (e MBAPEncoder) WriteMulti(addr Address, values []uint16) []byte {
	return pduMBAP(e.tid(), e.UnitID, FuncWriteMulti, payloadWriteMulti(addr, values))
}
func (e MBAPEncoder) WriteString(addr Address, s string, length int) []byte {
	return pduMBAP(e.tid(), e.UnitID, FuncWriteMulti, payloadWriteString(addr, s, length))
}
func (e MBAPEncoder) ReadInfo() []byte {
	return pduMBAP(e.tid(), e.UnitID, FuncReadInfo, nil)
}

// MonitorAck is the fixed 12-byte acknowledgement the legacy HANTAS
// Ethernet dialect sends to the monitor socket immediately after connect
// (spec.md §6).
func MonitorAck() []byte {
	return []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x06, 0x00, 0x06, 0x0F, 0xB0, 0x00, 0x01}
}

// MonitorGraphAck is the second fixed 12-byte acknowledgement sent to the
// monitor socket after MonitorAck (spec.md §6).
func MonitorGraphAck() []byte {
	return []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x06, 0x00, 0x06, 0x0F, 0xBA, 0x00, 0x01}
}
