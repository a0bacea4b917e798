// Package wire implements the pure, stateless frame codec shared by every
// HANTAS transport dialect: CRC-16/MODBUS, outbound frame builders for the
// RTU and MBAP (TCP) wire formats, and classification of inbound byte
// streams into complete, function-code-tagged frames.
//
// Nothing in this package touches a socket, a serial port, or a clock —
// transport.Worker implementations own the I/O and call into wire for
// encoding and classification only.
package wire

import "fmt"

// FunctionCode tags a Message and an inbound frame with the MODBUS/HANTAS
// function it belongs to. Values below 0x80 are the raw wire function code
// byte; Error is a synthetic tag with no single wire value — it is assigned
// to any frame whose function byte has the high (exception) bit set.
type FunctionCode byte

// Function codes observed on the wire (spec.md §6). Exception responses
// OR the wire byte with 0x80; the classifier strips that bit and reports
// FuncError instead of preserving the original code, per spec.md §3.
const (
	FuncReadHolding  FunctionCode = 0x03
	FuncReadInput    FunctionCode = 0x04
	FuncWriteSingle  FunctionCode = 0x06
	FuncWriteMulti   FunctionCode = 0x10
	FuncReadInfo     FunctionCode = 0x11
	FuncGraph        FunctionCode = 0x14
	FuncGraphRes     FunctionCode = 0x15
	FuncHighResGraph FunctionCode = 0x16
	// FuncError is synthetic: never written to the wire, only produced by
	// classification when the exception bit is set.
	FuncError FunctionCode = 0x00
)

// exceptionBit marks an exception response in the function code byte.
const exceptionBit = 0x80

func (c FunctionCode) String() string {
	switch c {
	case FuncReadHolding:
		return "ReadHolding"
	case FuncReadInput:
		return "ReadInput"
	case FuncWriteSingle:
		return "WriteSingle"
	case FuncWriteMulti:
		return "WriteMulti"
	case FuncReadInfo:
		return "ReadInfo"
	case FuncGraph:
		return "Graph"
	case FuncGraphRes:
		return "GraphRes"
	case FuncHighResGraph:
		return "HighResGraph"
	case FuncError:
		return "Error"
	default:
		return fmt.Sprintf("FunctionCode(0x%02X)", byte(c))
	}
}

// knownResponseCode reports whether code is one of the function codes this
// codec can classify on the response side of the wire.
func knownResponseCode(code FunctionCode) bool {
	switch code {
	case FuncReadHolding, FuncReadInput, FuncWriteSingle, FuncWriteMulti,
		FuncReadInfo, FuncGraph, FuncGraphRes, FuncHighResGraph:
		return true
	default:
		return false
	}
}

// Address is a logical register address. EmptyAddr is the sentinel used by
// messages with no semantically meaningful address (e.g. ReadInfo).
type Address int32

// EmptyAddr is the sentinel address for commands without an address.
const EmptyAddr Address = -1

func (a Address) String() string {
	if a == EmptyAddr {
		return "<empty>"
	}
	return fmt.Sprintf("0x%04X", uint16(a))
}
