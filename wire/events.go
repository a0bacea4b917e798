package wire

import "fmt"

// ErrorKind enumerates the error conditions a transport surfaces to the
// application via its ReceivedError sink (spec.md §7).
type ErrorKind int

const (
	// ErrKindInvalidCRC: a frame failed CRC validation and was discarded.
	ErrKindInvalidCRC ErrorKind = iota
	// ErrKindTimeout: a partial frame aged past the inter-byte timeout;
	// the analyze buffer was cleared.
	ErrKindTimeout
	// ErrKindProtocolException: the device returned an exception response.
	ErrKindProtocolException
	// ErrKindConnectFailed: the transport could not open.
	ErrKindConnectFailed
	// ErrKindWriteFailed: a transport write failed.
	ErrKindWriteFailed
	// ErrKindMessageTimeout: a message exhausted its retry budget.
	ErrKindMessageTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindInvalidCRC:
		return "InvalidCRC"
	case ErrKindTimeout:
		return "Timeout"
	case ErrKindProtocolException:
		return "ProtocolException"
	case ErrKindConnectFailed:
		return "ConnectFailed"
	case ErrKindWriteFailed:
		return "WriteFailed"
	case ErrKindMessageTimeout:
		return "MessageTimeout"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ErrorEvent is delivered through a transport's ReceivedError sink.
type ErrorEvent struct {
	Kind  ErrorKind
	Param int // cleared-length for Timeout, exception code for ProtocolException, etc.
}

// DataEvent is delivered through a transport's ReceivedData sink: a
// complete, classified frame.
type DataEvent struct {
	Code  FunctionCode
	Frame []byte
}
