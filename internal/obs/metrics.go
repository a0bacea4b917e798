package obs

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks connection/transport statistics. Drivers call the Inc*
// and Add* methods; readers use the accessor methods (MessagesSent,
// BytesReceived, ...). Every update is also applied to the matching
// Prometheus counter created by NewMetrics. Shape mirrors the pack's
// aznet.Metrics atomic-counter interface.
type Metrics struct {
	messagesSent     int64
	messagesRetried  int64
	messagesDropped  int64
	bytesSent        int64
	bytesReceived    int64
	crcErrors        int64
	protocolErrors   int64
	timeoutErrors    int64
	responsesMatched int64

	promMessagesSent     prometheus.Counter
	promMessagesRetried  prometheus.Counter
	promMessagesDropped  prometheus.Counter
	promBytesSent        prometheus.Counter
	promBytesReceived    prometheus.Counter
	promCRCErrors        prometheus.Counter
	promProtocolErrors   prometheus.Counter
	promTimeoutErrors    prometheus.Counter
	promResponsesMatched prometheus.Counter
}

// NewMetrics creates a Metrics instance whose counters are also registered
// as Prometheus collectors under the given namespace. reg may be nil, in
// which case the counters are created but not registered with any
// registry (useful for tests).
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	mk := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hantas",
			Name:      name,
			Help:      help,
		})
		if reg != nil {
			reg.MustRegister(c)
		}
		return c
	}
	return &Metrics{
		promMessagesSent:     mk("messages_sent_total", "Messages transmitted to the device."),
		promMessagesRetried:  mk("messages_retried_total", "Messages retried after a response timeout."),
		promMessagesDropped:  mk("messages_dropped_total", "Messages dropped after exhausting their retry budget."),
		promBytesSent:        mk("bytes_sent_total", "Raw bytes written to the transport."),
		promBytesReceived:    mk("bytes_received_total", "Raw bytes read from the transport."),
		promCRCErrors:        mk("crc_errors_total", "Frames discarded for CRC validation failure."),
		promProtocolErrors:   mk("protocol_errors_total", "Exception responses received from the device."),
		promTimeoutErrors:    mk("timeout_errors_total", "Inter-byte frame timeouts."),
		promResponsesMatched: mk("responses_matched_total", "Responses correlated to an activated message."),
	}
}

func (m *Metrics) IncMessagesSent()          { atomic.AddInt64(&m.messagesSent, 1); m.promMessagesSent.Inc() }
func (m *Metrics) IncMessagesRetried()       { atomic.AddInt64(&m.messagesRetried, 1); m.promMessagesRetried.Inc() }
func (m *Metrics) IncMessagesDropped()       { atomic.AddInt64(&m.messagesDropped, 1); m.promMessagesDropped.Inc() }
func (m *Metrics) IncResponsesMatched()      { atomic.AddInt64(&m.responsesMatched, 1); m.promResponsesMatched.Inc() }
func (m *Metrics) IncCRCErrors()             { atomic.AddInt64(&m.crcErrors, 1); m.promCRCErrors.Inc() }
func (m *Metrics) IncProtocolErrors()        { atomic.AddInt64(&m.protocolErrors, 1); m.promProtocolErrors.Inc() }
func (m *Metrics) IncTimeoutErrors()         { atomic.AddInt64(&m.timeoutErrors, 1); m.promTimeoutErrors.Inc() }
func (m *Metrics) AddBytesSent(n int)        { atomic.AddInt64(&m.bytesSent, int64(n)); m.promBytesSent.Add(float64(n)) }
func (m *Metrics) AddBytesReceived(n int)    { atomic.AddInt64(&m.bytesReceived, int64(n)); m.promBytesReceived.Add(float64(n)) }

func (m *Metrics) MessagesSent() int64     { return atomic.LoadInt64(&m.messagesSent) }
func (m *Metrics) MessagesRetried() int64  { return atomic.LoadInt64(&m.messagesRetried) }
func (m *Metrics) MessagesDropped() int64  { return atomic.LoadInt64(&m.messagesDropped) }
func (m *Metrics) ResponsesMatched() int64 { return atomic.LoadInt64(&m.responsesMatched) }
func (m *Metrics) BytesSent() int64        { return atomic.LoadInt64(&m.bytesSent) }
func (m *Metrics) BytesReceived() int64    { return atomic.LoadInt64(&m.bytesReceived) }
func (m *Metrics) CRCErrors() int64        { return atomic.LoadInt64(&m.crcErrors) }
func (m *Metrics) ProtocolErrors() int64   { return atomic.LoadInt64(&m.protocolErrors) }
func (m *Metrics) TimeoutErrors() int64    { return atomic.LoadInt64(&m.timeoutErrors) }
