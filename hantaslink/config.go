// Package hantaslink is the public façade: it picks a transport dialect by
// URL scheme, wires it to a Request Orchestrator, and exposes the
// resulting Client to applications.
package hantaslink

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/KyungtackKim/hantas-torque-link/orchestrator"
	"github.com/KyungtackKim/hantas-torque-link/wire"
)

// ErrInvalidConfig is returned by Config.Validate when an option produced
// an unusable configuration.
var ErrInvalidConfig = errors.New("hantaslink: invalid configuration")

// Config accumulates the options passed to Dial. Its fields are
// unexported; set them via Option functions.
type Config struct {
	deviceID   byte
	connOption int
	keepAlive  bool
	thresholds wire.GenerationThresholds
	metricsNS  string
	metricsReg prometheus.Registerer
	callbacks  orchestrator.Callbacks
	handshake  time.Duration
}

func defaultConfig() *Config {
	return &Config{
		deviceID:   1,
		connOption: 9600,
		keepAlive:  true,
		thresholds: wire.DefaultGenerationThresholds(),
		metricsNS:  "hantaslink",
		handshake:  orchestrator.DefaultHandshakeTimeout,
	}
}

// Validate rejects configurations the orchestrator/transport layer cannot
// act on. Mirrors aznet.Config.Validate's role of catching option misuse
// before a driver is ever constructed.
func (c *Config) Validate() error {
	if c.connOption <= 0 {
		return fmt.Errorf("%w: connection option (baud or port) must be positive", ErrInvalidConfig)
	}
	if c.handshake <= 0 {
		return fmt.Errorf("%w: handshake timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Option configures a Dial call.
type Option func(*Config)

// WithDeviceID sets the MODBUS unit/slave id used for every request.
// Default 1.
func WithDeviceID(id byte) Option {
	return func(c *Config) { c.deviceID = id }
}

// WithConnOption sets the dialect-specific connect parameter: a baud rate
// for "rtu", a TCP port for "tcp"/"legacy". Default 9600.
func WithConnOption(option int) Option {
	return func(c *Config) { c.connOption = option }
}

// WithKeepAlive enables or disables the 3s/10s keep-alive probe. Enabled
// by default.
func WithKeepAlive(enabled bool) Option {
	return func(c *Config) { c.keepAlive = enabled }
}

// WithGenerationThresholds overrides the default device-generation
// derivation thresholds.
func WithGenerationThresholds(th wire.GenerationThresholds) Option {
	return func(c *Config) { c.thresholds = th }
}

// WithMetrics registers orchestrator/transport counters under namespace
// with reg. reg may be nil to create counters without registering them.
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(c *Config) {
		c.metricsNS = namespace
		c.metricsReg = reg
	}
}

// WithCallbacks sets the application-facing ChangedConnect/Response/Error
// sinks. Overwrites any callbacks set by a previous WithCallbacks call.
func WithCallbacks(cb orchestrator.Callbacks) Option {
	return func(c *Config) { c.callbacks = cb }
}

// WithHandshakeTimeout overrides the default 5s window the Connecting
// state allows for a ReadInfo response before giving up and closing.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) { c.handshake = d }
}

func applyConfig(opts []Option) *Config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}
