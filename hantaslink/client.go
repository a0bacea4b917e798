package hantaslink

import (
	"net/url"
	"strconv"

	"github.com/KyungtackKim/hantas-torque-link/orchestrator"
	"github.com/KyungtackKim/hantas-torque-link/transport"
	"github.com/KyungtackKim/hantas-torque-link/wire"
)

// Client is the top-level handle applications hold: a Request Orchestrator
// bound to one transport dialect. The zero value is not usable; construct
// with Dial.
type Client struct {
	orch   *orchestrator.Orchestrator
	worker transport.Worker
	target string
	cfg    *Config
}

// Dial parses address as "<scheme>://<host>[:port]", or as
// "<scheme>:///<device path>" for a serial device node (the scheme selects
// the transport dialect: "rtu", "tcp", or "legacy"), constructs the
// matching Worker wired to a fresh Orchestrator, and opens the connection.
// A port in address takes precedence over WithConnOption.
// The handshake runs asynchronously; use WithCallbacks to observe
// ChangedConnect(true) or poll Client.Connected.
func Dial(address string, opts ...Option) (*Client, error) {
	cfg := applyConfig(opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}
	f, ok := lookupFactory(u.Scheme)
	if !ok {
		return nil, &ErrUnsupportedScheme{Scheme: u.Scheme}
	}
	o, w := newOrchestrator(f, cfg)
	option := cfg.connOption
	target := u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		option = port
	}
	if target == "" {
		target = u.Opaque
	}
	if target == "" {
		target = u.Path
	}
	if !o.Connect(target, option, cfg.deviceID) {
		return nil, &ErrDialFailed{Target: target}
	}
	return &Client{orch: o, worker: w, target: target, cfg: cfg}, nil
}

// ErrDialFailed is returned by Dial when the transport could not be
// opened against the parsed target.
type ErrDialFailed struct{ Target string }

func (e *ErrDialFailed) Error() string {
	return "hantaslink: failed to connect to " + e.Target
}

// Close stops the handshake/keep-alive loop and releases the transport.
func (c *Client) Close() { c.orch.Close() }

// Connected reports whether the handshake has completed.
func (c *Client) Connected() bool { return c.orch.Connected() }

// Identity returns the negotiated Device Identity, zero before Connect
// completes or after Close.
func (c *Client) Identity() orchestrator.Identity { return c.orch.Identity() }

// ReadHolding reads count holding registers starting at addr.
func (c *Client) ReadHolding(addr wire.Address, count int, check bool) bool {
	return c.orch.ReadHolding(addr, count, check)
}

// ReadInput reads count input registers starting at addr.
func (c *Client) ReadInput(addr wire.Address, count int, check bool) bool {
	return c.orch.ReadInput(addr, count, check)
}

// WriteSingle writes a single holding register.
func (c *Client) WriteSingle(addr wire.Address, value uint16, check bool) bool {
	return c.orch.WriteSingle(addr, value, check)
}

// WriteMulti writes values starting at addr.
func (c *Client) WriteMulti(addr wire.Address, values []uint16, check bool) bool {
	return c.orch.WriteMulti(addr, values, check)
}

// WriteString writes an ASCII string right-padded to length bytes.
func (c *Client) WriteString(addr wire.Address, s string, length int, check bool) bool {
	return c.orch.WriteString(addr, s, length, check)
}

// ReadInfo requests the device info/firmware frame.
func (c *Client) ReadInfo(check bool) bool { return c.orch.ReadInfo(check) }
