package hantaslink

import (
	"fmt"
	"sort"
	"sync"

	"github.com/KyungtackKim/hantas-torque-link/orchestrator"
	"github.com/KyungtackKim/hantas-torque-link/transport"
	"github.com/KyungtackKim/hantas-torque-link/transport/legacyeth"
	"github.com/KyungtackKim/hantas-torque-link/transport/serial"
	"github.com/KyungtackKim/hantas-torque-link/transport/tcp"
)

// Factory builds the transport.Worker for one URL scheme and reports
// whether that dialect frames requests with an MBAP header (as opposed to
// RTU's trailing CRC).
type Factory interface {
	NewWorker(sinks transport.Sinks) transport.Worker
	MBAP() bool
}

type factoryFunc struct {
	newWorker func(transport.Sinks) transport.Worker
	mbap      bool
}

func (f factoryFunc) NewWorker(sinks transport.Sinks) transport.Worker { return f.newWorker(sinks) }
func (f factoryFunc) MBAP() bool                                       { return f.mbap }

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		"rtu":    factoryFunc{newWorker: func(s transport.Sinks) transport.Worker { return serial.New(s) }, mbap: false},
		"tcp":    factoryFunc{newWorker: func(s transport.Sinks) transport.Worker { return tcp.New(s) }, mbap: true},
		"legacy": factoryFunc{newWorker: func(s transport.Sinks) transport.Worker { return legacyeth.New(s) }, mbap: true},
	}
)

// RegisterFactory registers a transport Factory for scheme, overwriting
// any existing registration. Use this to plug in a custom dialect (e.g. a
// mock transport for tests) in addition to the built-in "rtu", "tcp", and
// "legacy" schemes.
func RegisterFactory(scheme string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[scheme] = f
}

// Schemes returns the currently registered scheme names, sorted.
func Schemes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for scheme := range factories {
		out = append(out, scheme)
	}
	sort.Strings(out)
	return out
}

func lookupFactory(scheme string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[scheme]
	return f, ok
}

// ErrUnsupportedScheme is returned by Dial when no Factory is registered
// for the requested scheme.
type ErrUnsupportedScheme struct{ Scheme string }

func (e *ErrUnsupportedScheme) Error() string {
	return fmt.Sprintf("hantaslink: unsupported scheme %q", e.Scheme)
}

func newOrchestrator(f Factory, cfg *Config) (*orchestrator.Orchestrator, transport.Worker) {
	var opts []orchestrator.Option
	opts = append(opts, orchestrator.WithGenerationThresholds(cfg.thresholds))
	opts = append(opts, orchestrator.WithKeepAlive(cfg.keepAlive))
	opts = append(opts, orchestrator.WithHandshakeTimeout(cfg.handshake))
	if cfg.metricsReg != nil || cfg.metricsNS != "" {
		opts = append(opts, orchestrator.WithMetrics(cfg.metricsNS, cfg.metricsReg))
	}
	o := orchestrator.New(f.MBAP(), cfg.callbacks, opts...)
	w := f.NewWorker(o.Sinks())
	o.SetWorker(w)
	return o, w
}
