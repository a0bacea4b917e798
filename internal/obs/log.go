// Package obs provides the ambient observability stack shared by the
// transport and orchestrator packages: component-tagged structured
// logging backed by github.com/sirupsen/logrus, and connection/transport
// metrics backed by atomic counters additionally exported through
// github.com/prometheus/client_golang.
//
// The logging API mirrors the teacher USB stack's own pkg.Component /
// pkg.LogInfo shape, but swaps the standard library's log/slog for the
// logrus dependency present in the retrieved example corpus.
package obs

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Component identifies a subsystem for log filtering.
type Component string

// Known components.
const (
	ComponentTransport    Component = "transport"
	ComponentOrchestrator Component = "orchestrator"
	ComponentWire         Component = "wire"
	ComponentQueue        Component = "queue"
	ComponentClient       Component = "client"
)

var (
	mu     sync.RWMutex
	logger = logrus.New()
)

// SetLogger replaces the default logger with a caller-supplied *logrus.Logger.
func SetLogger(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// SetLevel sets the minimum log level for all ambient logging.
func SetLevel(level logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(level)
}

func current() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func entry(component Component, fields logrus.Fields) *logrus.Entry {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["component"] = string(component)
	return current().WithFields(fields)
}

// Debugf logs a debug-level message tagged with component.
func Debugf(component Component, fields logrus.Fields, format string, args ...any) {
	entry(component, fields).Debugf(format, args...)
}

// Infof logs an info-level message tagged with component.
func Infof(component Component, fields logrus.Fields, format string, args ...any) {
	entry(component, fields).Infof(format, args...)
}

// Warnf logs a warning-level message tagged with component.
func Warnf(component Component, fields logrus.Fields, format string, args ...any) {
	entry(component, fields).Warnf(format, args...)
}

// Errorf logs an error-level message tagged with component.
func Errorf(component Component, fields logrus.Fields, format string, args ...any) {
	entry(component, fields).Errorf(format, args...)
}

// SafeCall invokes fn and recovers any panic, logging it under component
// instead of letting it propagate. This is the mechanism behind "a
// panicking user callback must not corrupt internal state": every
// application callback invocation from transport/orchestrator goes
// through SafeCall.
func SafeCall(component Component, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			Errorf(component, logrus.Fields{"callback": name, "panic": r}, "recovered panic in user callback")
		}
	}()
	fn()
}
