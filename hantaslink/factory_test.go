package hantaslink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyungtackKim/hantas-torque-link/transport"
)

func TestBuiltinSchemesAreRegistered(t *testing.T) {
	schemes := Schemes()
	assert.Contains(t, schemes, "rtu")
	assert.Contains(t, schemes, "tcp")
	assert.Contains(t, schemes, "legacy")
}

func TestMBAPFlagMatchesDialect(t *testing.T) {
	rtu, ok := lookupFactory("rtu")
	require.True(t, ok)
	assert.False(t, rtu.MBAP())

	tcpFactory, ok := lookupFactory("tcp")
	require.True(t, ok)
	assert.True(t, tcpFactory.MBAP())
}

type stubFactory struct{ mbap bool }

func (s stubFactory) NewWorker(sinks transport.Sinks) transport.Worker { return nil }
func (s stubFactory) MBAP() bool                                       { return s.mbap }

func TestRegisterFactoryAddsCustomScheme(t *testing.T) {
	RegisterFactory("stub-test-scheme", stubFactory{mbap: true})
	f, ok := lookupFactory("stub-test-scheme")
	require.True(t, ok)
	assert.True(t, f.MBAP())
}

func TestDialRejectsUnknownScheme(t *testing.T) {
	_, err := Dial("nosuchscheme://device")
	require.Error(t, err)
	var target *ErrUnsupportedScheme
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "nosuchscheme", target.Scheme)
}

func TestConfigValidateRejectsNonPositiveConnOption(t *testing.T) {
	cfg := applyConfig([]Option{WithConnOption(0)})
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestConfigValidateRejectsNonPositiveHandshakeTimeout(t *testing.T) {
	cfg := applyConfig([]Option{WithHandshakeTimeout(0)})
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestConfigDefaults(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, byte(1), cfg.deviceID)
	assert.Equal(t, 9600, cfg.connOption)
	assert.True(t, cfg.keepAlive)
}
