package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsVariant(t *testing.T) {
	s := Settings{Device: "julabo", Registry: NewRegistry()}

	l, err := New("", s)
	require.NoError(t, err)
	assert.IsType(t, &LewisLauncher{}, l)

	l, err = New("LEWIS", s)
	require.NoError(t, err)
	assert.IsType(t, &LewisLauncher{}, l)

	l, err = New(KindNone, s)
	require.NoError(t, err)
	assert.IsType(t, &NullLauncher{}, l)

	s.Options = Options{OptCommandLine: "true"}
	l, err = New(KindCommandLine, s)
	require.NoError(t, err)
	assert.IsType(t, &CommandLineLauncher{}, l)

	l, err = New(KindDAQmx, s)
	require.NoError(t, err)
	assert.IsType(t, &DAQmxLauncher{}, l)
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New("labview", Settings{})
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Contains(t, err.Error(), "command_line")
}

func TestNewPropagatesConstructionErrors(t *testing.T) {
	_, err := New(KindCommandLine, Settings{Device: "x"})
	assert.ErrorIs(t, err, ErrMissingOption)

	_, err = New(KindBeckhoff, Settings{Device: "x"})
	assert.ErrorIs(t, err, ErrMissingOption)
}
