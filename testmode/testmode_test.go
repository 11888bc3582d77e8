package testmode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIsCaseInsensitive(t *testing.T) {
	for input, expected := range map[string]Mode{
		"recsim":  RecSim,
		"DEVSIM":  DevSim,
		" NoSim ": NoSim,
	} {
		m, err := Parse(input)
		assert.NoError(t, err, input)
		assert.Equal(t, expected, m, input)
	}

	_, err := Parse("fullsim")
	assert.Error(t, err)
}

func TestUnmarshalText(t *testing.T) {
	var m Mode
	assert.NoError(t, m.UnmarshalText([]byte("devsim")))
	assert.Equal(t, DevSim, m)
	assert.Equal(t, "DEVSIM", m.String())
	assert.Error(t, m.UnmarshalText([]byte("bogus")))
}
