package testmode

import (
	"fmt"
	"strings"
)

// Mode selects what the IOC talks to during a test run.
type Mode uint8

const (
	// RecSim runs the IOC against its in-record simulation; no emulator process.
	RecSim Mode = iota
	// DevSim runs the IOC against an external device emulator.
	DevSim
	// NoSim runs against real hardware; emulator launchers must not invoke vendor tools.
	NoSim
)

func (m Mode) String() string {
	switch m {
	case RecSim:
		return "RECSIM"
	case DevSim:
		return "DEVSIM"
	case NoSim:
		return "NOSIM"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

func Parse(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RECSIM":
		return RecSim, nil
	case "DEVSIM":
		return DevSim, nil
	case "NOSIM":
		return NoSim, nil
	}
	return 0, fmt.Errorf("unknown test mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
