// Package emulator owns the lifecycle of device emulators used by IOC tests:
// starting and stopping the emulator process, registering it for the duration
// of a test, and driving simulated device state through its backdoor.
package emulator

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBackdoorUnsupported is returned by launchers that have no control
	// channel into the emulator. It is never silently ignored.
	ErrBackdoorUnsupported = errors.New("backdoor is not supported by this emulator launcher")

	ErrAlreadyRegistered = errors.New("emulator already registered")
	ErrUnknownAddress    = errors.New("no emulator at launcher address")
	ErrNotOpen           = errors.New("emulator launcher is not open")
	ErrMissingOption     = errors.New("missing emulator option")
)

// Resource is a scoped resource: opened on entry to a test scope, closed on
// exit even when the test failed.
type Resource interface {
	Open(ctx context.Context) error
	Close() error
}

// Backdoor is the set of out-of-band operations on a running emulator.
type Backdoor interface {
	GetFromDevice(ctx context.Context, variable string) (string, error)
	SetOnDevice(ctx context.Context, variable string, value any) error
	RunFunctionOnDevice(ctx context.Context, function string, args ...any) ([]string, error)
	Command(ctx context.Context, args ...string) ([]string, error)
	ConnectDevice(ctx context.Context) error
	DisconnectDevice(ctx context.Context) error
}

// Launcher is one emulator instance. A launcher is single use: it is opened
// once and closed once. Close must be safe after a failed or partial Open.
type Launcher interface {
	Resource
	Backdoor

	// ID is the registry key, defaulting to the device name.
	ID() string
	Device() string
	// DefaultTimeout applies to assertions that don't specify one.
	DefaultTimeout() time.Duration
}

// ConnectionState tracks whether the simulated device is believed to be
// connected so that connect and disconnect are only sent on a change.
type ConnectionState uint8

const (
	ConnectionUnknown ConnectionState = iota
	Connected
	Disconnected
)

func (s ConnectionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Transition moves the state to target, calling send only when the state
// differs. The state changes only when send succeeds.
func (s *ConnectionState) Transition(target ConnectionState, send func() error) error {
	if *s == target {
		return nil
	}
	if err := send(); err != nil {
		return err
	}
	*s = target
	return nil
}
