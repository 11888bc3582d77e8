package emulator

import (
	"errors"
	"fmt"
	"strings"
)

// Launcher kinds accepted by New.
const (
	KindLewis       = "lewis"
	KindNone        = "none"
	KindCommandLine = "command_line"
	KindBeckhoff    = "beckhoff"
	KindDAQmx       = "daqmx"
)

var ErrUnknownKind = errors.New("unknown emulator launcher")

// Kinds lists the launcher kinds in the order they are documented.
func Kinds() []string {
	return []string{KindLewis, KindNone, KindCommandLine, KindBeckhoff, KindDAQmx}
}

// New builds the launcher of the given kind. An empty kind means Lewis.
func New(kind string, s Settings) (Launcher, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindLewis:
		return NewLewisLauncher(s), nil
	case KindNone, "null":
		return NewNullLauncher(s), nil
	case KindCommandLine, "commandline":
		return NewCommandLineLauncher(s)
	case KindBeckhoff:
		return NewBeckhoffLauncher(s)
	case KindDAQmx:
		return NewDAQmxLauncher(s)
	default:
		return nil, fmt.Errorf("%w '%s', expected one of %s", ErrUnknownKind, kind, strings.Join(Kinds(), ", "))
	}
}
