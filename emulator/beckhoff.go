package emulator

import (
	"fmt"
	"ioctest/testmode"
	"os"
	"os/exec"
	"path/filepath"
)

// BeckhoffLauncher runs the PLC simulator's run script from beckhoff_root and
// waits for it to finish. In NOSIM mode a no-op executable is run instead so
// vendor tooling is never invoked.
type BeckhoffLauncher struct {
	*CommandLineLauncher
	root string
}

func NewBeckhoffLauncher(s Settings) (*BeckhoffLauncher, error) {
	root := s.Options.String(OptBeckhoffRoot, "")
	if root == "" {
		return nil, fmt.Errorf("%w: the '%s' option is required by the beckhoff emulator launcher",
			ErrMissingOption, OptBeckhoffRoot)
	}

	script := filepath.Join(root, "run"+scriptSuffix)
	if s.Mode == testmode.NoSim {
		script = noopExecutable()
		if resolved, err := exec.LookPath(script); err == nil {
			script = resolved
		}
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("unable to find beckhoff run script %s: %w", script, err)
	}

	s.Options = s.Options.
		With(OptCommandLine, []string{script}).
		With(OptWaitToFinish, true)
	inner, err := NewCommandLineLauncher(s)
	if err != nil {
		return nil, err
	}

	l := &BeckhoffLauncher{CommandLineLauncher: inner, root: root}
	l.self = l
	return l, nil
}

func (l *BeckhoffLauncher) Root() string {
	return l.root
}
