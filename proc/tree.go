package proc

import (
	"errors"
	"slices"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/multierr"
)

const treePollInterval = 50 * time.Millisecond

// TerminateTree terminates every descendant of the process, deepest first,
// and then the process itself. Descendants are enumerated before anything is
// signalled; processes that exit between enumeration and termination are
// skipped silently.
func (p *Process) TerminateTree(grace time.Duration) error {
	if p == nil {
		return nil
	}

	var err error
	if !p.Exited() {
		children := Descendants(int32(p.Pid()))
		slices.Reverse(children)
		for _, child := range children {
			err = multierr.Append(err, terminateForeign(child, grace))
		}
	}
	return multierr.Append(err, p.Terminate(grace))
}

// Descendants lists all children of pid recursively, parents before children.
func Descendants(pid int32) []*process.Process {
	root, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}

	var result []*process.Process
	var walk func(*process.Process)
	walk = func(parent *process.Process) {
		children, err := parent.Children()
		if err != nil {
			return
		}
		for _, child := range children {
			result = append(result, child)
			walk(child)
		}
	}
	walk(root)
	return result
}

func terminateForeign(p *process.Process, grace time.Duration) error {
	if !alive(p) {
		return nil
	}
	if err := p.Terminate(); err != nil {
		if vanished(err) || !alive(p) {
			return nil
		}
		return err
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !alive(p) {
			return nil
		}
		time.Sleep(treePollInterval)
	}

	if err := p.Kill(); err != nil && !vanished(err) && alive(p) {
		return err
	}
	return nil
}

// A zombie is as good as gone: only its parent can reap it.
func alive(p *process.Process) bool {
	running, err := p.IsRunning()
	if err != nil || !running {
		return false
	}
	status, err := p.Status()
	if err != nil {
		return false
	}
	return !slices.Contains(status, process.Zombie)
}

func vanished(err error) bool {
	return errors.Is(err, process.ErrorProcessNotRunning)
}
