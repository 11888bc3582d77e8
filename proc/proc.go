// Package proc wraps an external OS process started for a test run: it is
// detached into its own process group, its exit is tracked in the background and
// it can be terminated on its own or together with all of its descendants.
package proc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultGrace is how long a terminated process gets to exit before it is killed.
const DefaultGrace = 3 * time.Second

// StartError reports a process that could not be spawned at all.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("could not start '%s': %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

type Process struct {
	cmd     *exec.Cmd
	group   bool
	done    chan struct{}
	waitErr error
}

// Start spawns cmd in a new process group and begins tracking its exit. A cmd
// with its own SysProcAttr is started as is and signalled on its own.
func Start(cmd *exec.Cmd) (*Process, error) {
	group := cmd.SysProcAttr == nil
	if group {
		setProcessGroup(cmd)
	}
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = time.Second
	}

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Command: CommandLine(cmd), Err: err}
	}

	p := &Process{
		cmd:   cmd,
		group: group,
		done:  make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *Process) Pid() int {
	if p == nil || p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

func (p *Process) CommandLine() string {
	return CommandLine(p.cmd)
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Err returns the wait error of an exited process; nil while it is running or
// when it exited with status 0.
func (p *Process) Err() error {
	if !p.Exited() {
		return nil
	}
	return p.waitErr
}

// ExitStatus describes how the process ended, e.g. "exit status 2".
func (p *Process) ExitStatus() string {
	if !p.Exited() {
		return "running"
	}
	if p.waitErr == nil {
		return "exit status 0"
	}
	return p.waitErr.Error()
}

// Wait blocks until the process exits or ctx is done.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate asks the process to stop, then kills it if it is still alive after
// grace. A process that already exited is not an error.
func (p *Process) Terminate(grace time.Duration) error {
	if p == nil || p.Exited() {
		return nil
	}

	if err := terminate(p.cmd.Process, p.group); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return p.Kill()
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}
	return p.Kill()
}

// Kill force-kills the process, and its process group when Start created one,
// then waits for it to be reaped.
func (p *Process) Kill() error {
	if p == nil || p.Exited() {
		return nil
	}

	if err := kill(p.cmd.Process, p.group); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("could not kill process %d: %w", p.Pid(), err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(DefaultGrace):
		return fmt.Errorf("process %d did not exit after kill", p.Pid())
	}
}

// CommandLine renders cmd as a single space separated string for logs and errors.
func CommandLine(cmd *exec.Cmd) string {
	if len(cmd.Args) == 0 {
		return cmd.Path
	}
	return strings.Join(cmd.Args, " ")
}
