package emulator

import (
	"context"
	"fmt"
	"ioctest/applog"
	"ioctest/proc"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const portPlaceholder = "{port}"

// CommandLineLauncher runs an arbitrary emulator command. A string command line
// is a template run through the platform shell; a list is run directly. Any
// {port} in it is replaced by the allocated device port. There is no backdoor.
type CommandLineLauncher struct {
	base

	template        string
	argv            []string
	waitToFinish    bool
	cwdEmulatorPath bool

	mu        sync.Mutex
	processes []*proc.Process
}

func NewCommandLineLauncher(s Settings) (*CommandLineLauncher, error) {
	l := &CommandLineLauncher{
		base:            newBase(s),
		waitToFinish:    s.Options.Bool(OptWaitToFinish, false),
		cwdEmulatorPath: s.Options.Bool(OptCwdEmulatorPath, false),
	}
	l.self = l

	if argv, ok := s.Options.StringSlice(OptCommandLine); ok && len(argv) > 0 {
		l.argv = argv
	} else if template := s.Options.String(OptCommandLine, ""); template != "" {
		l.template = template
	} else {
		return nil, fmt.Errorf("%w: the '%s' option is required by the command line emulator launcher",
			ErrMissingOption, OptCommandLine)
	}
	return l, nil
}

// CommandLine is the command with the port substituted, as a display string.
func (l *CommandLineLauncher) CommandLine() string {
	if l.argv != nil {
		return strings.Join(l.substitute(l.argv), " ")
	}
	return strings.ReplaceAll(l.template, portPlaceholder, strconv.Itoa(l.settings.Port))
}

func (l *CommandLineLauncher) substitute(argv []string) []string {
	port := strconv.Itoa(l.settings.Port)
	result := make([]string, len(argv))
	for i, arg := range argv {
		result[i] = strings.ReplaceAll(arg, portPlaceholder, port)
	}
	return result
}

func (l *CommandLineLauncher) command() *exec.Cmd {
	if l.argv != nil {
		argv := l.substitute(l.argv)
		return exec.Command(argv[0], argv[1:]...)
	}
	return shellCommand(l.CommandLine())
}

func (l *CommandLineLauncher) Open(ctx context.Context) (err error) {
	ctx = l.logContext(ctx)
	if err = l.register(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = l.Close()
		}
	}()

	if err = l.openLog("cmdemulator"); err != nil {
		return err
	}
	return l.run(ctx, l.command(), l.waitToFinish)
}

// run starts cmd with output to the emulator log and, when wait is set,
// blocks until it exits.
func (l *CommandLineLauncher) run(ctx context.Context, cmd *exec.Cmd, wait bool) error {
	if l.cwdEmulatorPath {
		cmd.Dir = l.settings.EmulatorPath
	}
	if l.logFile != nil {
		cmd.Stdout = l.logFile
		cmd.Stderr = l.logFile
		_, _ = fmt.Fprintf(l.logFile, "Running '%s'\n", proc.CommandLine(cmd))
	}

	p, err := proc.Start(cmd)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.processes = append(l.processes, p)
	l.mu.Unlock()

	applog.FromContext(ctx).Info("Started command line emulator",
		zap.String("commandLine", p.CommandLine()),
		zap.Int("pid", p.Pid()),
		zap.Bool("wait", wait),
	)

	if !wait {
		return nil
	}
	if err := p.Wait(ctx); err != nil {
		return fmt.Errorf("emulator command '%s' failed: %s: %w", p.CommandLine(), p.ExitStatus(), err)
	}
	return nil
}

// Close terminates every started process together with all its descendants.
// Processes that already exited are skipped.
func (l *CommandLineLauncher) Close() error {
	l.logger().Info("Closing command line emulator")

	l.mu.Lock()
	processes := slices.Clone(l.processes)
	l.processes = nil
	l.mu.Unlock()

	var err error
	for _, p := range slices.Backward(processes) {
		err = multierr.Append(err, p.TerminateTree(proc.DefaultGrace))
	}
	err = multierr.Append(err, l.closeLog(false))
	l.deregister()
	return err
}

func (l *CommandLineLauncher) unsupported() error {
	return fmt.Errorf("%w: '%s' is an arbitrary command line emulator", ErrBackdoorUnsupported, l.id)
}

func (l *CommandLineLauncher) GetFromDevice(context.Context, string) (string, error) {
	return "", l.unsupported()
}

func (l *CommandLineLauncher) SetOnDevice(context.Context, string, any) error {
	return l.unsupported()
}

func (l *CommandLineLauncher) RunFunctionOnDevice(context.Context, string, ...any) ([]string, error) {
	return nil, l.unsupported()
}

func (l *CommandLineLauncher) Command(context.Context, ...string) ([]string, error) {
	return nil, l.unsupported()
}

func (l *CommandLineLauncher) ConnectDevice(context.Context) error {
	return l.unsupported()
}

func (l *CommandLineLauncher) DisconnectDevice(context.Context) error {
	return l.unsupported()
}
