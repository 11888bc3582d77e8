// Package ioc launches the IOC under test: the process the emulator serves
// and the assertions observe.
package ioc

import (
	"context"
	"errors"
	"fmt"
	"ioctest/applog"
	"ioctest/poll"
	"ioctest/proc"
	"ioctest/testmode"
	"ioctest/util"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	DefaultStartupTimeout = 30 * time.Second
	EmulatorPortMacro     = "EMULATOR_PORT"

	// DefaultReadyText is printed by iocInit once the IOC is serving PVs.
	DefaultReadyText = "iocRun: All initialization complete"
)

const (
	logTag            = "ioc"
	readyPollInterval = 200 * time.Millisecond
)

var (
	ErrNoCommand = errors.New("IOC has no start command")
	errExited    = errors.New("IOC process exited")
)

type Config struct {
	TestName string
	// Name is the IOC name, e.g. JULABO_01.
	Name      string
	Directory string
	Command   []string
	Macros    map[string]string
	Mode      testmode.Mode
	VarDir    string
	// EmulatorPort, when set, is exported as EMULATOR_PORT.
	EmulatorPort int
	// ReadyText is waited for in the IOC output. Empty disables the wait.
	ReadyText      string
	StartupTimeout time.Duration
}

type Launcher struct {
	cfg Config

	process *proc.Process
	logFile *os.File
	logPath string
}

func New(cfg Config) *Launcher {
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}
	return &Launcher{cfg: cfg}
}

func (l *Launcher) Name() string {
	return l.cfg.Name
}

func (l *Launcher) LogPath() string {
	return l.logPath
}

// Running reports whether the IOC process is alive.
func (l *Launcher) Running() bool {
	return l.process != nil && !l.process.Exited()
}

// Environment is the process environment with every macro exported, plus the
// emulator port and the simulation mode flags.
func (l *Launcher) Environment() []string {
	macros := maps.Clone(l.cfg.Macros)
	if macros == nil {
		macros = map[string]string{}
	}
	if l.cfg.EmulatorPort > 0 {
		macros[EmulatorPortMacro] = strconv.Itoa(l.cfg.EmulatorPort)
	}
	macros["RECSIM"] = flag(l.cfg.Mode == testmode.RecSim)
	macros["DEVSIM"] = flag(l.cfg.Mode == testmode.DevSim)

	env := os.Environ()
	for _, key := range slices.Sorted(maps.Keys(macros)) {
		env = append(env, key+"="+macros[key])
	}
	return env
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (l *Launcher) Open(ctx context.Context) (err error) {
	if len(l.cfg.Command) == 0 {
		return fmt.Errorf("%w: '%s'", ErrNoCommand, l.cfg.Name)
	}
	defer func() {
		if err != nil {
			_ = l.Close()
		}
	}()

	l.logPath, err = util.LogFilename(l.cfg.TestName, logTag, l.cfg.Name, l.cfg.Mode, l.cfg.VarDir)
	if err != nil {
		return err
	}
	if l.logFile, err = os.Create(l.logPath); err != nil {
		return fmt.Errorf("could not create IOC log file: %w", err)
	}

	cmd := exec.Command(l.cfg.Command[0], l.cfg.Command[1:]...)
	cmd.Dir = l.cfg.Directory
	cmd.Env = l.Environment()
	cmd.Stdout = l.logFile
	cmd.Stderr = l.logFile
	if l.process, err = proc.Start(cmd); err != nil {
		return err
	}

	logger := applog.FromContext(ctx).With(zap.String("ioc", l.cfg.Name))
	logger.Info("Started IOC",
		zap.String("commandLine", l.process.CommandLine()),
		zap.Int("pid", l.process.Pid()),
		zap.String("mode", l.cfg.Mode.String()),
		zap.String("logFile", l.logPath),
	)

	if l.cfg.ReadyText == "" {
		return nil
	}
	if err = l.waitReady(ctx); err != nil {
		return err
	}
	logger.Info("IOC ready")
	return nil
}

func (l *Launcher) waitReady(ctx context.Context) error {
	output := poll.Observable[string]{
		Name: l.cfg.Name + " output",
		Read: func(context.Context) (string, error) {
			exited := l.process.Exited()
			data, err := os.ReadFile(l.logPath)
			if err != nil {
				return "", err
			}
			if exited && !strings.Contains(string(data), l.cfg.ReadyText) {
				return "", fmt.Errorf("%w: %s", errExited, l.process.ExitStatus())
			}
			return string(data), nil
		},
	}
	ready := poll.Predicate[string]{
		Expect: fmt.Sprintf("to contain '%s'", l.cfg.ReadyText),
		Test:   func(out string) (bool, error) { return strings.Contains(out, l.cfg.ReadyText), nil },
	}

	err := poll.Until(ctx, output, ready,
		poll.WithTimeout(l.cfg.StartupTimeout),
		poll.WithInterval(readyPollInterval),
	)
	if err != nil {
		return fmt.Errorf("IOC '%s' did not start, command '%s' (see %s): %w",
			l.cfg.Name, l.process.CommandLine(), l.logPath, err)
	}
	return nil
}

// Close terminates the IOC and everything it spawned, then closes its log.
func (l *Launcher) Close() error {
	var err error
	if l.process != nil {
		applog.Info("Terminating IOC", zap.String("ioc", l.cfg.Name))
		err = multierr.Append(err, l.process.TerminateTree(proc.DefaultGrace))
	}
	if l.logFile != nil {
		err = multierr.Append(err, l.logFile.Close())
		l.logFile = nil
	}
	return err
}
