package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"ioctest/applog"
	"ioctest/backdoor"
	"ioctest/proc"
	"ioctest/util"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	bindAddress = "127.0.0.1"

	defaultLewisProtocol  = "stream"
	defaultLewisPackage   = "lewis_emulators"
	defaultSpeed          = 100.0
	defaultStartupTimeout = 30 * time.Second
)

var errProcessExited = errors.New("emulator process exited")

type transportFactory func(executable, address string, log io.Writer) backdoor.Transport

func newProcessTransport(executable, address string, log io.Writer) backdoor.Transport {
	return backdoor.NewProcessTransport(executable, address, log)
}

// LewisLauncher runs an emulator under the Lewis framework. Every backdoor
// operation is a short-lived lewis-control process talking to the control
// port that is allocated fresh on each Open.
type LewisLauncher struct {
	base

	pythonPath     string
	lewisPath      string
	protocol       string
	additionalPath string
	pkg            string
	speed          float64
	startupTimeout time.Duration
	compressLogs   bool

	newTransport transportFactory
	controlPort  int
	process      *proc.Process
	client       *backdoor.Client

	mu         sync.Mutex
	connection ConnectionState
}

func NewLewisLauncher(s Settings) *LewisLauncher {
	o := s.Options
	l := &LewisLauncher{
		base:           newBase(s),
		pythonPath:     o.String(OptPythonPath, defaultPythonPath()),
		lewisPath:      o.String(OptLewisPath, defaultLewisPath()),
		protocol:       o.String(OptLewisProtocol, defaultLewisProtocol),
		additionalPath: o.String(OptLewisAdditionalPath, s.EmulatorPath),
		pkg:            o.String(OptLewisPackage, defaultLewisPackage),
		speed:          o.Float(OptSpeed, defaultSpeed),
		startupTimeout: o.Duration(OptStartupTimeout, defaultStartupTimeout),
		compressLogs:   o.Bool(OptCompressLogs, false),
		newTransport:   newProcessTransport,
	}
	l.self = l
	return l
}

func defaultPythonPath() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(`C:\`, "Instrument", "Apps", "Python3", "python.exe")
	}
	return "python3"
}

func defaultLewisPath() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(`C:\`, "Instrument", "Apps", "Python3", "Scripts")
	}
	return ""
}

// CommandLine is the Lewis invocation for the current control port.
func (l *LewisLauncher) CommandLine() []string {
	args := []string{
		l.pythonPath,
		"-u",
		"-m",
		"lewis",
		"-r", l.controlAddress(),
		"-p", fmt.Sprintf("%s: {bind_address: %s, port: %d}", l.protocol, bindAddress, l.settings.Port),
	}
	if l.additionalPath != "" {
		args = append(args, "-a", l.additionalPath)
	}
	if l.pkg != "" {
		args = append(args, "-k", l.pkg)
	}
	return append(args, "-e", strconv.FormatFloat(l.speed, 'f', -1, 64), l.settings.Device)
}

func (l *LewisLauncher) controlAddress() string {
	return fmt.Sprintf("%s:%d", bindAddress, l.controlPort)
}

func (l *LewisLauncher) controlExecutable() string {
	return ControlExecutable(l.lewisPath)
}

// ControlExecutable is the lewis-control program under lewisPath, or on the
// PATH when lewisPath is empty.
func ControlExecutable(lewisPath string) string {
	name := "lewis-control"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if lewisPath == "" {
		return name
	}
	return filepath.Join(lewisPath, name)
}

func (l *LewisLauncher) ControlPort() int {
	return l.controlPort
}

// Open starts Lewis and returns once its device port accepts connections. On
// failure everything already started is torn down again.
func (l *LewisLauncher) Open(ctx context.Context) (err error) {
	ctx = l.logContext(ctx)
	if err = l.register(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = l.Close()
		}
	}()

	if err = l.openLog("lewis"); err != nil {
		return err
	}
	if l.controlPort, err = util.GetFreeTcpPort(); err != nil {
		return err
	}

	args := l.CommandLine()
	commandLine := strings.Join(args, " ")
	if _, err = fmt.Fprintf(l.logFile, "Started Lewis with '%s'\n", commandLine); err != nil {
		return fmt.Errorf("could not write emulator log: %w", err)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = l.logFile
	cmd.Stderr = l.logFile
	if l.process, err = proc.Start(cmd); err != nil {
		return err
	}

	applog.FromContext(ctx).Info("Started Lewis emulator",
		zap.String("commandLine", commandLine),
		zap.Int("pid", l.process.Pid()),
		zap.Int("port", l.settings.Port),
		zap.Int("controlPort", l.controlPort),
		zap.String("logFile", l.logPath),
	)

	l.client = backdoor.NewClient(l.newTransport(l.controlExecutable(), l.controlAddress(), l.logFile))

	if l.startupTimeout > 0 {
		if err = l.waitReady(ctx, commandLine); err != nil {
			return err
		}
	}

	l.mu.Lock()
	l.connection = Connected
	l.mu.Unlock()
	return nil
}

func (l *LewisLauncher) waitReady(ctx context.Context, commandLine string) error {
	readyCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	go func(p *proc.Process) {
		select {
		case <-p.Done():
			cancel(errProcessExited)
		case <-readyCtx.Done():
		}
	}(l.process)

	addr := fmt.Sprintf("%s:%d", bindAddress, l.settings.Port)
	err := util.WaitForTcpPort(readyCtx, addr, l.startupTimeout)
	if err == nil {
		return nil
	}
	if errors.Is(context.Cause(readyCtx), errProcessExited) {
		<-l.process.Done()
		return fmt.Errorf("lewis exited before %s was ready, command '%s': %s (see %s)",
			addr, commandLine, l.process.ExitStatus(), l.logPath)
	}
	return fmt.Errorf("lewis did not start, command '%s': %w", commandLine, err)
}

// Check reports whether the Lewis process is still running.
func (l *LewisLauncher) Check() bool {
	if l.process == nil {
		return false
	}
	if !l.process.Exited() {
		return true
	}
	l.logger().Error("Lewis has terminated",
		zap.String("status", l.process.ExitStatus()),
		zap.String("logFile", l.logPath),
	)
	return false
}

func (l *LewisLauncher) Close() error {
	l.logger().Info("Terminating Lewis emulator")

	var err error
	if l.process != nil {
		err = multierr.Append(err, l.process.Terminate(proc.DefaultGrace))
	}
	err = multierr.Append(err, l.closeLog(l.compressLogs))
	l.client = nil
	l.deregister()
	return err
}

func (l *LewisLauncher) backdoor() (*backdoor.Client, error) {
	if l.client == nil {
		return nil, fmt.Errorf("%w: '%s'", ErrNotOpen, l.id)
	}
	return l.client, nil
}

func (l *LewisLauncher) GetFromDevice(ctx context.Context, variable string) (string, error) {
	client, err := l.backdoor()
	if err != nil {
		return "", err
	}
	return client.Get(ctx, variable)
}

func (l *LewisLauncher) SetOnDevice(ctx context.Context, variable string, value any) error {
	client, err := l.backdoor()
	if err != nil {
		return err
	}
	return client.Set(ctx, variable, value)
}

func (l *LewisLauncher) RunFunctionOnDevice(ctx context.Context, function string, args ...any) ([]string, error) {
	client, err := l.backdoor()
	if err != nil {
		return nil, err
	}
	return client.Call(ctx, function, args...)
}

func (l *LewisLauncher) Command(ctx context.Context, args ...string) ([]string, error) {
	client, err := l.backdoor()
	if err != nil {
		return nil, err
	}
	return client.Raw(ctx, args...)
}

func (l *LewisLauncher) ConnectDevice(ctx context.Context) error {
	client, err := l.backdoor()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connection.Transition(Connected, func() error { return client.ConnectDevice(ctx) })
}

func (l *LewisLauncher) DisconnectDevice(ctx context.Context) error {
	client, err := l.backdoor()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connection.Transition(Disconnected, func() error { return client.DisconnectDevice(ctx) })
}

// Connection is the believed connection state of the simulated device.
func (l *LewisLauncher) Connection() ConnectionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connection
}
