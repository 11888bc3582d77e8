package emulator

import (
	"context"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
)

const daqmxStopTimeout = 30 * time.Second

// DAQmxLauncher starts and stops the LabVIEW DAQmx simulation through its
// start_sim and stop_sim scripts. Stopping the simulation is also how a
// disconnected device is simulated.
type DAQmxLauncher struct {
	*CommandLineLauncher
	startCommand string
	stopCommand  string
}

func NewDAQmxLauncher(s Settings) (*DAQmxLauncher, error) {
	scriptsDir := s.Options.String(OptDAQmxScriptsDir,
		filepath.Join(s.EpicsTop, "support", "DeviceEmulator", "master", "other_emulators", "DAQmx"))
	start := filepath.Join(scriptsDir, "start_sim"+scriptSuffix)
	stop := filepath.Join(scriptsDir, "stop_sim"+scriptSuffix)

	s.Options = s.Options.
		With(OptCommandLine, []string{start}).
		With(OptWaitToFinish, true)
	inner, err := NewCommandLineLauncher(s)
	if err != nil {
		return nil, err
	}

	l := &DAQmxLauncher{CommandLineLauncher: inner, startCommand: start, stopCommand: stop}
	l.self = l
	return l, nil
}

// Close stops the simulation before tearing the launcher down.
func (l *DAQmxLauncher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), daqmxStopTimeout)
	defer cancel()

	err := l.Disconnect(ctx)
	return multierr.Append(err, l.CommandLineLauncher.Close())
}

func (l *DAQmxLauncher) Disconnect(ctx context.Context) error {
	return l.run(l.logContext(ctx), exec.Command(l.stopCommand), true)
}

func (l *DAQmxLauncher) Reconnect(ctx context.Context) error {
	return l.run(l.logContext(ctx), exec.Command(l.startCommand), true)
}
