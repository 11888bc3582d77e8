package emulator

import (
	"context"
	"fmt"
	"ioctest/applog"
	"ioctest/testmode"
	"ioctest/util"
	"os"
	"time"

	"go.uber.org/zap"
)

const DefaultTimeout = 5 * time.Second

// Settings carries everything needed to construct a launcher for one device.
type Settings struct {
	TestName string
	Device   string
	// EmulatorPath is where the device simulation code is found.
	EmulatorPath string
	// VarDir receives the log files.
	VarDir string
	// EpicsTop is the root of the EPICS tree, used to locate vendor scripts.
	EpicsTop string
	// Port is the device protocol port the IOC connects to.
	Port     int
	Mode     testmode.Mode
	Registry *Registry
	Options  Options
}

// EmulatorID is the registry key: the emulator_id option or the device name.
func (s Settings) EmulatorID() string {
	return s.Options.String(OptEmulatorID, s.Device)
}

func (s Settings) registry() *Registry {
	if s.Registry == nil {
		return DefaultRegistry()
	}
	return s.Registry
}

// base holds what every launcher variant shares: identity, registration and
// the log file.
type base struct {
	settings       Settings
	id             string
	registry       *Registry
	self           Resource
	unregistered   bool
	registered     bool
	defaultTimeout time.Duration

	logFile *os.File
	logPath string
}

func newBase(s Settings) base {
	return base{
		settings:       s,
		id:             s.EmulatorID(),
		registry:       s.registry(),
		defaultTimeout: s.Options.Duration(OptDefaultTimeout, DefaultTimeout),
	}
}

func (b *base) ID() string {
	return b.id
}

func (b *base) Device() string {
	return b.settings.Device
}

func (b *base) Port() int {
	return b.settings.Port
}

func (b *base) DefaultTimeout() time.Duration {
	return b.defaultTimeout
}

// LogPath is the emulator log file, empty until opened.
func (b *base) LogPath() string {
	return b.logPath
}

func (b *base) logContext(ctx context.Context) context.Context {
	return applog.WithDevice(ctx, b.settings.TestName, b.settings.Device, b.id)
}

func (b *base) logger() *applog.Logger {
	return applog.GetLogger().With(
		zap.String("test", b.settings.TestName),
		zap.String("device", b.settings.Device),
		zap.String("emulatorId", b.id),
	)
}

func (b *base) register() error {
	if b.unregistered {
		return nil
	}
	if err := b.registry.Add(b.id, b.self); err != nil {
		return err
	}
	b.registered = true
	return nil
}

func (b *base) deregister() {
	if !b.registered {
		return
	}
	b.registry.Remove(b.id)
	b.registered = false
}

func (b *base) openLog(tag string) error {
	path, err := util.LogFilename(b.settings.TestName, tag, b.id, b.settings.Mode, b.settings.VarDir)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create emulator log file: %w", err)
	}
	b.logFile = f
	b.logPath = path
	return nil
}

func (b *base) closeLog(archive bool) error {
	if b.logFile == nil {
		return nil
	}
	err := b.logFile.Close()
	b.logFile = nil
	if err != nil {
		return err
	}

	if archive {
		archivePath, err := util.ArchiveLog(b.logPath)
		if err != nil {
			return fmt.Errorf("could not archive emulator log: %w", err)
		}
		b.logPath = archivePath
	}
	b.logger().Info("Emulator log written", zap.String("logFile", b.logPath))
	return nil
}
