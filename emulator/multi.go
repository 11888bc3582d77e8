package emulator

import (
	"context"
	"fmt"
	"ioctest/applog"
	"ioctest/testmode"
	"maps"
	"slices"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MultiLewisLauncher runs several Lewis emulators for one test, each reached
// by its launcher address. Only the composite is registered, under the test
// name; its children are not.
type MultiLewisLauncher struct {
	testName   string
	registry   *Registry
	launchers  map[int]*LewisLauncher
	opened     []int
	registered bool
}

func NewMultiLewisLauncher(testName string, registry *Registry, emulators []Emulator) (*MultiLewisLauncher, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}
	m := &MultiLewisLauncher{
		testName:  testName,
		registry:  registry,
		launchers: make(map[int]*LewisLauncher, len(emulators)),
	}
	for _, e := range emulators {
		if _, exists := m.launchers[e.LauncherAddress]; exists {
			return nil, fmt.Errorf("duplicate launcher address %d in test '%s'", e.LauncherAddress, testName)
		}
		l := NewLewisLauncher(Settings{
			TestName: testName,
			Device:   e.Device,
			VarDir:   e.VarDir,
			Port:     e.Port,
			Mode:     testmode.DevSim,
			Registry: registry,
			Options:  e.Options,
		})
		l.unregistered = true
		m.launchers[e.LauncherAddress] = l
	}
	return m, nil
}

func (m *MultiLewisLauncher) TestName() string {
	return m.testName
}

// Addresses lists the launcher addresses in ascending order.
func (m *MultiLewisLauncher) Addresses() []int {
	return slices.Sorted(maps.Keys(m.launchers))
}

// Device returns the child launcher at address.
func (m *MultiLewisLauncher) Device(address int) (*LewisLauncher, error) {
	l, ok := m.launchers[address]
	if !ok {
		return nil, fmt.Errorf("%w %d in test '%s'", ErrUnknownAddress, address, m.testName)
	}
	return l, nil
}

// Open starts every child in address order. When one fails, the ones already
// started are closed again and the error is returned.
func (m *MultiLewisLauncher) Open(ctx context.Context) error {
	if err := m.registry.Add(m.testName, m); err != nil {
		return err
	}
	m.registered = true

	for _, address := range m.Addresses() {
		if err := m.launchers[address].Open(ctx); err != nil {
			_ = m.Close()
			return fmt.Errorf("could not open emulator at launcher address %d: %w", address, err)
		}
		m.opened = append(m.opened, address)
	}
	applog.FromContext(ctx).Info("Started multiple Lewis emulators",
		zap.String("test", m.testName),
		zap.Ints("addresses", m.opened),
	)
	return nil
}

// Close stops every opened child, last opened first.
func (m *MultiLewisLauncher) Close() error {
	var err error
	for _, address := range slices.Backward(m.opened) {
		err = multierr.Append(err, m.launchers[address].Close())
	}
	m.opened = nil
	if m.registered {
		m.registry.Remove(m.testName)
		m.registered = false
	}
	return err
}

// DefaultTimeout is the longest child default.
func (m *MultiLewisLauncher) DefaultTimeout() time.Duration {
	timeout := DefaultTimeout
	for _, l := range m.launchers {
		timeout = max(timeout, l.DefaultTimeout())
	}
	return timeout
}

func (m *MultiLewisLauncher) GetFromDevice(ctx context.Context, address int, variable string) (string, error) {
	l, err := m.Device(address)
	if err != nil {
		return "", err
	}
	return l.GetFromDevice(ctx, variable)
}

func (m *MultiLewisLauncher) SetOnDevice(ctx context.Context, address int, variable string, value any) error {
	l, err := m.Device(address)
	if err != nil {
		return err
	}
	return l.SetOnDevice(ctx, variable, value)
}

func (m *MultiLewisLauncher) RunFunctionOnDevice(ctx context.Context, address int, function string, args ...any) ([]string, error) {
	l, err := m.Device(address)
	if err != nil {
		return nil, err
	}
	return l.RunFunctionOnDevice(ctx, function, args...)
}

func (m *MultiLewisLauncher) Command(ctx context.Context, address int, args ...string) ([]string, error) {
	l, err := m.Device(address)
	if err != nil {
		return nil, err
	}
	return l.Command(ctx, args...)
}

func (m *MultiLewisLauncher) ConnectDevice(ctx context.Context, address int) error {
	l, err := m.Device(address)
	if err != nil {
		return err
	}
	return l.ConnectDevice(ctx)
}

func (m *MultiLewisLauncher) DisconnectDevice(ctx context.Context, address int) error {
	l, err := m.Device(address)
	if err != nil {
		return err
	}
	return l.DisconnectDevice(ctx)
}
