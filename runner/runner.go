// Package runner turns a test suite into the IOC and emulator launchers of one
// test mode and runs a body against them.
package runner

import (
	"context"
	"fmt"
	"ioctest/applog"
	"ioctest/config"
	"ioctest/device"
	"ioctest/emulator"
	"ioctest/ioc"
	"ioctest/testmode"
	"ioctest/util"
	"maps"
	"os"
	"slices"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// CAAddrListEnv names the variable channel access reads its search list from.
	CAAddrListEnv = "EPICS_CA_ADDR_LIST"
	// CAAddrList confines channel access to the local machine while a suite runs.
	CAAddrList = "127.255.255.255"
)

// Device is one IOC of a suite with the emulator serving it in a given mode.
type Device struct {
	Name string
	Port int
	IOC  *ioc.Launcher
	// Emulator is nil for IOCs that have none or when testing real hardware.
	Emulator device.Resource
}

// Launcher returns the single emulator launcher, if that is what the device has.
func (d *Device) Launcher() (emulator.Launcher, bool) {
	l, ok := d.Emulator.(emulator.Launcher)
	return l, ok
}

// Multi returns the multiplexing launcher, if that is what the device has.
func (d *Device) Multi() (*emulator.MultiLewisLauncher, bool) {
	m, ok := d.Emulator.(*emulator.MultiLewisLauncher)
	return m, ok
}

// Plan is everything a suite needs in one mode, ready to be opened as one
// resource.
type Plan struct {
	Suite   string
	Mode    testmode.Mode
	Devices []*Device

	collection *device.Collection
}

func (p *Plan) Open(ctx context.Context) error {
	return p.collection.Open(ctx)
}

func (p *Plan) Close() error {
	return p.collection.Close()
}

func (p *Plan) Device(name string) (*Device, bool) {
	for _, d := range p.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

type Runner struct {
	Settings config.Settings
	Registry *emulator.Registry

	freePorts func(n int) ([]int, error)
}

func New(settings config.Settings, registry *emulator.Registry) *Runner {
	if registry == nil {
		registry = emulator.DefaultRegistry()
	}
	return &Runner{Settings: settings, Registry: registry, freePorts: util.GetFreeTcpPorts}
}

// Build creates the launchers of suite for mode. Each IOC gets a fresh free
// port exported to it as EMULATOR_PORT.
func (r *Runner) Build(suite *config.Suite, mode testmode.Mode) (*Plan, error) {
	plan := &Plan{Suite: suite.Name, Mode: mode, collection: device.NewCollection()}
	for _, decl := range suite.IOCs {
		d, err := r.buildDevice(suite.Name, decl, mode)
		if err != nil {
			return nil, fmt.Errorf("IOC '%s': %w", decl.Name, err)
		}
		plan.Devices = append(plan.Devices, d)
		plan.collection.Add(device.Pair(d.Name, d.IOC, d.Emulator))
	}
	return plan, nil
}

func (r *Runner) buildDevice(testName string, decl config.IOC, mode testmode.Mode) (*Device, error) {
	ports, err := r.freePorts(max(1, len(decl.Emulators)))
	if err != nil {
		return nil, fmt.Errorf("could not allocate emulator port: %w", err)
	}

	macros := maps.Clone(decl.Macros)
	if macros == nil {
		macros = map[string]string{}
	}

	d := &Device{Name: decl.Name, Port: ports[0]}
	switch {
	case !decl.HasEmulator() || mode == testmode.NoSim:
	case mode == testmode.RecSim:
		d.Emulator = r.nullEmulator(testName, decl, ports[0])
	case len(decl.Emulators) > 0:
		d.Emulator, err = r.multiEmulator(testName, decl, ports, macros)
	default:
		d.Emulator, err = r.singleEmulator(testName, decl, ports[0], mode)
	}
	if err != nil {
		return nil, err
	}

	readyText := decl.ReadyText
	if readyText == "" {
		readyText = ioc.DefaultReadyText
	}
	d.IOC = ioc.New(ioc.Config{
		TestName:       testName,
		Name:           decl.Name,
		Directory:      decl.Directory,
		Command:        decl.Command,
		Macros:         macros,
		Mode:           mode,
		VarDir:         r.Settings.VarDir,
		EmulatorPort:   d.Port,
		ReadyText:      readyText,
		StartupTimeout: decl.StartupTimeout,
	})
	return d, nil
}

func (r *Runner) settings(testName, deviceName string, port int, mode testmode.Mode, options emulator.Options) emulator.Settings {
	return emulator.Settings{
		TestName:     testName,
		Device:       deviceName,
		EmulatorPath: r.Settings.EmulatorPath,
		VarDir:       r.Settings.VarDir,
		EpicsTop:     r.Settings.EpicsTop,
		Port:         port,
		Mode:         mode,
		Registry:     r.Registry,
		Options:      options,
	}
}

func (r *Runner) singleEmulator(testName string, decl config.IOC, port int, mode testmode.Mode) (emulator.Launcher, error) {
	options := r.lewisOptions(decl.EmulatorOptions)
	setDefault(options, emulator.OptEmulatorID, decl.EmulatorID)
	setDefault(options, emulator.OptLewisProtocol, decl.EmulatorProtocol)
	setDefault(options, emulator.OptLewisPackage, decl.EmulatorPackage)
	setDefault(options, emulator.OptLewisAdditionalPath, decl.EmulatorPath)

	return emulator.New(decl.EmulatorLauncher, r.settings(testName, decl.Emulator, port, mode, options))
}

func (r *Runner) multiEmulator(testName string, decl config.IOC, ports []int, macros map[string]string) (*emulator.MultiLewisLauncher, error) {
	emulators := make([]emulator.Emulator, 0, len(decl.Emulators))
	for i, e := range decl.Emulators {
		options := r.lewisOptions(e.Options)
		setDefault(options, emulator.OptLewisProtocol, decl.EmulatorProtocol)
		setDefault(options, emulator.OptLewisPackage, decl.EmulatorPackage)
		setDefault(options, emulator.OptLewisAdditionalPath, decl.EmulatorPath)
		setDefault(options, emulator.OptLewisAdditionalPath, r.Settings.EmulatorPath)

		data := emulator.TestEmulatorData{EmulatorName: e.Name, Port: ports[i], LauncherAddress: e.LauncherAddress}
		emulators = append(emulators, data.Emulator(r.Settings.VarDir, options))
		macros[ioc.EmulatorPortMacro+"_"+strconv.Itoa(e.LauncherAddress)] = strconv.Itoa(ports[i])
	}
	return emulator.NewMultiLewisLauncher(testName, r.Registry, emulators)
}

// nullEmulator keeps the registry populated in RECSIM so tests can still look
// their emulator up, though it does nothing.
func (r *Runner) nullEmulator(testName string, decl config.IOC, port int) *emulator.NullLauncher {
	name := decl.Emulator
	options := emulator.Options{}
	if len(decl.Emulators) > 0 {
		name = decl.Emulators[0].Name
		options[emulator.OptEmulatorID] = testName
	}
	setDefault(options, emulator.OptEmulatorID, decl.EmulatorID)
	return emulator.NewNullLauncher(r.settings(testName, name, port, testmode.RecSim, options))
}

func (r *Runner) lewisOptions(from map[string]any) emulator.Options {
	options := emulator.Options(maps.Clone(from))
	if options == nil {
		options = emulator.Options{}
	}
	setDefault(options, emulator.OptPythonPath, r.Settings.PythonPath)
	setDefault(options, emulator.OptLewisPath, r.Settings.LewisPath)
	return options
}

func setDefault(options emulator.Options, key, value string) {
	if value != "" && !options.Has(key) {
		options[key] = value
	}
}

// Run opens the suite once per declared mode and calls fn against each plan.
// Every mode runs even when an earlier one failed. Channel access is pointed
// at the loopback broadcast address for the duration.
func (r *Runner) Run(ctx context.Context, suite *config.Suite, fn func(ctx context.Context, plan *Plan) error) error {
	restore, err := modifiedEnvironment(map[string]string{CAAddrListEnv: CAAddrList})
	if err != nil {
		return err
	}
	defer restore()

	var result error
	for _, mode := range suite.Modes {
		logger := applog.FromContext(ctx).With(zap.String("suite", suite.Name), zap.String("mode", mode.String()))
		logger.Info("Testing suite")

		plan, err := r.Build(suite, mode)
		if err != nil {
			result = multierr.Append(result, fmt.Errorf("%s in %s: %w", suite.Name, mode, err))
			continue
		}
		if err := device.Run(ctx, plan, func(ctx context.Context) error { return fn(ctx, plan) }); err != nil {
			logger.Error("Suite failed", zap.Error(err))
			result = multierr.Append(result, fmt.Errorf("%s in %s: %w", suite.Name, mode, err))
			continue
		}
		logger.Info("Suite passed")
	}
	return result
}

// modifiedEnvironment applies env and returns a function restoring the
// previous values, unsetting variables that did not exist.
func modifiedEnvironment(env map[string]string) (func(), error) {
	type previous struct {
		value string
		set   bool
	}
	saved := make(map[string]previous, len(env))
	for _, key := range slices.Sorted(maps.Keys(env)) {
		value, set := os.LookupEnv(key)
		saved[key] = previous{value: value, set: set}
		if err := os.Setenv(key, env[key]); err != nil {
			return nil, fmt.Errorf("could not set %s: %w", key, err)
		}
	}
	return func() {
		for key, p := range saved {
			if p.set {
				_ = os.Setenv(key, p.value)
			} else {
				_ = os.Unsetenv(key)
			}
		}
	}, nil
}
