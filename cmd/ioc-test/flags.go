package main

import (
	"ioctest/config"

	"github.com/spf13/pflag"
)

// runFlags are the command line overrides of the environment settings.
type runFlags struct {
	Prefix       string
	VarDir       string
	EpicsTop     string
	PythonPath   string
	LewisPath    string
	EmulatorPath string
	SuiteDir     string
	LogLevel     int
	LogPath      string
}

func (f *runFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.Prefix, "prefix", "",
		"The instrument prefix, e.g. TE:NDW1373: (default $MYPVPREFIX)")
	fs.StringVar(&f.VarDir, "var-dir", "",
		"Directory in which to create the log dir (default $ICPVARDIR, then the working directory)")
	fs.StringVar(&f.EpicsTop, "epics-top", "",
		"Root of the EPICS tree (default $EPICS_TOP)")
	fs.StringVarP(&f.PythonPath, "python-path", "p", "",
		"The python interpreter running the emulators (default $PYTHON_PATH)")
	fs.StringVarP(&f.LewisPath, "emulator-path", "e", "",
		"Directory holding lewis-control (default $LEWIS_PATH, then $PYTHONDIR/scripts)")
	fs.StringVar(&f.EmulatorPath, "device-emulator-path", "",
		"Directory of the device emulator packages (default $EPICS_TOP/support/DeviceEmulator/master)")
	fs.StringVar(&f.SuiteDir, "suites", "",
		"Directory of the test suite files (default $IOCTEST_SUITES, then ./suites)")
	fs.IntVar(&f.LogLevel, "log-level", 0,
		"Log level: -1 - Debug, 0 - Info, 1 - Warn, 2 - Error")
	fs.StringVar(&f.LogPath, "log-path", "",
		"Directory of the harness log, otherwise 'logs' under the working directory")
}

// settings reads the environment and lets every flag set on fs override it.
func (f *runFlags) settings(fs *pflag.FlagSet) config.Settings {
	var s config.Settings
	config.LoadEnv(&s)

	override := func(name string, target *string, value string) {
		if fs.Changed(name) {
			*target = value
		}
	}
	override("prefix", &s.Prefix, f.Prefix)
	override("var-dir", &s.VarDir, f.VarDir)
	override("epics-top", &s.EpicsTop, f.EpicsTop)
	override("python-path", &s.PythonPath, f.PythonPath)
	override("emulator-path", &s.LewisPath, f.LewisPath)
	override("device-emulator-path", &s.EmulatorPath, f.EmulatorPath)
	override("suites", &s.SuiteDir, f.SuiteDir)

	s.ApplyDefaults()
	return s
}
