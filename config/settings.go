package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
)

var ErrNoPrefix = errors.New("cannot run without instrument prefix")

// Settings are the per-run values taken from the environment and overridden
// by command line flags.
type Settings struct {
	// Prefix is the instrument PV prefix, e.g. TE:NDW1373:
	Prefix     string `env:"MYPVPREFIX"`
	VarDir     string `env:"ICPVARDIR"`
	EpicsTop   string `env:"EPICS_TOP"`
	PythonPath string `env:"PYTHON_PATH"`
	LewisPath  string `env:"LEWIS_PATH"`
	PythonDir  string `env:"PYTHONDIR"`
	// EmulatorPath is where the device emulator packages live.
	EmulatorPath string `env:"DEVICE_EMULATOR_PATH"`
	SuiteDir     string `env:"IOCTEST_SUITES"`
}

// SettingsFromEnv reads the environment and fills in derived defaults.
func SettingsFromEnv() Settings {
	var s Settings
	LoadEnv(&s)
	s.ApplyDefaults()
	return s
}

// LoadEnv sets the fields of s whose variables are set and non-empty.
func LoadEnv(s *Settings) {
	loadFromEnv(reflect.ValueOf(s).Elem(), os.LookupEnv)
}

type lookupFunc func(string) (string, bool)

func loadFromEnv(v reflect.Value, lookup lookupFunc) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		key := t.Field(i).Tag.Get("env")
		if key == "" || !field.CanSet() || field.Kind() != reflect.String {
			continue
		}
		if value, ok := lookup(key); ok && value != "" {
			field.SetString(value)
		}
	}
}

// ApplyDefaults fills empty fields that can be derived from the others.
func (s *Settings) ApplyDefaults() {
	if s.VarDir == "" {
		s.VarDir = "."
	}
	if s.LewisPath == "" && s.PythonDir != "" {
		s.LewisPath = filepath.Join(s.PythonDir, "scripts")
	}
	if s.EmulatorPath == "" && s.EpicsTop != "" {
		s.EmulatorPath = filepath.Join(s.EpicsTop, "support", "DeviceEmulator", "master")
	}
	if s.SuiteDir == "" {
		s.SuiteDir = "suites"
	}
}

func (s Settings) Validate() error {
	if s.Prefix == "" {
		return ErrNoPrefix
	}
	return nil
}
