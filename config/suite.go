// Package config loads test suites from YAML and run settings from the
// environment.
package config

import (
	"errors"
	"fmt"
	"ioctest/testmode"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const SuiteExtension = ".yaml"

var ErrInvalidSuite = errors.New("invalid test suite")

// Suite is one test module: the IOCs it needs and the modes it runs in.
type Suite struct {
	Name  string          `yaml:"name"`
	Modes []testmode.Mode `yaml:"modes"`
	IOCs  []IOC           `yaml:"iocs"`
}

// IOC declares one IOC under test and the emulator behind it.
type IOC struct {
	Name           string            `yaml:"name"`
	Directory      string            `yaml:"directory"`
	Command        []string          `yaml:"command"`
	Macros         map[string]string `yaml:"macros"`
	ReadyText      string            `yaml:"ready_text"`
	StartupTimeout time.Duration     `yaml:"startup_timeout"`

	Emulator         string         `yaml:"emulator"`
	EmulatorID       string         `yaml:"emulator_id"`
	EmulatorLauncher string         `yaml:"emulator_launcher"`
	EmulatorProtocol string         `yaml:"emulator_protocol"`
	EmulatorPackage  string         `yaml:"emulator_package"`
	EmulatorPath     string         `yaml:"emulator_path"`
	EmulatorOptions  map[string]any `yaml:"emulator_options"`

	// Emulators run behind one multiplexing launcher instead of Emulator.
	Emulators []AddressedEmulator `yaml:"emulators"`
}

// AddressedEmulator is one child of a multiplexed emulator.
type AddressedEmulator struct {
	Name            string         `yaml:"name"`
	LauncherAddress int            `yaml:"launcher_address"`
	Options         map[string]any `yaml:"options"`
}

// HasEmulator reports whether the IOC talks to any emulator.
func (i IOC) HasEmulator() bool {
	return i.Emulator != "" || len(i.Emulators) > 0
}

func ParseSuite(data []byte) (*Suite, error) {
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse test suite: %w", err)
	}
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return &suite, nil
}

// LoadSuite reads a suite file. A suite without a name is named after the file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test suite: %w", err)
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse test suite %s: %w", path, err)
	}
	if suite.Name == "" {
		suite.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := suite.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &suite, nil
}

func (s *Suite) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidSuite)
	}
	if len(s.Modes) == 0 {
		return fmt.Errorf("%w: '%s' declares no modes", ErrInvalidSuite, s.Name)
	}
	if len(s.IOCs) == 0 {
		return fmt.Errorf("%w: '%s' needs at least one IOC", ErrInvalidSuite, s.Name)
	}

	seen := make(map[string]struct{}, len(s.IOCs))
	for _, ioc := range s.IOCs {
		if ioc.Name == "" {
			return fmt.Errorf("%w: '%s' has an IOC without a name", ErrInvalidSuite, s.Name)
		}
		if _, ok := seen[ioc.Name]; ok {
			return fmt.Errorf("%w: IOC '%s' is declared twice", ErrInvalidSuite, ioc.Name)
		}
		seen[ioc.Name] = struct{}{}

		if len(ioc.Command) == 0 {
			return fmt.Errorf("%w: IOC '%s' has no command", ErrInvalidSuite, ioc.Name)
		}
		if ioc.Emulator != "" && len(ioc.Emulators) > 0 {
			return fmt.Errorf("%w: IOC '%s' sets both emulator and emulators", ErrInvalidSuite, ioc.Name)
		}
		addresses := make([]int, 0, len(ioc.Emulators))
		for _, e := range ioc.Emulators {
			if slices.Contains(addresses, e.LauncherAddress) {
				return fmt.Errorf("%w: IOC '%s' uses launcher address %d twice",
					ErrInvalidSuite, ioc.Name, e.LauncherAddress)
			}
			addresses = append(addresses, e.LauncherAddress)
		}
	}
	return nil
}

// ListSuites returns the suite names found in dir, sorted.
func ListSuites(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list test suites: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != SuiteExtension {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), SuiteExtension))
	}
	sort.Strings(names)
	return names, nil
}

// SuitePath resolves a suite name or path against dir.
func SuitePath(dir, nameOrPath string) string {
	if filepath.Ext(nameOrPath) == SuiteExtension {
		if filepath.IsAbs(nameOrPath) || dir == "" {
			return nameOrPath
		}
		if _, err := os.Stat(nameOrPath); err == nil {
			return nameOrPath
		}
		return filepath.Join(dir, nameOrPath)
	}
	return filepath.Join(dir, nameOrPath+SuiteExtension)
}
