// Package harness ties launchers and suites to the lifetime of a Go test.
package harness

import (
	"context"
	"ioctest/applog"
	"ioctest/config"
	"ioctest/device"
	"ioctest/emulator"
	"ioctest/pv"
	"ioctest/runner"
	"testing"

	"go.uber.org/zap"
)

// Open opens r for the rest of the test and closes it in cleanup. A failure to
// open stops the test.
func Open(t testing.TB, r device.Resource) {
	t.Helper()
	ctx := Context(t)
	if err := r.Open(ctx); err != nil {
		t.Fatalf("could not open test resources: %v", err)
	}
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("could not close test resources: %v", err)
		}
	})
}

// Context is a context cancelled when the test ends, carrying the test name
// as a log field.
func Context(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return applog.AddContextFields(ctx, zap.String("test", t.Name()))
}

// Launcher finds a registered emulator launcher by id, stopping the test when
// there is none.
func Launcher(t testing.TB, registry *emulator.Registry, id string) emulator.Launcher {
	t.Helper()
	if registry == nil {
		registry = emulator.DefaultRegistry()
	}
	l, ok := registry.Launcher(id)
	if !ok {
		t.Fatalf("no emulator launcher registered as '%s', have %v", id, registry.Keys())
	}
	return l
}

// Multi finds a registered multiplexing launcher by test name.
func Multi(t testing.TB, registry *emulator.Registry, testName string) *emulator.MultiLewisLauncher {
	t.Helper()
	if registry == nil {
		registry = emulator.DefaultRegistry()
	}
	m, ok := registry.Multi(testName)
	if !ok {
		t.Fatalf("no multi emulator launcher registered as '%s', have %v", testName, registry.Keys())
	}
	return m
}

// Require stops the test when an assertion returned an error.
func Require(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// Checker returns a PV checker on prefix using the channel access tools.
func Checker(prefix string, opts ...pv.CheckerOption) *pv.Checker {
	return pv.NewChecker(pv.NewCAToolsClient(), prefix, opts...)
}

// Suite runs fn as one subtest per suite mode with the suite's IOCs and
// emulators open for its duration. Each subtest confines channel access to
// the loopback broadcast address, so Suite must not be called from a
// parallel test.
func Suite(t *testing.T, r *runner.Runner, suite *config.Suite, fn func(t *testing.T, plan *runner.Plan)) {
	t.Helper()
	for _, mode := range suite.Modes {
		t.Run(mode.String(), func(t *testing.T) {
			t.Setenv(runner.CAAddrListEnv, runner.CAAddrList)
			plan, err := r.Build(suite, mode)
			if err != nil {
				t.Fatalf("could not build %s: %v", suite.Name, err)
			}
			Open(t, plan)
			fn(t, plan)
		})
	}
}
