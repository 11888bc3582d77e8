package runner

import (
	"ioctest/config"
	"ioctest/emulator"
	"ioctest/testmode"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialPorts(next int) func(int) ([]int, error) {
	return func(n int) ([]int, error) {
		ports := make([]int, n)
		for i := range ports {
			ports[i] = next
			next++
		}
		return ports, nil
	}
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	r := New(config.Settings{
		Prefix:       "TE:NDW1373:",
		VarDir:       t.TempDir(),
		PythonPath:   "/opt/python/bin/python",
		LewisPath:    "/opt/python/bin",
		EmulatorPath: "/instrument/DeviceEmulator/master",
	}, emulator.NewRegistry())
	r.freePorts = sequentialPorts(6000)
	return r
}

func julabo() *config.Suite {
	return &config.Suite{
		Name:  "julabo",
		Modes: []testmode.Mode{testmode.RecSim, testmode.DevSim},
		IOCs: []config.IOC{
			{
				Name:             "JULABO_01",
				Command:          []string{"./runIOC.sh"},
				Macros:           map[string]string{"MODEL": "1"},
				Emulator:         "julabo",
				EmulatorProtocol: "julabo-version-1",
			},
			{Name: "MOXA_01", Command: []string{"./runIOC.sh"}},
		},
	}
}

func env(d *Device) string {
	return strings.Join(d.IOC.Environment(), "\n")
}

func TestBuildDevSimUsesLewis(t *testing.T) {
	r := newTestRunner(t)
	plan, err := r.Build(julabo(), testmode.DevSim)
	require.NoError(t, err)
	require.Len(t, plan.Devices, 2)

	d, ok := plan.Device("JULABO_01")
	require.True(t, ok)
	assert.Equal(t, 6000, d.Port)
	lewis, ok := d.Emulator.(*emulator.LewisLauncher)
	require.True(t, ok, "expected a Lewis launcher, got %T", d.Emulator)

	cmd := strings.Join(lewis.CommandLine(), " ")
	assert.Contains(t, cmd, "/opt/python/bin/python -u -m lewis")
	assert.Contains(t, cmd, "julabo-version-1: {bind_address: 127.0.0.1, port: 6000}")
	assert.Contains(t, cmd, "-a /instrument/DeviceEmulator/master")
	assert.Contains(t, env(d), "EMULATOR_PORT=6000")
	assert.Contains(t, env(d), "MODEL=1")
	assert.Contains(t, env(d), "DEVSIM=1")

	moxa, ok := plan.Device("MOXA_01")
	require.True(t, ok)
	assert.Nil(t, moxa.Emulator)
	assert.Equal(t, 6001, moxa.Port)
}

func TestBuildRecSimUsesNullLauncher(t *testing.T) {
	r := newTestRunner(t)
	plan, err := r.Build(julabo(), testmode.RecSim)
	require.NoError(t, err)

	d, _ := plan.Device("JULABO_01")
	null, ok := d.Emulator.(*emulator.NullLauncher)
	require.True(t, ok, "expected a null launcher, got %T", d.Emulator)
	assert.Equal(t, "julabo", null.ID())
	assert.Contains(t, env(d), "RECSIM=1")
	assert.Contains(t, env(d), "EMULATOR_PORT=6000")
}

func TestBuildNoSimHasNoEmulator(t *testing.T) {
	r := newTestRunner(t)
	plan, err := r.Build(julabo(), testmode.NoSim)
	require.NoError(t, err)
	for _, d := range plan.Devices {
		assert.Nil(t, d.Emulator, d.Name)
	}
}

func TestBuildHonoursLauncherKind(t *testing.T) {
	r := newTestRunner(t)
	suite := julabo()
	suite.IOCs[0].EmulatorLauncher = emulator.KindNone
	suite.IOCs[0].EmulatorID = "julabo_2"

	plan, err := r.Build(suite, testmode.DevSim)
	require.NoError(t, err)
	l, ok := plan.Devices[0].Launcher()
	require.True(t, ok)
	assert.IsType(t, &emulator.NullLauncher{}, l)
	assert.Equal(t, "julabo_2", l.ID())
}

func TestBuildUnknownLauncherKind(t *testing.T) {
	r := newTestRunner(t)
	suite := julabo()
	suite.IOCs[0].EmulatorLauncher = "gpib"

	_, err := r.Build(suite, testmode.DevSim)
	assert.ErrorIs(t, err, emulator.ErrUnknownKind)
	assert.ErrorContains(t, err, "JULABO_01")
}

func TestBuildMultiplexedEmulators(t *testing.T) {
	r := newTestRunner(t)
	suite := &config.Suite{
		Name:  "tpg300",
		Modes: []testmode.Mode{testmode.DevSim},
		IOCs: []config.IOC{{
			Name:    "TPG300_01",
			Command: []string{"./runIOC.sh"},
			Emulators: []config.AddressedEmulator{
				{Name: "tpg300", LauncherAddress: 1},
				{Name: "tpg300", LauncherAddress: 2},
			},
		}},
	}

	plan, err := r.Build(suite, testmode.DevSim)
	require.NoError(t, err)
	d := plan.Devices[0]
	multi, ok := d.Multi()
	require.True(t, ok, "expected a multiplexing launcher, got %T", d.Emulator)
	assert.Equal(t, []int{1, 2}, multi.Addresses())

	second, err := multi.Device(2)
	require.NoError(t, err)
	assert.Equal(t, 6001, second.Port())
	assert.Contains(t, env(d), "EMULATOR_PORT=6000")
	assert.Contains(t, env(d), "EMULATOR_PORT_1=6000")
	assert.Contains(t, env(d), "EMULATOR_PORT_2=6001")

	// In record simulation the composite is stood in for under the test name.
	plan, err = r.Build(suite, testmode.RecSim)
	require.NoError(t, err)
	null, ok := plan.Devices[0].Launcher()
	require.True(t, ok)
	assert.Equal(t, "tpg300", null.ID())
}

func TestModifiedEnvironmentRestores(t *testing.T) {
	t.Setenv("IOCTEST_KEEP", "before")

	restore, err := modifiedEnvironment(map[string]string{
		"IOCTEST_KEEP": "during",
		"IOCTEST_NEW":  "added",
	})
	require.NoError(t, err)
	assert.Equal(t, "during", os.Getenv("IOCTEST_KEEP"))
	assert.Equal(t, "added", os.Getenv("IOCTEST_NEW"))

	restore()
	assert.Equal(t, "before", os.Getenv("IOCTEST_KEEP"))
	_, set := os.LookupEnv("IOCTEST_NEW")
	assert.False(t, set)
}
