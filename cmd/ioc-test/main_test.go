package main

import (
	"bytes"
	"ioctest/config"
	"ioctest/testmode"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("MYPVPREFIX", "TE:NDW1373:")
	t.Setenv("EPICS_TOP", "/instrument/apps/epics")
	t.Setenv("ICPVARDIR", "/instrument/var")

	var f runFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.bind(fs)
	require.NoError(t, fs.Parse([]string{"--prefix", "IN:LARMOR:", "-e", "/opt/lewis"}))

	s := f.settings(fs)
	assert.Equal(t, "IN:LARMOR:", s.Prefix)
	assert.Equal(t, "/opt/lewis", s.LewisPath)
	assert.Equal(t, "/instrument/var", s.VarDir, "unset flags keep the environment value")
	assert.Equal(t, filepath.Join("/instrument/apps/epics", "support", "DeviceEmulator", "master"), s.EmulatorPath)
}

func TestSelectMode(t *testing.T) {
	suite := &config.Suite{Name: "julabo", Modes: []testmode.Mode{testmode.RecSim, testmode.DevSim}}
	require.NoError(t, selectMode(suite, "devsim"))
	assert.Equal(t, []testmode.Mode{testmode.DevSim}, suite.Modes)

	suite.Modes = []testmode.Mode{testmode.RecSim, testmode.DevSim}
	require.NoError(t, selectMode(suite, ""))
	assert.Equal(t, []testmode.Mode{testmode.RecSim}, suite.Modes)

	assert.ErrorContains(t, selectMode(suite, "NOSIM"), "does not run in NOSIM")
	assert.Error(t, selectMode(suite, "FASTSIM"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append(args, "--log-path", t.TempDir()))
	err := root.Execute()
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	dir := t.TempDir()
	suite := "modes: [DEVSIM]\niocs: [{name: A, command: [x]}]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "julabo.yaml"), []byte(suite), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eurotherm.yaml"), []byte(suite), 0o644))

	out, err := execute(t, "list", "--suites", dir)
	require.NoError(t, err)
	assert.Equal(t, "Available tests:\neurotherm\njulabo\n", out)
}

func TestUpRequiresPrefix(t *testing.T) {
	t.Setenv("MYPVPREFIX", "")
	_, err := execute(t, "up", "julabo", "--suites", t.TempDir())
	assert.ErrorIs(t, err, config.ErrNoPrefix)
}

func TestUpMissingSuite(t *testing.T) {
	_, err := execute(t, "up", "julabo", "--prefix", "TE:NDW1373:", "--suites", t.TempDir())
	assert.ErrorContains(t, err, "failed to read test suite")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ioc-test ")
}
