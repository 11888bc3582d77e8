//go:build !windows

package ioc

import (
	"context"
	"ioctest/testmode"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readyIOC = `echo "EMULATOR_PORT=$EMULATOR_PORT DEVSIM=$DEVSIM RECSIM=$RECSIM P=$P"
pwd
echo "` + DefaultReadyText + `"
exec sleep 30`

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "runIOC.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func newTestIOC(t *testing.T, body string, mode testmode.Mode) *Launcher {
	t.Helper()
	boot := t.TempDir()
	return New(Config{
		TestName:       "julabo",
		Name:           "JULABO_01",
		Directory:      boot,
		Command:        []string{writeScript(t, boot, body)},
		Macros:         map[string]string{"P": "TE:NDW:JULABO_01:"},
		Mode:           mode,
		VarDir:         t.TempDir(),
		EmulatorPort:   57677,
		ReadyText:      DefaultReadyText,
		StartupTimeout: 5 * time.Second,
	})
}

func TestOpenWaitsForReadyAndExportsMacros(t *testing.T) {
	l := newTestIOC(t, readyIOC, testmode.DevSim)
	require.NoError(t, l.Open(context.Background()))
	defer func(l *Launcher) {
		_ = l.Close()
	}(l)
	assert.True(t, l.Running())

	out, err := os.ReadFile(l.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(out), "EMULATOR_PORT=57677 DEVSIM=1 RECSIM=0 P=TE:NDW:JULABO_01:")
	assert.Contains(t, string(out), l.cfg.Directory)
	assert.Equal(t, "julabo_ioc_JULABO_01_devsim.log", filepath.Base(l.LogPath()))
}

func TestCloseStopsIOC(t *testing.T) {
	l := newTestIOC(t, readyIOC, testmode.RecSim)
	require.NoError(t, l.Open(context.Background()))

	require.NoError(t, l.Close())
	assert.False(t, l.Running())
}

func TestOpenFailsWhenIOCExits(t *testing.T) {
	l := newTestIOC(t, `echo "dbLoadRecords failed"
exit 3`, testmode.DevSim)

	err := l.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not start")
	assert.Contains(t, err.Error(), "exit status 3")
	assert.False(t, l.Running())
}

func TestOpenTimesOutWithoutReadyText(t *testing.T) {
	l := newTestIOC(t, `exec sleep 30`, testmode.DevSim)
	l.cfg.StartupTimeout = 300 * time.Millisecond

	start := time.Now()
	err := l.Open(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, l.Running(), "a failed open must not leave the IOC running")
}

func TestOpenWithoutReadyTextReturnsImmediately(t *testing.T) {
	l := newTestIOC(t, `exec sleep 30`, testmode.DevSim)
	l.cfg.ReadyText = ""

	require.NoError(t, l.Open(context.Background()))
	defer func(l *Launcher) {
		_ = l.Close()
	}(l)
	assert.True(t, l.Running())
}

func TestOpenWithoutCommand(t *testing.T) {
	l := New(Config{Name: "EMPTY"})
	assert.ErrorIs(t, l.Open(context.Background()), ErrNoCommand)
}

func TestEnvironmentFlags(t *testing.T) {
	l := New(Config{Mode: testmode.RecSim})
	env := strings.Join(l.Environment(), "\n")
	assert.Contains(t, env, "RECSIM=1")
	assert.Contains(t, env, "DEVSIM=0")
	assert.NotContains(t, env, EmulatorPortMacro+"=")
}
