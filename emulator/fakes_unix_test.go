//go:build !windows

package emulator

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeLewis is a stand-in interpreter that prints its arguments to the log and
// then idles like a running emulator.
const fakeLewis = `echo "lewis args: $@"
exec sleep 30`

// fakeControl answers "device <name>" with "<name>-value" and echoes the
// rest of the argument vector otherwise.
const fakeControl = `shift 2
if [ "$1" = device ] && [ $# -eq 2 ]; then
  echo "$2-value"
else
  echo "$@"
fi`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// lewisOptions points a Lewis launcher at fake interpreter and control scripts.
func lewisOptions(t *testing.T, interpreter string) Options {
	t.Helper()
	dir := t.TempDir()
	writeScript(t, dir, "lewis-control", fakeControl)
	return Options{
		OptPythonPath:     writeScript(t, dir, "python", interpreter),
		OptLewisPath:      dir,
		OptStartupTimeout: 0,
	}
}

func processExists(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
