//go:build !windows

package proc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTracksExit(t *testing.T) {
	p, err := Start(exec.Command("sh", "-c", "exit 3"))
	require.NoError(t, err)

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	assert.True(t, p.Exited())
	assert.Error(t, p.Err())
	assert.Equal(t, "exit status 3", p.ExitStatus())
}

func TestStartMissingExecutable(t *testing.T) {
	_, err := Start(exec.Command(filepath.Join(t.TempDir(), "missing")))

	var startErr *StartError
	require.ErrorAs(t, err, &startErr)
	assert.Contains(t, startErr.Error(), "missing")
}

func TestStartUsesOwnProcessGroup(t *testing.T) {
	p, err := Start(exec.Command("sleep", "30"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Kill() })

	pgid, err := syscall.Getpgid(p.Pid())
	require.NoError(t, err)
	assert.Equal(t, p.Pid(), pgid)
}

func TestTerminateRunningProcess(t *testing.T) {
	p, err := Start(exec.Command("sleep", "30"))
	require.NoError(t, err)

	start := time.Now()
	assert.NoError(t, p.Terminate(DefaultGrace))
	assert.True(t, p.Exited())
	assert.Less(t, time.Since(start), DefaultGrace)
}

func TestTerminateKillsAfterGrace(t *testing.T) {
	p, err := Start(exec.Command("sh", "-c", "trap '' TERM; while true; do sleep 0.1; done"))
	require.NoError(t, err)
	// Give the shell a moment to install the trap.
	time.Sleep(200 * time.Millisecond)

	assert.NoError(t, p.Terminate(300*time.Millisecond))
	assert.True(t, p.Exited())
}

func TestTerminateExitedProcessIsNoop(t *testing.T) {
	p, err := Start(exec.Command("true"))
	require.NoError(t, err)
	require.NoError(t, p.Wait(context.Background()))

	assert.NoError(t, p.Terminate(DefaultGrace))
	assert.NoError(t, p.TerminateTree(DefaultGrace))
	assert.NoError(t, p.Kill())
}

func TestWaitHonoursContext(t *testing.T) {
	p, err := Start(exec.Command("sleep", "30"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Kill() })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)
}

func TestTerminateTreeKillsBackgroundChild(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")

	p, err := Start(exec.Command("sh", "-c", fmt.Sprintf("sleep 60 & echo $! > %q; wait", pidFile)))
	require.NoError(t, err)

	pid := waitForChildPID(t, pidFile)
	require.True(t, processExists(pid), "expected background child %d to exist", pid)

	assert.NoError(t, p.TerminateTree(DefaultGrace))

	deadline := time.Now().Add(2 * time.Second)
	for processExists(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("background child pid %d still alive after tree terminate", pid)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestDescendantsOfUnknownPid(t *testing.T) {
	assert.Empty(t, Descendants(-1))
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, "python3 -u -m lewis", CommandLine(exec.Command("python3", "-u", "-m", "lewis")))
}

func waitForChildPID(t *testing.T, pidFile string) int {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		data, err := os.ReadFile(pidFile)
		text := strings.TrimSpace(string(data))
		if err != nil || text == "" {
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for child pid file: %v", err)
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		pid, err := strconv.Atoi(text)
		require.NoError(t, err)
		return pid
	}
}

func processExists(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
