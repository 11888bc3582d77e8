//go:build windows

package proc

import (
	"os"
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// There is no graceful signal for a console-less process group on windows.
func terminate(p *os.Process, _ bool) error {
	return p.Kill()
}

func kill(p *os.Process, _ bool) error {
	return p.Kill()
}
