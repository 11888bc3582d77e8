//go:build !windows

package proc

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminate(p *os.Process, group bool) error {
	return signal(p, group, syscall.SIGTERM)
}

func kill(p *os.Process, group bool) error {
	return signal(p, group, syscall.SIGKILL)
}

func signal(p *os.Process, group bool, sig syscall.Signal) error {
	if group {
		err := syscall.Kill(-p.Pid, sig)
		if err == nil {
			return nil
		}
		if !errors.Is(err, syscall.ESRCH) {
			return err
		}
	}
	return p.Signal(sig)
}
