//go:build windows

package emulator

import (
	"os/exec"
	"syscall"
)

const scriptSuffix = ".bat"

func shellCommand(commandLine string) *exec.Cmd {
	cmd := exec.Command("cmd.exe")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine:       "/C " + commandLine,
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
	return cmd
}

func noopExecutable() string {
	return `C:\Windows\System32\rundll32.exe`
}
