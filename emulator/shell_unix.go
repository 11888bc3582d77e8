//go:build !windows

package emulator

import "os/exec"

const scriptSuffix = ".sh"

func shellCommand(commandLine string) *exec.Cmd {
	return exec.Command("/bin/sh", "-c", commandLine)
}

func noopExecutable() string {
	return "true"
}
