//go:build !windows

package updater

import (
	"os/exec"
	"syscall"
)

func helperCommand(script string) *exec.Cmd {
	return exec.Command("/bin/sh", script)
}

// detach puts the helper in its own session so it survives the parent
// exiting and never receives the parent's terminal signals.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
