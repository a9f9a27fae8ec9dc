//go:build windows

package updater

import (
	"os/exec"
	"syscall"
)

const (
	createNewProcessGroup = 0x00000200
	detachedProcess       = 0x00000008
)

func helperCommand(script string) *exec.Cmd {
	return exec.Command("cmd", "/c", script)
}

// detach starts the helper without a console window or a tie to this
// process group, so it keeps running after the parent exits.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNewProcessGroup | detachedProcess,
		HideWindow:    true,
	}
}
