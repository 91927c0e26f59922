package helper

import (
	"os/exec"
	"syscall"
)

// hideWindow keeps console helpers from flashing a window.
func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}
