//go:build !linux && !windows
// +build !linux,!windows

package process

import (
	"os/exec"
	"syscall"
)

// ExecCommand creates an external command.
// N.B. This does not start the command - the caller must handle that (or use Exec).
func (e *Executor) ExecCommand(command string, args ...string) *exec.Cmd {
	cmd := exec.Command(command, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd
}
