package process

import (
	"os/exec"
	"time"
)

// ExecCommand creates an external command.
// N.B. This does not start the command - the caller must handle that (or use Exec).
func (e *Executor) ExecCommand(command string, args ...string) *exec.Cmd {
	return exec.Command(command, args...)
}

// terminate has no gentler option than kill on Windows.
func terminate(cmd *exec.Cmd, r *running, timeout time.Duration) bool {
	return kill(cmd, r, timeout)
}

func kill(cmd *exec.Cmd, r *running, timeout time.Duration) bool {
	if cmd.Process == nil {
		return false
	}
	cmd.Process.Kill()
	return waitFor(r, timeout)
}
