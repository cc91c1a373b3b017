//go:build !windows
// +build !windows

package process

import (
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

func terminate(cmd *exec.Cmd, r *running, timeout time.Duration) bool {
	return killProcess(cmd, r, unix.SIGTERM, timeout)
}

func kill(cmd *exec.Cmd, r *running, timeout time.Duration) bool {
	return killProcess(cmd, r, unix.SIGKILL, timeout)
}

// killProcess implements one step of the two-step killing of processes with a SIGTERM and a
// SIGKILL if that's unsuccessful. It returns true if the process exited within the timeout.
func killProcess(cmd *exec.Cmd, r *running, sig unix.Signal, timeout time.Duration) bool {
	if cmd.Process == nil {
		log.Debug("Not terminating process, it seems to have not started yet")
		return false
	}
	log.Debug("Sending signal %s to -%d", sig, cmd.Process.Pid)
	unix.Kill(-cmd.Process.Pid, sig) // Kill the group - we always set one in ExecCommand.
	return waitFor(r, timeout)
}
