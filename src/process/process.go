// Package process implements generic subprocess management functions.
package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync"
	"time"

	"github.com/mypyrun/mypyrun/src/cli"
	"github.com/mypyrun/mypyrun/src/cli/logging"
)

var log = logging.Log

// An Executor handles starting, running and monitoring a set of subprocesses.
// It registers as a signal handler to attempt to terminate them all at process exit.
type Executor struct {
	processes map[*exec.Cmd]*running
	mutex     sync.Mutex
}

// New returns a new Executor.
func New() *Executor {
	o := &Executor{
		processes: map[*exec.Cmd]*running{},
	}
	cli.AtExit(o.killAll) // Kill any subprocess if we are ourselves killed
	return o
}

// A Command describes a single subprocess invocation.
type Command struct {
	// Argv is the command and its arguments; Argv[0] is looked up on the PATH if it has no separators.
	Argv []string
	// Dir is the working directory. Empty means our own.
	Dir string
	// Env is the complete environment. Nil means we inherit ours.
	Env []string
	// Timeout bounds the run; zero means no limit beyond the context.
	Timeout time.Duration
	// MaxStderr caps how much stderr is retained; zero means unlimited.
	MaxStderr int
}

// A Result is the outcome of a subprocess that ran to completion.
type Result struct {
	Stdout []byte
	Stderr []byte
	// ExitCode is the exit status, or -1 if the process was terminated by a signal.
	ExitCode int
	Duration time.Duration
}

// Exec runs an external command to completion and returns its output.
// A non-zero exit is not an error; it is reported in the Result.
// If the context is cancelled, or the timeout expires, the process is terminated and the
// returned error is the context's error (context.Canceled or context.DeadlineExceeded).
// Failure to start the process is returned as-is (typically an *exec.Error or *fs.PathError).
func (e *Executor) Exec(ctx context.Context, command Command) (*Result, error) {
	if command.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, command.Timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// We deliberately don't use CommandContext because it will only send SIGKILL which
	// child processes can't handle themselves.
	cmd := e.ExecCommand(command.Argv[0], command.Argv[1:]...)
	cmd.Dir = command.Dir
	cmd.Env = command.Env
	var stdout bytes.Buffer
	stderr := &cappedBuffer{max: command.MaxStderr}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		e.removeProcess(cmd)
		return nil, err
	}
	r := &running{done: make(chan struct{})}
	go r.wait(cmd)
	e.registerProcess(cmd, r)
	defer e.removeProcess(cmd)

	select {
	case <-r.done:
		err := r.err
		result := &Result{
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			ExitCode: 0,
			Duration: time.Since(start),
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else if err != nil {
			return nil, err
		}
		return result, nil
	case <-ctx.Done():
		log.Debug("Terminating %s: %s", command.Argv[0], ctx.Err())
		e.KillProcess(cmd)
		return nil, ctx.Err()
	}
}

// running tracks a started process. done is closed once it has exited, after which err is set.
type running struct {
	done chan struct{}
	err  error
}

func (r *running) wait(cmd *exec.Cmd) {
	r.err = cmd.Wait()
	close(r.done)
}

// KillProcess kills a process, attempting to send it a SIGTERM first followed by a SIGKILL
// shortly after if it hasn't exited.
func (e *Executor) KillProcess(cmd *exec.Cmd) {
	e.mutex.Lock()
	r := e.processes[cmd]
	e.mutex.Unlock()
	success := terminate(cmd, r, 30*time.Millisecond)
	if !success && !kill(cmd, r, time.Second) {
		log.Error("Failed to kill inferior process")
	}
	e.removeProcess(cmd)
}

func (e *Executor) registerProcess(cmd *exec.Cmd, r *running) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.processes[cmd] = r
}

func (e *Executor) removeProcess(cmd *exec.Cmd) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.processes, cmd)
}

// waitFor waits for the process to exit, but only for so long
// (we do not want to get hung up if it ignores our SIGTERM).
func waitFor(r *running, timeout time.Duration) bool {
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// LogProgress logs a message once a minute until the given context has expired.
// Used to provide some notion of progress while waiting for long-running checks.
func LogProgress(ctx context.Context, description string) {
	t := time.NewTicker(1 * time.Minute)
	defer t.Stop()
	for i := 1; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if i == 1 {
				log.Notice("Still %s after 1 minute", description)
			} else {
				log.Notice("Still %s after %d minutes", description, i)
			}
		}
	}
}

// cappedBuffer is an io.Writer that retains at most max bytes and silently discards the rest.
// The process never sees a short write, so it doesn't block or fail on a chatty stderr.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (cb *cappedBuffer) Write(b []byte) (int, error) {
	if cb.max <= 0 {
		return cb.buf.Write(b)
	}
	if remaining := cb.max - cb.buf.Len(); remaining < len(b) {
		cb.truncated = true
		if remaining > 0 {
			cb.buf.Write(b[:remaining])
		}
		return len(b), nil
	}
	return cb.buf.Write(b)
}

func (cb *cappedBuffer) Bytes() []byte {
	if cb.truncated {
		return append(cb.buf.Bytes(), []byte("\n[truncated]")...)
	}
	return cb.buf.Bytes()
}

// killAll kills all subprocesses of this executor.
func (e *Executor) killAll() {
	e.mutex.Lock()
	processes := make([]*exec.Cmd, 0, len(e.processes))
	for proc := range e.processes {
		processes = append(processes, proc)
	}
	e.mutex.Unlock()

	if len(processes) > 0 {
		var wg sync.WaitGroup
		wg.Add(len(processes))
		for _, proc := range processes {
			go func(proc *exec.Cmd) {
				e.KillProcess(proc)
				wg.Done()
			}(proc)
		}
		wg.Wait()
	}
}
