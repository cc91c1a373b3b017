// Package venv asks a sandbox manager (normally pipenv) which isolated environment governs a
// directory. An absent sandbox is the common case, so nothing here fails apart from cancellation.
package venv

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mypyrun/mypyrun/src/cli/logging"
	"github.com/mypyrun/mypyrun/src/core"
	"github.com/mypyrun/mypyrun/src/fs"
	"github.com/mypyrun/mypyrun/src/process"
)

var log = logging.Log

// maxDepthEnvVar overrides how far up pipenv looks for a Pipfile; by default it's only 3 levels.
const maxDepthEnvVar = "PIPENV_MAX_DEPTH"

// An Environment describes what the sandbox manager knows about a directory.
// Either field may be empty if it wasn't found.
type Environment struct {
	// Root is the root of the virtualenv, e.g. ~/.local/share/virtualenvs/project-abc123
	Root string
	// ProjectRoot is the directory containing the Pipfile.
	ProjectRoot string
}

// A Prober finds the Environment governing a directory.
type Prober interface {
	Probe(ctx context.Context, dir string) (Environment, error)
}

// A Probe implements Prober by running the sandbox manager as a subprocess.
type Probe struct {
	executor *process.Executor
	tool     string
	env      []string
	timeout  time.Duration
}

// NewProbe returns a new Probe that runs the given tool.
func NewProbe(executor *process.Executor, tool string, maxDepth int, timeout time.Duration) *Probe {
	env := core.InheritedEnv()
	env[maxDepthEnvVar] = strconv.Itoa(maxDepth)
	return &Probe{
		executor: executor,
		tool:     tool,
		env:      env.ToSlice(),
		timeout:  timeout,
	}
}

// Probe asks the sandbox manager about the given directory.
// The only error it returns is the context's, if it is cancelled.
func (p *Probe) Probe(ctx context.Context, dir string) (Environment, error) {
	root, err := p.query(ctx, dir, "--venv")
	if err != nil {
		return Environment{}, err
	}
	projectRoot, err := p.query(ctx, dir, "--where")
	if err != nil {
		return Environment{}, err
	}
	return Environment{Root: root, ProjectRoot: projectRoot}, nil
}

// query runs a single sandbox manager command and returns the directory it printed, if it exists.
func (p *Probe) query(ctx context.Context, dir, flag string) (string, error) {
	result, err := p.executor.Exec(ctx, process.Command{
		Argv:    []string{p.tool, flag},
		Dir:     dir,
		Env:     p.env,
		Timeout: p.timeout,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Info("Failed to run %s %s in %s: %s", p.tool, flag, dir, err)
		return "", nil
	}
	if stderr := bytes.TrimSpace(result.Stderr); len(stderr) > 0 {
		log.Debug("%s %s in %s: %s", p.tool, flag, dir, stderr)
	}
	if result.ExitCode != 0 {
		log.Debug("%s %s in %s exited with %d", p.tool, flag, dir, result.ExitCode)
		return "", nil
	}
	path := firstLine(result.Stdout)
	if path == "" || !fs.IsDirectory(path) {
		log.Info("%s %s in %s reported %q, which is not a directory", p.tool, flag, dir, path)
		return "", nil
	}
	log.Debug("%s %s in %s: %s", p.tool, flag, dir, path)
	return path, nil
}

// firstLine returns the first non-empty line of the given output, trimmed.
// pipenv sometimes prints courtesy notices after the path.
func firstLine(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
