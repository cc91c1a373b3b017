// Package mypy runs mypy and understands what it says.
package mypy

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/coreos/go-semver/semver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mypyrun/mypyrun/src/cli/logging"
	"github.com/mypyrun/mypyrun/src/core"
	"github.com/mypyrun/mypyrun/src/process"
	"github.com/mypyrun/mypyrun/src/toolchain"
)

var log = logging.Log

var tracer = otel.Tracer("mypyrun/mypy")

// Arguments that are always passed to mypy. We need columns for precise locations and don't
// want errors in imported modules that weren't asked for.
var defaultArgs = []string{"--show-column-numbers", "--follow-imports", "silent"}

// Options configures a Runner.
type Options struct {
	// Timeout applies to each full run.
	Timeout time.Duration
	// ValidateTimeout applies to each -V check.
	ValidateTimeout time.Duration
	// MaxStderr is how much stderr we keep for error messages.
	MaxStderr int
}

// A Runner runs mypy as a subprocess.
type Runner struct {
	executor *process.Executor
	opts     Options
	env      core.Env
}

// NewRunner creates a new Runner. Subprocesses inherit this process' environment.
func NewRunner(executor *process.Executor, opts Options) *Runner {
	return &Runner{
		executor: executor,
		opts:     opts,
		env:      core.InheritedEnv(),
	}
}

// Validate returns true if the given executable runs successfully and reports its version.
// It's cheap enough to use before every scan.
func (r *Runner) Validate(ctx context.Context, executable string) bool {
	_, err := r.versionOutput(ctx, executable)
	if err != nil {
		log.Warning("Error while checking mypy path %s: %s", executable, err)
		return false
	}
	return true
}

// Version returns the version of the given mypy executable.
func (r *Runner) Version(ctx context.Context, executable string) (*semver.Version, error) {
	out, err := r.versionOutput(ctx, executable)
	if err != nil {
		return nil, err
	}
	return toolchain.ParseVersion(out)
}

func (r *Runner) versionOutput(ctx context.Context, executable string) (string, error) {
	result, err := r.executor.Exec(ctx, process.Command{
		Argv:    []string{executable, "-V"},
		Env:     r.environment(executable).ToSlice(),
		Timeout: r.opts.ValidateTimeout,
	})
	if err != nil {
		return "", err
	}
	if stderr := bytes.TrimSpace(result.Stderr); len(stderr) > 0 {
		log.Warning("%s -V: %s", executable, stderr)
	}
	out := strings.TrimSpace(string(result.Stdout))
	log.Debug("%s -V: %s", executable, out)
	if result.ExitCode != 0 {
		return "", fmt.Errorf("%s -V exited with %d", executable, result.ExitCode)
	}
	return out, nil
}

// Args returns the arguments mypy is invoked with for the given bucket, not including the executable.
func Args(bucket *core.Bucket, extraArgs []string) []string {
	args := make([]string, 0, len(defaultArgs)+2+len(extraArgs)+len(bucket.Files))
	args = append(args, defaultArgs...)
	if bucket.ConfigFile != "" {
		args = append(args, "--config-file", bucket.ConfigFile)
	}
	args = append(args, extraArgs...)
	return append(args, bucket.Files...)
}

// environment returns the environment to run the given executable in.
// If it's installed in a virtualenv, that's activated.
func (r *Runner) environment(executable string) core.Env {
	env := r.env.Copy()
	if root := core.EnvironmentRootForExecutable(executable); root != "" {
		env.ActivateEnvironment(root, filepath.Dir(executable))
	}
	return env
}

// Run runs mypy once over all the files in a bucket, from the given directory, and returns the
// issues it reports.
// Exit codes 0 and 1 are normal. Anything else is an error only if mypy didn't report any issues,
// since it exits with 2 on things like syntax errors while still reporting them properly.
// If the context is cancelled, its error is returned unwrapped.
func (r *Runner) Run(ctx context.Context, bucket *core.Bucket, workDir string, extraArgs []string) (issues []core.Issue, err error) {
	ctx, span := tracer.Start(ctx, "mypy.Run", trace.WithAttributes(
		attribute.String("mypy.executable", bucket.Executable),
		attribute.String("mypy.config_file", bucket.ConfigFile),
		attribute.Int("mypy.files", len(bucket.Files)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("mypy.issues", len(issues)))
		span.End()
	}()

	argv := append([]string{bucket.Executable}, Args(bucket, extraArgs)...)
	env := r.environment(bucket.Executable)
	log.Info("Running command: %s", shellescape.QuoteCommand(argv))
	log.Debug("Environment: %s", env)

	progressCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go process.LogProgress(progressCtx, fmt.Sprintf("running %s on %d files", bucket.Executable, len(bucket.Files)))

	result, err := r.executor.Exec(ctx, process.Command{
		Argv:      argv,
		Dir:       workDir,
		Env:       env.ToSlice(),
		Timeout:   r.opts.Timeout,
		MaxStderr: r.opts.MaxStderr,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &core.ToolExecutionError{Executable: bucket.Executable, ExitCode: -1, Err: err}
	}
	span.SetAttributes(attribute.Int("mypy.exit_code", result.ExitCode))

	issues, err = Parse(bytes.NewReader(result.Stdout))
	if err != nil {
		return nil, err
	}
	log.Info("%s took %s to run on %d files and found %d issues", bucket.Executable, result.Duration.Round(time.Millisecond), len(bucket.Files), len(issues))
	if result.ExitCode != 0 && result.ExitCode != 1 {
		if len(issues) == 0 {
			return nil, &core.ToolExecutionError{
				Executable: bucket.Executable,
				ExitCode:   result.ExitCode,
				Stderr:     strings.TrimSpace(string(result.Stderr)),
			}
		}
		log.Info("%s returned %d, but also reported issues", bucket.Executable, result.ExitCode)
	}
	return issues, nil
}
