package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mypyrun/mypyrun/src/cli"
	"github.com/mypyrun/mypyrun/src/core"
	"github.com/mypyrun/mypyrun/src/mypy"
	"github.com/mypyrun/mypyrun/src/process"
	"github.com/mypyrun/mypyrun/src/venv"
)

// fakeRunner reports one note per file, with the executable as the message.
type fakeRunner struct {
	valid     bool
	version   string
	runErr    error
	delays    map[string]time.Duration
	mutex     sync.Mutex
	validated []string
	runs      []*core.Bucket
}

func (r *fakeRunner) Validate(ctx context.Context, executable string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.validated = append(r.validated, executable)
	return r.valid
}

func (r *fakeRunner) Version(ctx context.Context, executable string) (*semver.Version, error) {
	return semver.NewVersion(r.version)
}

func (r *fakeRunner) Run(ctx context.Context, bucket *core.Bucket, workDir string, extraArgs []string) ([]core.Issue, error) {
	r.mutex.Lock()
	r.runs = append(r.runs, bucket)
	r.mutex.Unlock()
	time.Sleep(r.delays[bucket.Executable])
	if r.runErr != nil {
		return nil, r.runErr
	}
	issues := make([]core.Issue, len(bucket.Files))
	for i, file := range bucket.Files {
		issues[i] = core.Issue{Path: file, Line: 1, Severity: core.Note, Message: bucket.Executable}
	}
	return issues, nil
}

type fakeNotifier struct {
	noInterpreter  int
	installChecker []string
	abnormal       []string
}

func (n *fakeNotifier) NoInterpreter()                    { n.noInterpreter++ }
func (n *fakeNotifier) InstallChecker(interpreter string) { n.installChecker = append(n.installChecker, interpreter) }
func (n *fakeNotifier) AbnormalExit(detail string)        { n.abnormal = append(n.abnormal, detail) }

type fakeProber map[string]venv.Environment

func (p fakeProber) Probe(ctx context.Context, dir string) (venv.Environment, error) {
	return p[dir], nil
}

func projectConfig(autodetect bool) core.ToolchainConfig {
	return core.ToolchainConfig{
		RepoRoot:               "/",
		ProjectExecutable:      "/project/mypy",
		AutodetectEnvironments: autodetect,
	}
}

func TestScanEmpty(t *testing.T) {
	runner := &fakeRunner{valid: true}
	s := New(projectConfig(false), runner, fakeProber{}, &fakeNotifier{}, nil, Options{})
	_, err := s.Scan(context.Background(), nil)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
	assert.Equal(t, 0, len(runner.validated), "should not have run anything")
	assert.Equal(t, 0, len(runner.runs))
}

func TestScanUnavailableNoInterpreter(t *testing.T) {
	files := writeFiles(t, t.TempDir(), "a.py")
	runner := &fakeRunner{valid: false}
	notifier := &fakeNotifier{}
	s := New(projectConfig(false), runner, fakeProber{}, notifier, nil, Options{})
	issues, err := s.Scan(context.Background(), files)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(issues))
	assert.Equal(t, 1, notifier.noInterpreter)
	assert.Equal(t, 0, len(runner.runs))
}

func TestScanUnavailableInstallChecker(t *testing.T) {
	dir := t.TempDir()
	files := writeFiles(t, dir, "a.py", "bin/python3")
	config := projectConfig(false)
	config.ProjectExecutable = ""
	config.Interpreter = files[1]
	runner := &fakeRunner{valid: true}
	notifier := &fakeNotifier{}
	issues, err := New(config, runner, fakeProber{}, notifier, nil, Options{}).Scan(context.Background(), files[:1])
	assert.NoError(t, err)
	assert.Equal(t, 0, len(issues))
	assert.Equal(t, []string{files[1]}, notifier.installChecker)
	assert.Equal(t, 0, len(runner.validated), "nothing to validate without an executable")
}

func TestScanMergesInBucketOrder(t *testing.T) {
	root := t.TempDir()
	venvRoot := filepath.Join(root, "venv")
	envMypy := writeFiles(t, venvRoot, "bin/mypy")[0]
	files := writeFiles(t, root, "plain/a.py", "env/b.py", "plain/c.py", "env/d.py")
	prober := fakeProber{filepath.Join(root, "env"): {Root: venvRoot}}
	runner := &fakeRunner{
		valid: true,
		// The first bucket finishes last.
		delays: map[string]time.Duration{"/project/mypy": 100 * time.Millisecond},
	}
	s := New(projectConfig(true), runner, prober, &fakeNotifier{}, nil, Options{NumThreads: 4})
	issues, err := s.Scan(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, []core.Issue{
		{Path: files[0], Line: 1, Severity: core.Note, Message: "/project/mypy"},
		{Path: files[2], Line: 1, Severity: core.Note, Message: "/project/mypy"},
		{Path: files[1], Line: 1, Severity: core.Note, Message: envMypy},
		{Path: files[3], Line: 1, Severity: core.Note, Message: envMypy},
	}, issues)
	assert.Equal(t, []string{"/project/mypy"}, runner.validated)
}

func TestScanIsolatesSpecialFiles(t *testing.T) {
	files := writeFiles(t, t.TempDir(), "pkg/__init__.py", "pkg/mod.py")
	runner := &fakeRunner{valid: true}
	s := New(projectConfig(false), runner, fakeProber{}, &fakeNotifier{}, nil, Options{IsolateSpecialFiles: true})
	issues, err := s.Scan(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 3, len(issues))
	assert.Equal(t, files[0], issues[0].Path)
	assert.Equal(t, files[0], issues[1].Path)
	assert.Equal(t, files[1], issues[2].Path)
}

func TestScanToolExecutionError(t *testing.T) {
	files := writeFiles(t, t.TempDir(), "a.py")
	runner := &fakeRunner{valid: true, runErr: &core.ToolExecutionError{Executable: "/project/mypy", ExitCode: 2, Stderr: "bang"}}
	notifier := &fakeNotifier{}
	_, err := New(projectConfig(false), runner, fakeProber{}, notifier, nil, Options{}).Scan(context.Background(), files)
	var toolErr *core.ToolExecutionError
	assert.True(t, errors.As(err, &toolErr))
	assert.Equal(t, []string{"bang"}, notifier.abnormal)
}

func TestScanBadArguments(t *testing.T) {
	files := writeFiles(t, t.TempDir(), "a.py")
	config := projectConfig(false)
	config.ExtraArguments = `--strict "unterminated`
	_, err := New(config, &fakeRunner{valid: true}, fakeProber{}, &fakeNotifier{}, nil, Options{}).Scan(context.Background(), files)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestScanVersionGate(t *testing.T) {
	files := writeFiles(t, t.TempDir(), "a.py")
	v, err := cli.NewVersion(">=1.0.0")
	require.NoError(t, err)
	runner := &fakeRunner{valid: true, version: "0.910.0"}
	_, err = New(projectConfig(false), runner, fakeProber{}, &fakeNotifier{}, nil, Options{Version: *v}).Scan(context.Background(), files)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
	assert.Equal(t, 0, len(runner.runs))

	runner.version = "1.8.0"
	_, err = New(projectConfig(false), runner, fakeProber{}, &fakeNotifier{}, nil, Options{Version: *v}).Scan(context.Background(), files)
	assert.NoError(t, err)
}

// writeMypy writes a fake mypy that answers -V and otherwise runs the given shell snippet.
func writeMypy(t *testing.T, script string) string {
	path := filepath.Join(t.TempDir(), "mypy")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n[ \"$1\" = \"-V\" ] && echo 'mypy 1.8.0' && exit 0\n"+script+"\n"), 0755))
	return path
}

func newRealScanner(exe string) *Scanner {
	runner := mypy.NewRunner(process.New(), mypy.Options{Timeout: 10 * time.Second, ValidateTimeout: 10 * time.Second})
	config := core.ToolchainConfig{RepoRoot: os.TempDir(), ProjectExecutable: exe}
	return New(config, runner, fakeProber{}, &fakeNotifier{}, nil, Options{})
}

func TestScanExitTwoWithIssues(t *testing.T) {
	files := writeFiles(t, t.TempDir(), "a.py")
	exe := writeMypy(t, `echo "$4:1:1: error: invalid syntax  [syntax]"; exit 2`)
	issues, err := newRealScanner(exe).Scan(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, []core.Issue{{Path: files[0], Line: 1, Column: 0, Severity: core.Error, Message: "invalid syntax  [syntax]"}}, issues)
}

func TestScanCancelled(t *testing.T) {
	files := writeFiles(t, t.TempDir(), "a.py")
	exe := writeMypy(t, `sleep 10; exit 3`)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err := newRealScanner(exe).Scan(ctx, files)
	assert.True(t, core.IsCancelled(err))
	var toolErr *core.ToolExecutionError
	assert.False(t, errors.As(err, &toolErr))
	assert.Less(t, time.Since(start), 5*time.Second)
}
