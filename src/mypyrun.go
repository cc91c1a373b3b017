package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mypyrun/mypyrun/src/cli"
	"github.com/mypyrun/mypyrun/src/cli/logging"
	"github.com/mypyrun/mypyrun/src/core"
	"github.com/mypyrun/mypyrun/src/fs"
	"github.com/mypyrun/mypyrun/src/metrics"
	"github.com/mypyrun/mypyrun/src/mypy"
	"github.com/mypyrun/mypyrun/src/notify"
	"github.com/mypyrun/mypyrun/src/process"
	"github.com/mypyrun/mypyrun/src/report"
	"github.com/mypyrun/mypyrun/src/scan"
	"github.com/mypyrun/mypyrun/src/toolchain"
	"github.com/mypyrun/mypyrun/src/tracing"
	"github.com/mypyrun/mypyrun/src/venv"
	"github.com/mypyrun/mypyrun/src/watch"
)

var log = logging.Log

// Exit codes.
const (
	exitClean     = 0
	exitIssues    = 1
	exitFailure   = 2
	exitCancelled = 130
)

var opts = struct {
	Usage        string
	Verbosity    cli.Verbosity     `short:"v" long:"verbosity" default:"warning" description:"Verbosity of output (error, warning, notice, info, debug)"`
	LogFile      cli.Filepath      `long:"log_file" description:"File to echo full logging output to"`
	LogFileLevel cli.Verbosity     `long:"log_file_level" default:"debug" description:"Log level for file output"`
	RepoRoot     cli.Filepath      `short:"r" long:"repo_root" description:"Root of the project. Defaults to the nearest directory above the working directory with a .mypyrunconfig."`
	Version      bool              `long:"version" description:"Print the version of the tool"`
	Override     map[string]string `short:"o" long:"override" key-value-delimiter:"=" description:"Options to override from .mypyrunconfig (e.g. -o checker.numthreads=4)"`
	TraceFile    string            `long:"trace_file" description:"File to write tracing spans to, as JSON"`
	Check        bool              `long:"check" description:"Only check that mypy can be run, then exit"`
	Watch        bool              `short:"w" long:"watch" description:"Keep watching the files and rescan whenever they change"`

	Checker struct {
		Mypy         string       `long:"mypy" description:"Path to the mypy executable"`
		ConfigFile   string       `long:"config_file" description:"mypy config file to use for files outside any environment"`
		Args         string       `long:"args" description:"Extra arguments to pass to mypy"`
		Autodetect   bool         `long:"autodetect" description:"Look for pipenv environments governing each file"`
		NoAutodetect bool         `long:"no_autodetect" description:"Don't look for pipenv environments; use the project mypy for everything"`
		NumThreads   int          `short:"n" long:"num_threads" description:"Number of mypy processes to run at once"`
		Timeout      cli.Duration `long:"timeout" description:"Timeout for each mypy run"`
	} `group:"Options controlling how mypy is run"`

	Display struct {
		Format   string `short:"f" long:"format" description:"Output format (text, json or github)"`
		Colour   bool   `long:"colour" description:"Forces coloured output"`
		NoColour bool   `long:"nocolour" description:"Forces colourless output"`
	} `group:"Options controlling output"`

	Args struct {
		Files cli.StdinStrings `positional-arg-name:"files" description:"Python files or directories to check. Pass - to read them from stdin."`
	} `positional-args:"true"`
}{
	Usage: `
mypyrun runs mypy over a set of Python files and reports what it finds.

Files are grouped by the pipenv environment that governs them, so each file is checked with
the mypy (and mypy.ini) of its own environment; files outside any environment use the
project's mypy. Directories are expanded to the .py files beneath them.

It exits with 0 if no errors were found, 1 if there were and 2 if mypy couldn't be run.
`,
}

func main() {
	os.Exit(run())
}

func run() int {
	cli.ParseFlagsOrDie("mypyrun", &opts)
	cli.InitLogging(opts.Verbosity)
	if opts.LogFile != "" {
		cli.InitFileLogging(string(opts.LogFile), opts.LogFileLevel, false)
	}
	if opts.Version {
		fmt.Printf("mypyrun version %s\n", core.Version)
		return exitClean
	}

	repoRoot, err := findRepoRoot()
	if err != nil {
		log.Error("%s", err)
		return exitFailure
	}
	config, err := readConfig(repoRoot)
	if err != nil {
		log.Error("%s", err)
		return exitFailure
	}

	shutdown, err := tracing.Init(opts.TraceFile, core.Version.String())
	if err != nil {
		log.Error("Failed to initialise tracing: %s", err)
		return exitFailure
	}
	defer shutdown(context.Background())

	m := metrics.New(config.Metrics.PushGatewayURL.String(), time.Duration(config.Metrics.PushTimeout))
	defer m.Push()

	interpreter := core.AbsPath(repoRoot, config.Checker.Interpreter)
	tc, err := config.Toolchain(repoRoot, toolchain.FindExecutable(core.AbsPath(repoRoot, config.Checker.Path), interpreter))
	if err != nil {
		log.Error("%s", err)
		return exitFailure
	}
	executor := process.New()
	runner := mypy.NewRunner(executor, mypy.Options{
		Timeout:         time.Duration(config.Checker.Timeout),
		ValidateTimeout: time.Duration(config.Checker.ValidateTimeout),
		MaxStderr:       int(config.Checker.MaxStderr),
	})
	prober := venv.NewProbe(executor, config.Sandbox.Tool, config.Sandbox.MaxDepth, time.Duration(config.Sandbox.Timeout))
	scanner := scan.New(tc, runner, prober, notify.NewLogNotifier(), m, scan.Options{
		NumThreads:          config.Checker.NumThreads,
		IsolateSpecialFiles: config.Checker.IsolateSpecialFiles,
		Version:             config.Checker.Version,
	})

	ctx, cancel := cli.CancelOnInterrupt(context.Background())
	defer cancel()

	if opts.Check {
		return check(ctx, scanner)
	}

	paths := opts.Args.Files.Get()
	code := scanAndReport(ctx, scanner, config, paths)
	if code == exitCancelled {
		logCancelled(ctx)
		return code
	} else if !opts.Watch {
		return code
	}
	w, err := watch.New(paths, ".py")
	if err != nil {
		log.Error("%s", err)
		return exitFailure
	}
	defer w.Close()
	log.Notice("Watching for changes...")
	if err := w.Run(ctx, func(scanCtx context.Context, changed []string) {
		if scanAndReport(scanCtx, scanner, config, paths) == exitCancelled {
			logCancelled(ctx)
		}
	}); err != nil {
		log.Error("%s", err)
		return exitFailure
	}
	return exitClean
}

// scanAndReport scans the files under the given paths and prints what was found.
// It returns the exit code appropriate to the result.
func scanAndReport(ctx context.Context, scanner *scan.Scanner, config *core.Configuration, paths []string) int {
	files, err := fs.SourceFiles(paths, ".py")
	if err != nil {
		log.Error("Failed to expand source files: %s", err)
		return exitFailure
	}
	start := time.Now()
	issues, err := scanner.Scan(ctx, files)
	if core.IsCancelled(err) {
		return exitCancelled
	} else if err != nil {
		log.Error("%s", err)
		return exitFailure
	}
	log.Info("Checked %d files in %s", len(files), time.Since(start).Round(time.Millisecond))
	if err := report.Print(os.Stdout, config.Display.Format, issues, len(files), config.Display.Colour); err != nil {
		log.Error("Failed to write report: %s", err)
		return exitFailure
	}
	if errors, _ := report.ErrorCount(issues); errors > 0 {
		return exitIssues
	}
	return exitClean
}

// logCancelled reports a cancelled scan. If the given context is still live, the scan was
// superseded by newer changes rather than interrupted.
func logCancelled(ctx context.Context) {
	if ctx.Err() != nil {
		log.Warning("Interrupted")
	} else {
		log.Debug("Scan cancelled by newer changes")
	}
}

// check runs only the availability check.
func check(ctx context.Context, scanner *scan.Scanner) int {
	available, err := scanner.Available(ctx)
	if core.IsCancelled(err) {
		return exitCancelled
	} else if err != nil {
		log.Error("%s", err)
		return exitFailure
	} else if !available {
		log.Error("mypy is not available")
		return exitFailure
	}
	log.Notice("mypy is available")
	return exitClean
}

func findRepoRoot() (string, error) {
	if opts.RepoRoot != "" {
		root, err := filepath.Abs(string(opts.RepoRoot))
		if err != nil {
			return "", err
		} else if !fs.IsDirectory(root) {
			return "", core.NewConfigurationError("Repo root %s is not a directory", root)
		}
		return root, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("couldn't determine working directory: %w", err)
	}
	return core.FindRepoRoot(wd), nil
}

// readConfig reads the config files for the given root and applies any command-line overrides.
func readConfig(repoRoot string) (*core.Configuration, error) {
	config, err := core.ReadConfigFiles(core.ConfigFiles(repoRoot))
	if err != nil {
		return nil, fmt.Errorf("Error reading config file: %w", err)
	}
	if err := config.ApplyOverrides(opts.Override); err != nil {
		return nil, err
	}
	applyFlags(config)
	return config, config.Validate()
}

func applyFlags(config *core.Configuration) {
	if opts.Checker.Mypy != "" {
		config.Checker.Path = opts.Checker.Mypy
	}
	if opts.Checker.ConfigFile != "" {
		config.Checker.ConfigFile = opts.Checker.ConfigFile
	}
	if opts.Checker.Args != "" {
		config.Checker.Arguments = opts.Checker.Args
	}
	if opts.Checker.Autodetect {
		config.Checker.AutodetectEnvironments = true
	} else if opts.Checker.NoAutodetect {
		config.Checker.AutodetectEnvironments = false
	}
	if opts.Checker.NumThreads != 0 {
		config.Checker.NumThreads = opts.Checker.NumThreads
	}
	if opts.Checker.Timeout != 0 {
		config.Checker.Timeout = opts.Checker.Timeout
	}
	if opts.Display.Format != "" {
		config.Display.Format = opts.Display.Format
	}
	if opts.Display.Colour {
		config.Display.Colour = true
	} else if opts.Display.NoColour {
		config.Display.Colour = false
	}
}
