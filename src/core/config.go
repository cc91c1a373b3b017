// Utilities for reading the mypyrun config files.

package core

import (
	"encoding"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/please-build/gcfg"

	"github.com/mypyrun/mypyrun/src/cli"
	"github.com/mypyrun/mypyrun/src/fs"
)

// ConfigFileName is the file name for the typical repo config - this is normally checked in
const ConfigFileName string = ".mypyrunconfig"

// LocalConfigFileName is the file name for the local repo config - this is not normally checked in and used to
// override settings on the local machine.
const LocalConfigFileName string = ".mypyrunconfig.local"

// MachineConfigFileName is the file name for the machine-level config - can use this to override things
// for a particular machine (eg. CI workers with a shared mypy install).
const MachineConfigFileName = "/etc/mypyrunconfig"

// CheckerName is the name of the checker we drive, both as a package and as an executable.
const CheckerName = "mypy"

// CheckerExecutableName is the file name of the checker executable on this platform.
var CheckerExecutableName = CheckerName + exeSuffix()

// CheckerConfigFileNames are the config files the checker reads by itself, in the order it looks for them.
var CheckerConfigFileNames = []string{"mypy.ini", ".mypy.ini", "pyproject.toml"}

// Formats are the output formats we know how to print.
var Formats = []string{"text", "json", "github"}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// A Configuration contains all the settings that can be configured about mypyrun.
// This is parsed from .mypyrunconfig etc; we use gcfg to parse it into this struct.
type Configuration struct {
	Checker struct {
		Path                   string       `help:"Path to the mypy executable. If unset it is discovered from the interpreter or the PATH."`
		ConfigFile             string       `help:"Project-wide mypy config file, relative to the repo root."`
		Arguments              string       `help:"Extra arguments passed to every mypy invocation. Split using shell quoting rules."`
		Interpreter            string       `help:"The Python interpreter for the project. Used to find mypy when no path is given."`
		AutodetectEnvironments bool         `help:"Look for a pipenv environment governing each file and prefer its mypy and mypy.ini."`
		IsolateSpecialFiles    bool         `help:"Additionally check __init__.py, __main__.py and setup.py on their own."`
		Version                cli.Version  `help:"Minimum mypy version required, e.g. >=1.0.0"`
		Timeout                cli.Duration `help:"Timeout for a single mypy invocation. 0 disables it."`
		ValidateTimeout        cli.Duration `help:"Timeout for checking that mypy is runnable."`
		NumThreads             int          `help:"Number of mypy invocations to run concurrently."`
		MaxStderr              cli.ByteSize `help:"Maximum amount of stderr retained when mypy fails."`
	}
	Sandbox struct {
		Tool     string       `help:"The sandbox manager queried for per-directory environments."`
		MaxDepth int          `help:"Search depth passed to the sandbox manager (PIPENV_MAX_DEPTH)."`
		Timeout  cli.Duration `help:"Timeout for each sandbox manager query."`
	}
	Metrics struct {
		PushGatewayURL cli.URL      `help:"Prometheus pushgateway to send scan metrics to. Metrics are disabled if unset."`
		PushTimeout    cli.Duration `help:"Timeout for pushing metrics."`
	}
	Display struct {
		Format string `help:"Output format; one of text, json or github."`
		Colour bool   `help:"Colourise text output."`
	}
}

// DefaultConfiguration returns the default configuration object with no overrides.
func DefaultConfiguration() *Configuration {
	config := Configuration{}
	config.Checker.AutodetectEnvironments = true
	config.Checker.Timeout = cli.Duration(10 * time.Minute)
	config.Checker.ValidateTimeout = cli.Duration(30 * time.Second)
	config.Checker.NumThreads = 1
	config.Checker.MaxStderr = 64 * 1024
	config.Sandbox.Tool = "pipenv"
	config.Sandbox.MaxDepth = 100 // pipenv only looks 3 directories up by default
	config.Sandbox.Timeout = cli.Duration(30 * time.Second)
	config.Metrics.PushTimeout = cli.Duration(2 * time.Second)
	config.Display.Format = "text"
	config.Display.Colour = cli.StdOutIsATerminal
	return &config
}

func readConfigFile(config *Configuration, filename string) error {
	log.Debug("Attempting to read config from %s...", filename)
	if err := gcfg.ReadFileInto(config, filename); err != nil && os.IsNotExist(err) {
		return nil // It's not an error to not have the file at all.
	} else if err != nil {
		return err
	}
	log.Debug("Read config from %s", filename)
	return nil
}

// ConfigFiles returns the config files that would be read for the given repo root, in order.
func ConfigFiles(repoRoot string) []string {
	return []string{
		MachineConfigFileName,
		filepath.Join(repoRoot, ConfigFileName),
		filepath.Join(repoRoot, LocalConfigFileName),
	}
}

// ReadConfigFiles reads config files from the given locations, in order.
// Values are filled in by defaults initially and then overridden by each file in turn.
func ReadConfigFiles(filenames []string) (*Configuration, error) {
	config := DefaultConfiguration()
	for _, filename := range filenames {
		if err := readConfigFile(config, filename); err != nil {
			return config, err
		}
	}
	return config, nil
}

// Validate checks the configuration for values that can never work.
// All problems are reported together.
func (config *Configuration) Validate() error {
	var errs *multierror.Error
	if config.Checker.NumThreads < 1 {
		errs = multierror.Append(errs, NewConfigurationError("checker.numthreads must be at least 1, was %d", config.Checker.NumThreads))
	}
	if config.Checker.Timeout < 0 || config.Checker.ValidateTimeout < 0 || config.Sandbox.Timeout < 0 {
		errs = multierror.Append(errs, NewConfigurationError("timeouts cannot be negative"))
	}
	if config.Sandbox.MaxDepth < 0 {
		errs = multierror.Append(errs, NewConfigurationError("sandbox.maxdepth cannot be negative"))
	}
	if config.Checker.AutodetectEnvironments && config.Sandbox.Tool == "" {
		errs = multierror.Append(errs, NewConfigurationError("sandbox.tool must be set when checker.autodetectenvironments is on"))
	}
	if !cli.ContainsString(config.Display.Format, Formats) {
		errs = multierror.Append(errs, NewConfigurationError("Unknown output format %s%s", config.Display.Format, cli.PrettyPrintSuggestion(config.Display.Format, Formats, 3)))
	}
	return errs.ErrorOrNil()
}

// Toolchain returns the project-wide toolchain settings, with the given executable (which is
// typically the result of discovery rather than what was configured) and relative paths made
// absolute against the repo root.
func (config *Configuration) Toolchain(repoRoot, executable string) (ToolchainConfig, error) {
	tc := ToolchainConfig{
		RepoRoot:               repoRoot,
		ProjectExecutable:      AbsPath(repoRoot, executable),
		Interpreter:            AbsPath(repoRoot, config.Checker.Interpreter),
		ExtraArguments:         config.Checker.Arguments,
		AutodetectEnvironments: config.Checker.AutodetectEnvironments,
	}
	if config.Checker.ConfigFile != "" {
		tc.ProjectConfigFile = AbsPath(repoRoot, config.Checker.ConfigFile)
		if !fs.FileExists(tc.ProjectConfigFile) {
			return tc, NewConfigurationError("mypy config file %s is not valid. File does not exist or can't be read.", tc.ProjectConfigFile)
		}
	}
	if !tc.AutodetectEnvironments && tc.ProjectExecutable == "" {
		return tc, NewConfigurationError("Path to mypy executable not set (check checker.path in %s)", ConfigFileName)
	}
	return tc, nil
}

// ApplyOverrides applies a set of overrides to the config.
// The keys of the given map are dot notation for the config setting.
func (config *Configuration) ApplyOverrides(overrides map[string]string) error {
	match := func(s1 string) func(string) bool {
		return func(s2 string) bool {
			return strings.ToLower(s2) == s1
		}
	}
	elem := reflect.ValueOf(config).Elem()
	for k, v := range overrides {
		split := strings.Split(strings.ToLower(k), ".")
		if len(split) != 2 {
			return fmt.Errorf("Bad option format: %s", k)
		}
		field := elem.FieldByNameFunc(match(split[0]))
		if !field.IsValid() {
			return fmt.Errorf("Unknown config field: %s", split[0])
		} else if field.Kind() != reflect.Struct {
			return fmt.Errorf("Unsettable config field: %s", split[0])
		}
		field = field.FieldByNameFunc(match(split[1]))
		if !field.IsValid() {
			return fmt.Errorf("Unknown config field: %s", split[1])
		}
		if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			if err := u.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("Invalid value for %s: %s", k, err)
			}
			continue
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(v)
		case reflect.Bool:
			v = strings.ToLower(v)
			// Mimics the set of truthy things gcfg accepts in our config file.
			field.SetBool(v == "true" || v == "yes" || v == "on" || v == "1")
		case reflect.Int:
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("Invalid value for an integer field: %s", v)
			}
			field.SetInt(int64(i))
		default:
			return fmt.Errorf("Can't override config field %s", k)
		}
	}
	return nil
}

// A ToolchainConfig is the project-wide toolchain that applies to files not governed by any
// other environment. It is fixed for the duration of a scan.
type ToolchainConfig struct {
	// RepoRoot is the project root; mypy is always run from here.
	RepoRoot string
	// ProjectExecutable is the absolute path to the project's mypy.
	ProjectExecutable string
	// ProjectConfigFile is the absolute path to the project's mypy config, or empty.
	ProjectConfigFile string
	// Interpreter is the project's Python interpreter, if one is configured.
	Interpreter string
	// ExtraArguments are passed on every invocation, shell-quoted.
	ExtraArguments string
	// AutodetectEnvironments enables per-directory environment probing.
	AutodetectEnvironments bool
}

// AbsPath returns the given path made absolute relative to the given root.
// Empty paths are returned unchanged.
func AbsPath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
