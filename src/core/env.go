package core

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Names of environment variables that matter to a Python toolchain.
const (
	EnvVirtualEnv = "VIRTUAL_ENV"
	EnvPath       = "PATH"
	EnvPythonHome = "PYTHONHOME"
)

// An Env is a set of environment variables for a subprocess that also knows how to log itself.
type Env map[string]string

// InheritedEnv returns an Env containing this process' environment.
func InheritedEnv() Env {
	return NewEnv(os.Environ())
}

// NewEnv builds an Env from a list of KEY=VALUE pairs, as returned by os.Environ.
func NewEnv(vars []string) Env {
	env := make(Env, len(vars))
	for _, v := range vars {
		if k, v, found := strings.Cut(v, "="); found && k != "" {
			env[k] = v
		}
	}
	return env
}

// ActivateEnvironment modifies this Env so subprocesses run as though the given virtualenv
// had been activated: VIRTUAL_ENV points at it, its binaries come first on the PATH and any
// inherited PYTHONHOME (which would point the interpreter at a different stdlib) is removed.
func (env Env) ActivateEnvironment(root, binDir string) {
	env[EnvVirtualEnv] = root
	if path, present := env[EnvPath]; present && path != "" {
		env[EnvPath] = binDir + string(os.PathListSeparator) + path
	} else {
		env[EnvPath] = binDir
	}
	delete(env, EnvPythonHome)
}

// Redacted implements the interface for our logging implementation.
func (env Env) Redacted() interface{} {
	r := make(Env, len(env))
	for k, v := range env {
		if strings.Contains(k, "SECRET") || strings.Contains(k, "PASSWORD") || strings.Contains(k, "TOKEN") {
			v = "************"
		}
		r[k] = v
	}
	return r
}

// ToSlice converts this env into a list of env vars
func (env Env) ToSlice() []string {
	ret := make([]string, 0, len(env))
	for k, v := range env {
		ret = append(ret, k+"="+v)
	}
	sort.Strings(ret)
	return ret
}

// String implements the fmt.Stringer interface
func (env Env) String() string {
	return strings.Join(env.ToSlice(), "\n")
}

// Add adds the given set of environment variables to this one, overwriting on duplicates.
func (env Env) Add(that Env) {
	for k, v := range that {
		env[k] = v
	}
}

// Copy returns a shallow copy of this Env.
func (env Env) Copy() Env {
	ret := make(Env, len(env))
	ret.Add(env)
	return ret
}

// EnvironmentBinDir returns the directory within a virtualenv that holds its executables.
func EnvironmentBinDir(root string) string {
	if exeSuffix() != "" {
		return filepath.Join(root, "Scripts")
	}
	return filepath.Join(root, "bin")
}
