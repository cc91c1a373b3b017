package core

import (
	"path/filepath"

	"github.com/mypyrun/mypyrun/src/cli/logging"
	"github.com/mypyrun/mypyrun/src/fs"
)

var log = logging.Log

// activateScriptName is the script a virtualenv places next to its interpreter.
var activateScriptName = activateScript()

func activateScript() string {
	if exeSuffix() != "" {
		return "activate.bat"
	}
	return "activate"
}

// IsVirtualenvInterpreter returns true if the given interpreter belongs to a virtualenv,
// which we detect by the activate script that lives alongside it.
func IsVirtualenvInterpreter(interpreter string) bool {
	return interpreter != "" && fs.FileExists(filepath.Join(filepath.Dir(interpreter), activateScriptName))
}

// EnvironmentRootForExecutable returns the root of the virtualenv the given executable is
// installed into, or the empty string if it isn't in one.
func EnvironmentRootForExecutable(executable string) string {
	if !IsVirtualenvInterpreter(executable) {
		return ""
	}
	return filepath.Dir(filepath.Dir(executable))
}

// FindRepoRoot walks up from the given directory looking for a directory that identifies a project
// root: one containing a .mypyrunconfig or, failing that, a mypy config or a .git directory.
// It returns the starting directory if nothing is found.
func FindRepoRoot(dir string) string {
	for d := dir; ; {
		if fs.FileExists(filepath.Join(d, ConfigFileName)) {
			return d
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	for d := dir; ; {
		if fs.PathExists(filepath.Join(d, ".git")) {
			return d
		}
		for _, name := range CheckerConfigFileNames {
			if fs.FileExists(filepath.Join(d, name)) {
				return d
			}
		}
		parent := filepath.Dir(d)
		if parent == d {
			return dir
		}
		d = parent
	}
}
