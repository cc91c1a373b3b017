package toolchain

import (
	"os/exec"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/mypyrun/mypyrun/src/core"
	"github.com/mypyrun/mypyrun/src/fs"
)

// FindExecutable returns the mypy to use for the project when none has been configured explicitly.
// If the interpreter is in a virtualenv we only look there; otherwise we search the PATH.
// It returns the empty string if nothing is found.
func FindExecutable(configured, interpreter string) string {
	if configured != "" {
		return configured
	}
	if core.IsVirtualenvInterpreter(interpreter) {
		if exe := filepath.Join(filepath.Dir(interpreter), core.CheckerExecutableName); fs.FileExists(exe) {
			return exe
		}
		log.Debug("Interpreter %s is in a virtualenv without %s", interpreter, core.CheckerName)
		return ""
	}
	path, err := exec.LookPath(core.CheckerName)
	if err != nil {
		log.Debug("%s not found on PATH: %s", core.CheckerName, err)
		return ""
	}
	log.Info("Detected %s at %s", core.CheckerName, path)
	return path
}

// ConfigFileIn returns the mypy config file in the given directory, or the empty string if
// there isn't one. A pyproject.toml only counts if it has a [tool.mypy] section.
func ConfigFileIn(dir string) string {
	for _, name := range core.CheckerConfigFileNames {
		path := filepath.Join(dir, name)
		if !fs.FileExists(path) {
			continue
		} else if filepath.Ext(name) != ".toml" || hasMypySection(path) {
			return path
		}
	}
	return ""
}

func hasMypySection(path string) bool {
	var doc map[string]interface{}
	meta, err := toml.DecodeFile(path, &doc)
	if err != nil {
		log.Warning("Failed to parse %s: %s", path, err)
		return false
	}
	return meta.IsDefined("tool", core.CheckerName)
}
