package toolchain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindExecutableConfigured(t *testing.T) {
	assert.Equal(t, "tools/mypy", FindExecutable("tools/mypy", "/usr/bin/python3"))
}

func TestFindExecutableVirtualenv(t *testing.T) {
	root := t.TempDir()
	python := touch(t, filepath.Join(root, "bin", "python"))
	touch(t, filepath.Join(root, "bin", "activate"))
	assert.Equal(t, "", FindExecutable("", python), "no mypy in the virtualenv")
	exe := touch(t, filepath.Join(root, "bin", "mypy"))
	assert.Equal(t, exe, FindExecutable("", python))
}

func TestFindExecutablePath(t *testing.T) {
	dir := t.TempDir()
	exe := touch(t, filepath.Join(dir, "mypy"))
	t.Setenv("PATH", dir)
	assert.Equal(t, exe, FindExecutable("", ""))
	assert.Equal(t, exe, FindExecutable("", "/usr/bin/python3"), "interpreter outside a virtualenv falls back to the PATH")
	t.Setenv("PATH", t.TempDir())
	assert.Equal(t, "", FindExecutable("", ""))
}

func TestConfigFileIn(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", ConfigFileIn(dir))

	pyproject := filepath.Join(dir, "pyproject.toml")
	require.NoError(t, os.WriteFile(pyproject, []byte("[tool.black]\nline-length = 100\n"), 0644))
	assert.Equal(t, "", ConfigFileIn(dir), "pyproject.toml without a mypy section doesn't count")

	require.NoError(t, os.WriteFile(pyproject, []byte("[tool.mypy]\nstrict = true\n"), 0644))
	assert.Equal(t, pyproject, ConfigFileIn(dir))

	hidden := touch(t, filepath.Join(dir, ".mypy.ini"))
	assert.Equal(t, hidden, ConfigFileIn(dir))

	ini := touch(t, filepath.Join(dir, "mypy.ini"))
	assert.Equal(t, ini, ConfigFileIn(dir))
}

func TestConfigFileInBadToml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte("[tool.mypy\n"), 0644))
	assert.Equal(t, "", ConfigFileIn(dir))
}
