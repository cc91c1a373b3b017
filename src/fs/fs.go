// Package fs provides various filesystem helpers.
package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// PathExists returns true if the given path exists, as a file or a directory.
func PathExists(filename string) bool {
	_, err := os.Lstat(filename)
	return err == nil
}

// FileExists returns true if the given path exists and is a file.
// Symlinks are followed, since virtualenvs routinely symlink their interpreters.
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// IsDirectory checks if a given path is a directory
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsExecutable returns true if the given path is a regular file that we could execute.
func IsExecutable(path string) bool {
	return isExecutable(path) == nil
}

// isExecutable returns an error if a given file is not an executable.
func isExecutable(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := stat.Mode()
	if !mode.IsRegular() {
		return os.ErrPermission
	}
	if runtime.GOOS == "windows" {
		// No executable bit; go by the extension like the shell would.
		if ext := strings.ToLower(filepath.Ext(path)); ext != ".exe" && ext != ".bat" && ext != ".cmd" {
			return os.ErrPermission
		}
		return nil
	}
	if (mode & 0111) == 0 {
		return os.ErrPermission
	}
	return nil
}

// IsWithin returns true if the given path is equal to or lexically inside the given directory.
func IsWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
