package fs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
)

type Mode interface {
	IsDir() bool
	IsSymlink() bool
	IsRegular() bool

	ModeType() os.FileMode
}

type mode os.FileMode

func (m mode) IsDir() bool {
	return os.FileMode(m).IsDir()
}

func (m mode) IsRegular() bool {
	return os.FileMode(m).IsRegular()
}

func (m mode) IsSymlink() bool {
	return os.FileMode(m)&os.ModeSymlink != 0
}

func (m mode) ModeType() os.FileMode {
	return os.FileMode(m)
}

// Walk implements an equivalent to filepath.Walk.
// It's implemented over github.com/karrick/godirwalk but the provided interface doesn't use that
// to make it a little easier to handle.
func Walk(rootPath string, callback func(name string, isDir bool) error) error {
	return WalkMode(rootPath, func(name string, mode Mode) error {
		return callback(name, mode.IsDir())
	})
}

// WalkMode is like Walk but the callback receives an additional type specifying the file mode type.
// N.B. This only includes the bits of the mode that determine the mode type, not the permissions.
func WalkMode(rootPath string, callback func(name string, mode Mode) error) error {
	// Compatibility with filepath.Walk which allows passing a file as the root argument.
	if info, err := os.Lstat(rootPath); err != nil {
		return err
	} else if !info.IsDir() {
		return callback(rootPath, mode(info.Mode()))
	}
	return godirwalk.Walk(rootPath, &godirwalk.Options{Callback: func(name string, info *godirwalk.Dirent) error {
		return callback(name, info)
	}})
}

// skippedDirs are never descended into when expanding directories into source files.
var skippedDirs = map[string]bool{
	"__pycache__":   true,
	"node_modules":  true,
	"site-packages": true,
}

// SourceFiles expands the given paths into the set of files with the given extension.
// Plain files are returned as given, whatever their extension; directories are walked
// recursively, skipping hidden directories, caches and anything that looks like a virtualenv.
// The result preserves the order of the inputs and contains no duplicates.
func SourceFiles(paths []string, extension string) ([]string, error) {
	seen := map[string]bool{}
	ret := []string{}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			ret = append(ret, name)
		}
	}
	for _, p := range paths {
		if !IsDirectory(p) {
			add(p)
			continue
		}
		root := filepath.Clean(p)
		if err := WalkMode(root, func(name string, mode Mode) error {
			if mode.IsDir() {
				if name != root && IsSkippedDir(name) {
					return godirwalk.SkipThis
				}
				return nil
			} else if strings.HasSuffix(name, extension) {
				add(name)
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// SourceDirs returns the directories that hold the files SourceFiles would return for the
// given paths: each directory given and the ones beneath it that aren't skipped, plus the
// parent of each plain file. Paths that don't exist are ignored.
func SourceDirs(paths []string) ([]string, error) {
	seen := map[string]bool{}
	ret := []string{}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			ret = append(ret, name)
		}
	}
	for _, p := range paths {
		if !IsDirectory(p) {
			if PathExists(p) {
				add(filepath.Dir(p))
			}
			continue
		}
		root := filepath.Clean(p)
		if err := WalkMode(root, func(name string, mode Mode) error {
			if !mode.IsDir() {
				return nil
			} else if name != root && IsSkippedDir(name) {
				return godirwalk.SkipThis
			}
			add(name)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// IsSkippedDir returns true if the given directory is never searched for source files.
func IsSkippedDir(dir string) bool {
	base := filepath.Base(dir)
	return strings.HasPrefix(base, ".") || skippedDirs[base] || FileExists(filepath.Join(dir, "pyvenv.cfg"))
}
