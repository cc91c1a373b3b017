package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mypyrun/mypyrun/src/core"
	"github.com/mypyrun/mypyrun/src/toolchain"
)

// mapResolver resolves directories from a fixed map, falling back to a default.
type mapResolver struct {
	toolchains map[string]toolchain.Toolchain
	fallback   toolchain.Toolchain
	calls      []string
	err        error
}

func (r *mapResolver) Resolve(ctx context.Context, dir string) (toolchain.Toolchain, error) {
	r.calls = append(r.calls, dir)
	if r.err != nil {
		return toolchain.Toolchain{}, r.err
	}
	if tc, present := r.toolchains[dir]; present {
		return tc, nil
	}
	return r.fallback, nil
}

// writeFiles creates the given files under dir and returns their full paths.
func writeFiles(t *testing.T, dir string, names ...string) []string {
	ret := make([]string, len(names))
	for i, name := range names {
		ret[i] = filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(ret[i]), 0755))
		require.NoError(t, os.WriteFile(ret[i], []byte("x = 1\n"), 0644))
	}
	return ret
}

func TestPartition(t *testing.T) {
	root := t.TempDir()
	files := writeFiles(t, root, "a/one.py", "b/two.py", "a/three.py", "c/four.py", "b/five.py")
	r := &mapResolver{
		toolchains: map[string]toolchain.Toolchain{
			filepath.Join(root, "b"): {Executable: "/venv/bin/mypy", ConfigFile: "/b/mypy.ini"},
			filepath.Join(root, "c"): {Executable: "/venv/bin/mypy", ConfigFile: "/c/mypy.ini"},
		},
		fallback: toolchain.Toolchain{Executable: "/usr/bin/mypy"},
	}
	buckets, err := Partition(context.Background(), files, r)
	require.NoError(t, err)
	require.Equal(t, 2, len(buckets))
	assert.Equal(t, &core.Bucket{
		Executable: "/usr/bin/mypy",
		Files:      []string{files[0], files[2]},
	}, buckets[0])
	assert.Equal(t, &core.Bucket{
		Executable: "/venv/bin/mypy",
		ConfigFile: "/b/mypy.ini", // First one wins.
		Files:      []string{files[1], files[3], files[4]},
	}, buckets[1])
}

func TestPartitionIsExhaustive(t *testing.T) {
	root := t.TempDir()
	files := writeFiles(t, root, "a/1.py", "b/2.py", "c/3.py", "a/4.py", "d/5.py", "b/6.py")
	r := &mapResolver{
		toolchains: map[string]toolchain.Toolchain{
			filepath.Join(root, "a"): {Executable: "/a/mypy"},
			filepath.Join(root, "b"): {Executable: "/b/mypy"},
		},
		fallback: toolchain.Toolchain{Executable: "/project/mypy"},
	}
	// Duplicates in the input only appear once in the output.
	buckets, err := Partition(context.Background(), append(files, files[0], files[3]), r)
	require.NoError(t, err)
	var all []string
	for _, bucket := range buckets {
		all = append(all, bucket.Files...)
	}
	sort.Strings(all)
	expected := append([]string{}, files...)
	sort.Strings(expected)
	assert.Equal(t, expected, all)
}

func TestPartitionMissingFile(t *testing.T) {
	root := t.TempDir()
	files := writeFiles(t, root, "a.py")
	_, err := Partition(context.Background(), append(files, filepath.Join(root, "missing.py")), &mapResolver{})
	var invalid *core.InvalidSourceFileError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, filepath.Join(root, "missing.py"), invalid.Path)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestPartitionDirectory(t *testing.T) {
	root := t.TempDir()
	_, err := Partition(context.Background(), []string{root}, &mapResolver{})
	var invalid *core.InvalidSourceFileError
	assert.True(t, errors.As(err, &invalid))
}

func TestPartitionResolvesParentDirectory(t *testing.T) {
	root := t.TempDir()
	files := writeFiles(t, root, "pkg/a.py", "pkg/b.py")
	r := &mapResolver{}
	_, err := Partition(context.Background(), files, r)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "pkg"), filepath.Join(root, "pkg")}, r.calls)
}

func TestPartitionCancelled(t *testing.T) {
	root := t.TempDir()
	files := writeFiles(t, root, "a.py")
	_, err := Partition(context.Background(), files, &mapResolver{err: context.Canceled})
	assert.Equal(t, context.Canceled, err)
}

func TestIsolateSpecialFiles(t *testing.T) {
	buckets := []*core.Bucket{
		{Executable: "/a/mypy", Files: []string{"pkg/__init__.py", "pkg/mod.py"}},
		{Executable: "/b/mypy", ConfigFile: "/b/mypy.ini", Files: []string{"setup.py", "pkg/__main__.py", "pkg/setup_utils.py"}},
	}
	isolated := IsolateSpecialFiles(buckets)
	assert.Equal(t, []*core.Bucket{
		{Executable: "/a/mypy", Files: []string{"pkg/__init__.py"}},
		{Executable: "/b/mypy", ConfigFile: "/b/mypy.ini", Files: []string{"setup.py"}},
		{Executable: "/b/mypy", ConfigFile: "/b/mypy.ini", Files: []string{"pkg/__main__.py"}},
		buckets[0],
		buckets[1],
	}, isolated)
}
