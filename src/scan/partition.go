package scan

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mypyrun/mypyrun/src/core"
	"github.com/mypyrun/mypyrun/src/toolchain"
)

// A Resolver resolves the toolchain that applies to a directory.
type Resolver interface {
	Resolve(ctx context.Context, dir string) (toolchain.Toolchain, error)
}

// Partition groups files into buckets by the mypy executable that should check them.
// Buckets are returned in the order they were first needed. Each file appears in exactly one
// bucket; a bucket's config file is whichever was resolved for the first file put in it.
// It fails if any file doesn't exist or is a directory.
func Partition(ctx context.Context, files []string, resolver Resolver) ([]*core.Bucket, error) {
	buckets := []*core.Bucket{}
	byExecutable := map[string]*core.Bucket{}
	seen := make(map[string]bool, len(files))
	for _, file := range files {
		if seen[file] {
			continue
		}
		seen[file] = true
		if info, err := os.Stat(file); err != nil || info.IsDir() {
			return nil, &core.InvalidSourceFileError{Path: file}
		}
		dir, err := filepath.Abs(filepath.Dir(file))
		if err != nil {
			return nil, err
		}
		tc, err := resolver.Resolve(ctx, dir)
		if err != nil {
			return nil, err
		}
		bucket, present := byExecutable[tc.Executable]
		if !present {
			bucket = &core.Bucket{Executable: tc.Executable, ConfigFile: tc.ConfigFile}
			byExecutable[tc.Executable] = bucket
			buckets = append(buckets, bucket)
		}
		bucket.Files = append(bucket.Files, file)
	}
	return buckets, nil
}

// specialFiles are checked on their own as well as with everything else when isolating them.
var specialFiles = map[string]bool{
	"__init__.py": true,
	"__main__.py": true,
	"setup.py":    true,
}

// IsolateSpecialFiles returns the given buckets preceded by an extra single-file bucket for each
// special file in them. Those files are therefore checked twice, and issues in them reported twice.
// This works around https://github.com/python/mypy/issues/4008 on old mypy versions.
func IsolateSpecialFiles(buckets []*core.Bucket) []*core.Bucket {
	ret := []*core.Bucket{}
	for _, bucket := range buckets {
		for _, file := range bucket.Files {
			if specialFiles[filepath.Base(file)] {
				ret = append(ret, &core.Bucket{
					Executable: bucket.Executable,
					ConfigFile: bucket.ConfigFile,
					Files:      []string{file},
				})
			}
		}
	}
	return append(ret, buckets...)
}
