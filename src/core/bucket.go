package core

// A Bucket is a set of source files that are all checked by one invocation of one mypy.
type Bucket struct {
	// Executable is the mypy that checks these files. Buckets are unique on it.
	Executable string
	// ConfigFile is passed as --config-file, if set.
	// It's fixed by the first file added to the bucket.
	ConfigFile string
	// Files are in the order they were added, without duplicates.
	Files []string
}
