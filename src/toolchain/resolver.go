// Package toolchain works out which mypy, and which mypy config, applies to a directory.
package toolchain

import (
	"context"
	"path/filepath"

	"github.com/mypyrun/mypyrun/src/cli/logging"
	"github.com/mypyrun/mypyrun/src/core"
	"github.com/mypyrun/mypyrun/src/fs"
	"github.com/mypyrun/mypyrun/src/venv"
)

var log = logging.Log

// A Toolchain is the mypy executable and config file that check a particular directory.
type Toolchain struct {
	Executable string
	// ConfigFile may be empty, in which case mypy finds its own config.
	ConfigFile string
}

// A Resolver resolves the Toolchain for directories.
// It caches its answers, so one should be created for each scan.
type Resolver struct {
	config core.ToolchainConfig
	prober venv.Prober
	cache  *DirectoryCache
}

// NewResolver creates a new Resolver with an empty cache.
func NewResolver(config core.ToolchainConfig, prober venv.Prober) *Resolver {
	return &Resolver{
		config: config,
		prober: prober,
		cache:  NewDirectoryCache(),
	}
}

// Project returns the project-wide toolchain.
func (r *Resolver) Project() Toolchain {
	return Toolchain{Executable: r.config.ProjectExecutable, ConfigFile: r.config.ProjectConfigFile}
}

// Cache returns the cache this resolver uses.
func (r *Resolver) Cache() *DirectoryCache {
	return r.cache
}

// Resolve returns the toolchain for the given directory.
// If autodetection is on, a mypy installed in the directory's environment is preferred over the
// project one, as is a mypy config file in the directory's project root. Each is decided on its
// own; a missing environment mypy doesn't stop us using the environment's config.
// The only error returned is from cancellation.
func (r *Resolver) Resolve(ctx context.Context, dir string) (Toolchain, error) {
	tc := r.Project()
	if !r.config.AutodetectEnvironments {
		return tc, nil
	}
	if cached, present := r.cache.Get(dir); present {
		return cached, nil
	}
	env, err := r.prober.Probe(ctx, dir)
	if err != nil {
		return Toolchain{}, err
	}
	if env.Root != "" {
		if exe := filepath.Join(core.EnvironmentBinDir(env.Root), core.CheckerExecutableName); fs.IsExecutable(exe) {
			tc.Executable = exe
		} else {
			log.Debug("Environment %s for %s has no executable %s, using %s", env.Root, dir, core.CheckerName, tc.Executable)
		}
	}
	if env.ProjectRoot != "" {
		if config := ConfigFileIn(env.ProjectRoot); config != "" {
			tc.ConfigFile = config
		}
	}
	r.cache.Put(dir, tc)
	return tc, nil
}
