package toolchain

import (
	"fmt"

	"github.com/coreos/go-semver/semver"
	"github.com/peterebden/go-deferred-regex"
)

// versionRegex matches the output of mypy -V, e.g. "mypy 1.8.0 (compiled: yes)".
// Older versions only had two components, e.g. "mypy 0.910".
var versionRegex = deferredregex.DeferredRegex{Re: `mypy ([0-9]+)\.([0-9]+)(?:\.([0-9]+))?`}

// ParseVersion extracts the version from the output of mypy -V.
func ParseVersion(output string) (*semver.Version, error) {
	matches := versionRegex.FindStringSubmatch(output)
	if matches == nil {
		return nil, fmt.Errorf("Unrecognised version output: %s", output)
	}
	patch := matches[3]
	if patch == "" {
		patch = "0"
	}
	return semver.NewVersion(matches[1] + "." + matches[2] + "." + patch)
}
