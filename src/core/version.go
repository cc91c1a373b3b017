package core

import "github.com/coreos/go-semver/semver"

// RawVersion is the unparsed raw version of mypyrun.
const RawVersion = "0.4.0"

// Version is the current version of mypyrun.
// Release builds replace this with the tagged version via -ldflags.
var Version = *semver.New(RawVersion)
