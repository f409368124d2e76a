// Package version holds build information set at link time.
package version

import "runtime"

// Set via -ldflags at build time, e.g.:
//
//	go build -ldflags "-X github.com/vitaehq/vitae/version.GitRelease=v0.1.0"
var (
	// GitRelease is the release tag or branch the binary was built from.
	GitRelease = "unreleased"
	// GitCommit is the commit hash the binary was built from.
	GitCommit = "unknown"
	// GitCommitDate is the commit date of GitCommit.
	GitCommitDate = "unknown"
)

// GoInfo reports the Go toolchain the binary was compiled with.
var GoInfo = runtime.Version()
