// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// Software is the producer name recorded in files this tool writes.
func Software() string {
	return "sciconv " + Version
}

// String describes the build for the version command.
func String() string {
	return fmt.Sprintf("sciconv %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}
