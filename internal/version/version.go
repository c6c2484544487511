// Package version reports which bridge build is running. Release builds set
// the variables at link time:
//
//	go build -ldflags "-X github.com/banshee-data/sslbridge/internal/version.GitSHA=$(git rev-parse HEAD)" ./cmd/bridge
package version

import "fmt"

// Defaults identify a local, unreleased build.
var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// ShortSHA returns GitSHA cut to seven characters.
func ShortSHA() string {
	if len(GitSHA) > 7 {
		return GitSHA[:7]
	}
	return GitSHA
}

// String formats the build for the startup log, -version and the debug index.
func String() string {
	return fmt.Sprintf("sslbridge %s (%s, built %s)", Version, ShortSHA(), BuildTime)
}
