// Package version holds build metadata injected via -ldflags.
package version

// Set at build time:
//
//	go build -ldflags "-X github.com/smkaiser/songfix/internal/version.Version=0.2.0 -X github.com/smkaiser/songfix/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "0.1.0"
	Commit  = "unknown"
)
