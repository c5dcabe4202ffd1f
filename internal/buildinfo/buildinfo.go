package buildinfo

import "fmt"

// Set via -ldflags "-X github.com/ficojok/ZETdev/internal/buildinfo.Version=..."
var (
	Version    = "dev"
	CommitHash = "none"
	BuildTime  = "unknown"
)

func String() string {
	return fmt.Sprintf("zet %s (commit=%s, built=%s)", Version, CommitHash, BuildTime)
}
