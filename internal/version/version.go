// Package version holds build metadata injected via ldflags.
package version

//nolint:revive // Overwritten by the release build.
var (
	Version = "dev"
	Commit  = "unknown"
)
