// Package buildinfo carries the Sentinel version stamped in at link time.
//
// Release builds set the variables with -ldflags:
//
//	-X github.com/AbdelazizMoustafa10m/Sentinel/internal/buildinfo.Version=1.2.0
//
// GetInfo bundles them with the Go toolchain and platform for
// `sentinel version --json`; Info.UserAgent names the binary in HTTP API
// Server and User-Agent headers.
package buildinfo

// Link-time values; unstamped builds report "dev" and "unknown".
var (
	// Version is the semantic version without a leading "v".
	Version = "dev"

	// Commit is the short git commit SHA.
	Commit = "unknown"

	// Date is the UTC build timestamp in RFC3339 format.
	Date = "unknown"
)
