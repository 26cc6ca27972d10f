package buildinfo

import (
	"fmt"
	"runtime"
)

// Info holds structured build information suitable for JSON serialization.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns the current build information as a structured type.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a human-readable version string.
// Example: "sentinel v1.2.0 (commit: a1b2c3d, built: 2026-10-01T10:00:00Z)"
func (i Info) String() string {
	return fmt.Sprintf("sentinel v%s (commit: %s, built: %s)", i.Version, i.Commit, i.Date)
}

// UserAgent returns the identifier sent in the Server header of the HTTP API.
func (i Info) UserAgent() string {
	return "sentinel/" + i.Version
}
