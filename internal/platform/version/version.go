// Package version exposes build information for the chime binaries
package version

// BuildInfo holds version information about the running binary
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Set via -ldflags "-X 'chime/internal/platform/version.version=v0.1.0'
// -X 'chime/internal/platform/version.commit=abcd'
// -X 'chime/internal/platform/version.date=2026-08-24'"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info returns the build information for service
func Info(service string) BuildInfo {
	return BuildInfo{
		Service: service,
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}
