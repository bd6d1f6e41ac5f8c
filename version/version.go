// Package version exposes build version metadata, set at build time via
// -ldflags.
package version

var (
	// Version is the semantic version of the build.
	Version = "dev"
	// Commit is the git commit the build was produced from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)
