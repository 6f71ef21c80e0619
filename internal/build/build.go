// Package build provides build-time metadata for the plately binary.
package build

var (
	// Version is the release version, overridden at build time via ldflags.
	Version = "dev"

	// Commit is the git commit hash, overridden at build time via ldflags.
	Commit = ""

	// MinimumSupportedDatastoreSchemaRevision is the minimum schema revision
	// the engine can run against. Revision 1 lacks the feed-extension columns
	// and puts the entry store in degraded mode.
	MinimumSupportedDatastoreSchemaRevision int64 = 1
)
