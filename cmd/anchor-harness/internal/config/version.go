package config

var (
	// Version is the anchor-harness version number, which is injected during build time.
	Version = "0.0.0"

	// CommitHash is the anchor-harness git commit hash, which is injected during build time.
	CommitHash = ""

	// BuildTimestamp is the timestamp at which the anchor-harness was built, injected during build time.
	BuildTimestamp = ""

	// Branch is the git branch from which the anchor-harness was built, injected during build time.
	Branch = ""
)
