// Package versioninfo holds build metadata injected via -ldflags.
package versioninfo

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the release version, set at build time.
var Version = "dev"

// Commit is the git commit the binary was built from, set at build time.
var Commit = "unknown"

// IsRelease reports whether Version is a valid semantic version.
// Local builds ("dev", dirty snapshots) are not releases.
func IsRelease() bool {
	return semver.IsValid(canonical(Version))
}

// Newer reports whether candidate is a strictly newer release than Version.
// Non-release builds never consider anything newer.
func Newer(candidate string) bool {
	if !IsRelease() {
		return false
	}
	c := canonical(candidate)
	if !semver.IsValid(c) {
		return false
	}
	return semver.Compare(c, canonical(Version)) > 0
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
