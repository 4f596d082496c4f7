package version

import "fmt"

// Name is the service name used in logs and startup banners.
const Name = "vigia"

// Version is overridden at build time via -ldflags.
var Version = "dev"

// Commit is overridden at build time via -ldflags.
var Commit = ""

// Full returns the version string including the commit when known.
func Full() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
