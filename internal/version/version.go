// Package version carries build metadata stamped in by the linker.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the full build description printed by `voxrelay version`.
func String() string {
	return "voxrelay " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// Short is the bare version, used where peers only want a release tag.
func Short() string {
	if Version == "dev" && Commit != "none" {
		return "dev-" + Commit
	}
	return Version
}
