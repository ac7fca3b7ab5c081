// Package version carries build metadata stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

const unknown = "<unknown>"

// Set via -ldflags "-X github.com/Sumatoshi-tech/deltascope/pkg/version.Version=...".
var (
	// Version is the release tag of the binary.
	Version = "dev"
	// Commit is the Git hash the binary was built from.
	Commit = unknown
	// Date is the build timestamp.
	Date = unknown
)

// InitBinaryVersion fills Version and Commit from the embedded module build
// info when the binary was built without ldflags (go install).
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String renders the one-line version banner.
func String() string {
	return fmt.Sprintf("deltascope %s (commit: %s, built: %s)", Version, Commit, Date)
}
