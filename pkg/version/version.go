package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   string // Set via ldflags.
	Branch    string
	BuildUser string
	BuildDate string

	Revision  = getRevision()
	GoVersion = runtime.Version()
	GoOS      = runtime.GOOS
	GoArch    = runtime.GOARCH
)

// GetVersion returns the ldflags version, or the VCS revision when unset.
func GetVersion() string {
	if Version != "" {
		return Version
	}

	return Revision
}

// String renders the build information on a single line.
func String() string {
	s := fmt.Sprintf("secopsctl %s (revision: %s, go: %s, platform: %s/%s)",
		GetVersion(), Revision, GoVersion, GoOS, GoArch)
	if BuildDate != "" {
		s += fmt.Sprintf(" built %s", BuildDate)
		if BuildUser != "" {
			s += " by " + BuildUser
		}
	}

	return s
}

func getRevision() string {
	rev := "unknown"

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return rev
	}

	modified := false

	for _, v := range buildInfo.Settings {
		switch v.Key {
		case "vcs.revision":
			if len(v.Value) > 7 {
				rev = v.Value[:7]
			} else {
				rev = v.Value
			}

		case "vcs.modified":
			if v.Value == "true" {
				modified = true
			}
		}
	}

	if modified {
		return rev + "-dirty"
	}

	return rev
}
