// Package consts houses some constants needed across purple
package consts

import (
	"runtime"
	"runtime/debug"
	"strings"
)

// Version contains the current semantic version of purple.
const Version = "0.9.0"

// FullVersion returns the maximally full version and build information for
// the currently running purple executable.
func FullVersion() string {
	goVersionArch := runtime.Version() + ", " + runtime.GOOS + "/" + runtime.GOARCH

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return Version + " (" + goVersionArch + ")"
	}

	var commit string
	var dirty bool
	for _, s := range buildInfo.Settings {
		switch s.Key {
		case "vcs.revision":
			commitLen := 10
			if len(s.Value) < commitLen {
				commitLen = len(s.Value)
			}
			commit = s.Value[:commitLen]
		case "vcs.modified":
			if s.Value == "true" {
				dirty = true
			}
		}
	}

	if commit == "" {
		return Version + " (" + goVersionArch + ")"
	}
	if dirty {
		commit += "-dirty"
	}
	return Version + " (commit/" + commit + ", " + goVersionArch + ")"
}

// Banner returns the ASCII-art banner with the purple logo
func Banner() string {
	banner := strings.Join([]string{
		`                            _`,
		`   _ __  _   _ _ __ _ __ | | ___`,
		`  | '_ \| | | | '__| '_ \| |/ _ \`,
		`  | |_) | |_| | |  | |_) | |  __/`,
		`  | .__/ \__,_|_|  | .__/|_|\___|`,
		`  |_|              |_|`,
	}, "\n")

	return banner
}
