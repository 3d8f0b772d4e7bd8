// Package version holds build metadata. The variables are overridden at
// link time with -ldflags "-X github.com/TFMV/mongoload/version.Version=...".
package version

import "runtime"

var Version = "0.1.0"
var BuildDate = "2025-03-01"
var Commit = "dev"

// Info is the build metadata reported by the CLI and the HTTP API.
type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

func GetVersion() string {
	return Version
}

func GetBuildDate() string {
	return BuildDate
}

// Get returns the current build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		BuildDate: BuildDate,
		Commit:    Commit,
		GoVersion: runtime.Version(),
	}
}

func (i Info) String() string {
	return "mongoload " + i.Version + " (" + i.Commit + ", built " + i.BuildDate + ", " + i.GoVersion + ")"
}
