// Package version carries build metadata injected with
// -ldflags "-X github.com/pscheid92/hearth/internal/platform/version.Version=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is served by GET /version and printed by hearthctl --version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String renders "v1.2.0 (commit abc1234, built 2026-01-10T12:00:00Z, go1.26.0)".
// Commits are shortened to seven characters.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (commit %s, built %s, %s)", i.Version, commit, i.BuildTime, i.GoVersion)
}
