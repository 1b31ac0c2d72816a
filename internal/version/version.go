// Package version holds build metadata injected with -ldflags -X.
package version

import "fmt"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info is the JSON form served by /health and printed by the CLI.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
}

// Current returns the linked-in build metadata.
func Current() Info {
	return Info{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
}

func (i Info) String() string {
	return fmt.Sprintf("release-qa %s (commit %s, built %s)", i.Version, i.GitCommit, i.BuildTime)
}
