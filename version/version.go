// Package version holds build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitRelease is the release tag, e.g. v0.3.0.
	GitRelease = "dev"
	// GitCommit is the short commit hash.
	GitCommit = "unknown"
	// GitCommitDate is the commit date in RFC3339.
	GitCommitDate = "unknown"
	// GoInfo is the Go toolchain the binary was built with.
	GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)

// Info is the build metadata of the running binary.
type Info struct {
	Release string `json:"release" yaml:"release"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
	Go      string `json:"go" yaml:"go"`
}

// Get returns the build metadata.
func Get() Info {
	return Info{Release: GitRelease, Commit: GitCommit, Date: GitCommitDate, Go: GoInfo}
}

// String formats i as a single line, e.g. "v0.3.0 (abc1234, 2024-05-01)".
func (i Info) String() string {
	return fmt.Sprintf("%s (%s, %s)", i.Release, i.Commit, i.Date)
}
