// Package version reports the build version of dbdelta.
package version

import (
	"fmt"
	"runtime"

	goversion "github.com/hashicorp/go-version"
)

var (
	// Version is the version of the CLI, set with -ldflags at build time.
	Version = "0.1.0"
	// BuildDate is the build date
	BuildDate = "unknown"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// Info holds version information
type Info struct {
	Version   string `json:"version" yaml:"version"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
	GitCommit string `json:"gitCommit" yaml:"gitCommit"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns version information. A Version that is not a valid semantic version is reported
// as-is.
func Get() Info {
	v := Version
	if parsed, err := goversion.NewVersion(Version); err == nil {
		v = parsed.String()
	}
	return Info{
		Version:   v,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// AtLeast reports whether the running build is minimum or newer.
func AtLeast(minimum string) (bool, error) {
	current, err := goversion.NewVersion(Version)
	if err != nil {
		return false, fmt.Errorf("invalid version format: %w", err)
	}
	want, err := goversion.NewVersion(minimum)
	if err != nil {
		return false, fmt.Errorf("invalid version format: %w", err)
	}
	return current.GreaterThanOrEqual(want), nil
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("dbdelta version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString returns a detailed version string
func (i Info) FullString() string {
	return fmt.Sprintf(`dbdelta version %s
Build Date: %s
Git Commit: %s
Platform: %s
Go Version: %s`, i.Version, i.BuildDate, i.GitCommit, i.Platform, i.GoVersion)
}
