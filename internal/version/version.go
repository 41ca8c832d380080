// Package version provides build-time version information for xtreamer.
//
// The variables are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/xtreamer/internal/version.Version=x.y.z \
//	                   -X github.com/jmylchreest/xtreamer/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/jmylchreest/xtreamer/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables injected via ldflags.
var (
	// Version is a SemVer 2.0.0 version. Snapshots use "1.2.3-SNAPSHOT.abc1234".
	Version = "dev"

	// Commit is the full git commit SHA.
	Commit = "unknown"

	// Date is the build timestamp in RFC3339 format.
	Date = "unknown"

	Branch = "unknown"

	// TreeState is "clean" or "dirty".
	TreeState = "unknown"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "xtreamer"

// Info contains structured version information.
type Info struct {
	Application string `json:"application"`
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	Date        string `json:"date"`
	Branch      string `json:"branch"`
	TreeState   string `json:"tree_state"`
	GoVersion   string `json:"go_version"`
	Platform    string `json:"platform"`
}

// GetInfo returns all version information.
func GetInfo() Info {
	return Info{
		Application: ApplicationName,
		Version:     Version,
		Commit:      Commit,
		Date:        Date,
		Branch:      Branch,
		TreeState:   TreeState,
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// shortCommit is the first eight characters of Commit with a trailing "*"
// for dirty trees, or "" when the commit is unknown.
func shortCommit() string {
	if Commit == "unknown" || len(Commit) < 8 {
		return ""
	}
	c := Commit[:8]
	if TreeState == "dirty" {
		c += "*"
	}
	return c
}

// String returns a human-readable version string.
func String() string {
	info := GetInfo()
	c := shortCommit()
	if c == "" {
		return fmt.Sprintf("%s version %s (%s, %s)", ApplicationName, info.Version, info.GoVersion, info.Platform)
	}
	s := fmt.Sprintf("%s version %s (commit: %s, built: %s", ApplicationName, info.Version, c, info.Date)
	if Branch != "unknown" && Branch != "" {
		s += ", branch: " + Branch
	}
	return s + fmt.Sprintf(", %s, %s)", info.GoVersion, info.Platform)
}

// Short is used for cobra's --version, which prefixes the command name.
func Short() string {
	if c := shortCommit(); c != "" {
		return fmt.Sprintf("%s (%s)", Version, c)
	}
	return Version
}

// JSON returns the version information as an indented JSON document.
func JSON() string {
	data, err := json.MarshalIndent(GetInfo(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// UserAgent returns the User-Agent sent to panels.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", ApplicationName, Version)
}

// IsSnapshot reports whether this is a development or snapshot build.
func IsSnapshot() bool {
	return Version == "dev" || strings.Contains(Version, "-SNAPSHOT")
}

// IsRelease reports whether this is a tagged release build.
func IsRelease() bool {
	return !IsSnapshot()
}
