// Package version provides centralized version management for luashell.
// It supports semantic versioning and build-time injection.
package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Build information that can be set at compile time via -ldflags
var (
	// Version is the semantic version of the application
	Version = "0.3.0"

	// GitCommit is the git commit hash when the binary was built
	GitCommit = "unknown"

	// BuildDate is the date when the binary was built
	BuildDate = "unknown"
)

// Info represents comprehensive version information
type Info struct {
	Version   string          `json:"version"`
	GitCommit string          `json:"gitCommit"`
	BuildDate string          `json:"buildDate"`
	GoVersion string          `json:"goVersion"`
	Platform  string          `json:"platform"`
	SemVer    *semver.Version `json:"-"`
}

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// GetBaseVersion returns the base version (major.minor.patch) without build metadata
func GetBaseVersion() string {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return Version
	}
	return fmt.Sprintf("%d.%d.%d", sv.Major(), sv.Minor(), sv.Patch())
}

// GetInfo returns comprehensive version information
func GetInfo() (*Info, error) {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("invalid semantic version '%s': %w", Version, err)
	}

	return &Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		SemVer:    sv,
	}, nil
}

// GetFormattedVersion returns a one-line version string suitable for the startup banner.
func GetFormattedVersion() string {
	info, err := GetInfo()
	if err != nil {
		return fmt.Sprintf("luashell v%s (invalid version)", Version)
	}

	parts := []string{fmt.Sprintf("luashell v%s", info.Version)}

	if info.GitCommit != "unknown" && info.GitCommit != "" {
		shortCommit := info.GitCommit
		if len(shortCommit) > 7 {
			shortCommit = shortCommit[:7]
		}
		parts = append(parts, fmt.Sprintf("commit %s", shortCommit))
	}

	if info.BuildDate != "unknown" && info.BuildDate != "" {
		parts = append(parts, fmt.Sprintf("built %s", info.BuildDate))
	}

	return strings.Join(parts, ", ")
}

// GetDetailedVersion returns detailed version information for the version command
func GetDetailedVersion() string {
	info, err := GetInfo()
	if err != nil {
		return fmt.Sprintf("luashell v%s (error: %v)", Version, err)
	}

	lines := []string{
		fmt.Sprintf("luashell v%s", info.Version),
		fmt.Sprintf("Git Commit: %s", info.GitCommit),
		fmt.Sprintf("Build Date: %s", info.BuildDate),
		fmt.Sprintf("Go Version: %s", info.GoVersion),
		fmt.Sprintf("Platform: %s", info.Platform),
	}

	return strings.Join(lines, "\n")
}

// IsCompatible reports whether a script-declared minimum version is satisfied by this build.
// An unparsable constraint is treated as incompatible.
func IsCompatible(constraint string) bool {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false
	}
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return false
	}
	return c.Check(sv)
}
