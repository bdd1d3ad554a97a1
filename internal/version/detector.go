// Package version resolves the application version from build metadata.
package version

import (
	"runtime/debug"
	"strings"
)

const (
	unknownVersionFallbackConstant  = "unknown"
	buildInfoDevelVersionValue      = "devel"
	vcsRevisionSettingKeyConstant   = "vcs.revision"
	vcsModifiedSettingKeyConstant   = "vcs.modified"
	vcsModifiedSettingValueConstant = "true"
	shortRevisionLengthConstant     = 12
	dirtyRevisionSuffixConstant     = "-dirty"
)

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Detector resolves application version strings.
type Detector struct {
	buildInfoProvider BuildInfoProvider
}

// Dependencies describes the collaborators required for version detection.
type Dependencies struct {
	BuildInfoProvider BuildInfoProvider
}

// NewDetector constructs a Detector with the supplied dependencies or sensible defaults.
func NewDetector(dependencies Dependencies) *Detector {
	provider := dependencies.BuildInfoProvider
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}
	return &Detector{buildInfoProvider: provider}
}

// Detect resolves the application version using the supplied dependencies.
func Detect(dependencies Dependencies) string {
	return NewDetector(dependencies).Version()
}

// Version returns the detected application version string. The module version
// stamped into the binary wins; otherwise the version control revision is
// used, and "unknown" is the last resort.
func (detector *Detector) Version() string {
	if detector == nil {
		return unknownVersionFallbackConstant
	}

	buildInfo, available := detector.readBuildInfo()
	if !available {
		return unknownVersionFallbackConstant
	}

	if moduleVersion := moduleVersionFromBuildInfo(buildInfo); len(moduleVersion) > 0 {
		return moduleVersion
	}

	if revisionVersion := revisionFromBuildInfo(buildInfo); len(revisionVersion) > 0 {
		return revisionVersion
	}

	return unknownVersionFallbackConstant
}

func (detector *Detector) readBuildInfo() (*debug.BuildInfo, bool) {
	if detector.buildInfoProvider == nil {
		return nil, false
	}
	buildInfo, available := detector.buildInfoProvider.Read()
	if !available || buildInfo == nil {
		return nil, false
	}
	return buildInfo, true
}

func moduleVersionFromBuildInfo(buildInfo *debug.BuildInfo) string {
	trimmedVersion := strings.TrimSpace(buildInfo.Main.Version)
	if len(trimmedVersion) == 0 {
		return ""
	}
	if strings.EqualFold(trimmedVersion, buildInfoDevelVersionValue) {
		return ""
	}
	return trimmedVersion
}

func revisionFromBuildInfo(buildInfo *debug.BuildInfo) string {
	revision := ""
	modified := false
	for _, buildSetting := range buildInfo.Settings {
		switch buildSetting.Key {
		case vcsRevisionSettingKeyConstant:
			revision = strings.TrimSpace(buildSetting.Value)
		case vcsModifiedSettingKeyConstant:
			modified = buildSetting.Value == vcsModifiedSettingValueConstant
		}
	}

	if len(revision) == 0 {
		return ""
	}
	if len(revision) > shortRevisionLengthConstant {
		revision = revision[:shortRevisionLengthConstant]
	}
	if modified {
		revision += dirtyRevisionSuffixConstant
	}
	return revision
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}
