package plugins

import "time"

// ModuleManifestFileName is the entry-point file a subdirectory must contain
// to qualify as a plot module.
const ModuleManifestFileName = "module.yaml"

// ModuleDescriptor records where a module lives and what it declares.
// Descriptors are built once per discovery pass and never mutated afterwards.
type ModuleDescriptor struct {
	Name               string
	Directory          string
	ManifestPath       string
	DeclaredFunctions  []string
	DiscoveryTimestamp time.Time
}

// moduleManifest mirrors the on-disk module.yaml document.
type moduleManifest struct {
	Name      string   `yaml:"name"`
	Functions []string `yaml:"functions"`
}
