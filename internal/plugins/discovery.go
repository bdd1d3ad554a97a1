package plugins

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	discoveryScanMessageConstant           = "scanning plugin root for modules"
	discoveryRootMissingMessageConstant    = "plugin root not readable; reporting no modules"
	discoveryManifestSkipMessageConstant   = "skipping unreadable module manifest"
	discoveryCompleteMessageConstant       = "module discovery complete"
	discoveryPluginRootFieldNameConstant   = "plugin_root"
	discoveryModuleCountFieldNameConstant  = "modules_found"
	discoveryManifestPathFieldNameConstant = "manifest_path"
)

// Discoverer scans a plugin root for module manifests without loading code.
type Discoverer struct {
	logger *zap.Logger
}

// NewDiscoverer constructs a Discoverer. A nil logger falls back to a no-op logger.
func NewDiscoverer(logger *zap.Logger) Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Discoverer{logger: logger}
}

// DiscoverModules inspects the immediate subdirectories of pluginRoot and
// returns a descriptor for each one containing a module manifest, ordered by
// module name. Subdirectories without a manifest are not modules and are
// skipped silently. An unreadable root and an empty root both yield an empty
// list and no error: a run without plot modules is valid.
func (discoverer Discoverer) DiscoverModules(pluginRoot string) ([]ModuleDescriptor, error) {
	discoverer.logger.Debug(discoveryScanMessageConstant, zap.String(discoveryPluginRootFieldNameConstant, pluginRoot))

	directoryEntries, readError := os.ReadDir(pluginRoot)
	if readError != nil {
		discoverer.logger.Warn(discoveryRootMissingMessageConstant,
			zap.String(discoveryPluginRootFieldNameConstant, pluginRoot),
			zap.Error(readError),
		)
		return []ModuleDescriptor{}, nil
	}

	descriptors := make([]ModuleDescriptor, 0, len(directoryEntries))
	discoveryTimestamp := time.Now().UTC()

	for _, directoryEntry := range directoryEntries {
		if !directoryEntry.IsDir() {
			continue
		}

		moduleDirectory := filepath.Join(pluginRoot, directoryEntry.Name())
		manifestPath := filepath.Join(moduleDirectory, ModuleManifestFileName)
		manifestContent, manifestReadError := os.ReadFile(manifestPath)
		if manifestReadError != nil {
			continue
		}

		var manifest moduleManifest
		if unmarshalError := yaml.Unmarshal(manifestContent, &manifest); unmarshalError != nil {
			discoverer.logger.Warn(discoveryManifestSkipMessageConstant,
				zap.String(discoveryManifestPathFieldNameConstant, manifestPath),
				zap.Error(unmarshalError),
			)
			continue
		}

		moduleName := strings.TrimSpace(manifest.Name)
		if len(moduleName) == 0 {
			moduleName = directoryEntry.Name()
		}

		descriptors = append(descriptors, ModuleDescriptor{
			Name:               moduleName,
			Directory:          moduleDirectory,
			ManifestPath:       manifestPath,
			DeclaredFunctions:  normalizeDeclaredFunctions(manifest.Functions),
			DiscoveryTimestamp: discoveryTimestamp,
		})
	}

	sort.Slice(descriptors, func(firstIndex int, secondIndex int) bool {
		return descriptors[firstIndex].Name < descriptors[secondIndex].Name
	})

	discoverer.logger.Debug(discoveryCompleteMessageConstant,
		zap.String(discoveryPluginRootFieldNameConstant, pluginRoot),
		zap.Int(discoveryModuleCountFieldNameConstant, len(descriptors)),
	)
	return descriptors, nil
}

func normalizeDeclaredFunctions(declaredFunctions []string) []string {
	if len(declaredFunctions) == 0 {
		return RequiredCapabilityNames()
	}
	normalized := make([]string, 0, len(declaredFunctions))
	for _, functionName := range declaredFunctions {
		trimmedName := strings.TrimSpace(functionName)
		if len(trimmedName) == 0 {
			continue
		}
		normalized = append(normalized, trimmedName)
	}
	return normalized
}
