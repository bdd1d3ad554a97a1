package plugins

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/tyemirov/plotforge/internal/results"
)

const (
	unknownModuleErrorTemplateConstant       = "module %q has no registered implementation"
	missingCapabilityErrorTemplateConstant   = "module %q is missing required capability %q"
	metadataNameMissingErrorTemplateConstant = "module %q metadata does not declare a name"
	invalidVersionErrorTemplateConstant      = "module %q declares invalid version %q"
	metadataPanicErrorTemplateConstant       = "module %q metadata accessor panicked: %v"
	semverPrefixConstant                     = "v"
	loaderModuleLoadedMessageConstant        = "module loaded"
	loaderModuleLoadFailedMessageConstant    = "module load failed"
	loaderModuleNameFieldNameConstant        = "module"
	loaderModuleVersionFieldNameConstant     = "version"
	loaderFailureReasonFieldNameConstant     = "reason"
)

// ModuleInstance is the isolated execution context for one loaded module. Each
// load produces a fresh instance whose state is owned by the caller; nothing
// leaks between instances or into the engine.
type ModuleInstance struct {
	Descriptor   ModuleDescriptor
	Metadata     ModuleMetadata
	capabilities Capabilities
}

// AvailablePlots enumerates the module's work items.
func (instance *ModuleInstance) AvailablePlots() []PlotJob {
	return instance.capabilities.AvailablePlots()
}

// GeneratePlot produces one plot through the module's single-item entry point.
func (instance *ModuleInstance) GeneratePlot() GeneratePlotFunc {
	return instance.capabilities.GeneratePlot
}

// GenerateBatch exposes the module's batch entry point.
func (instance *ModuleInstance) GenerateBatch() GenerateBatchFunc {
	return instance.capabilities.GenerateBatch
}

// LoadResult reports one load attempt. Load failures are data, not faults, so
// the orchestrator can reduce a bad module to one line in an otherwise
// successful run.
type LoadResult struct {
	ModuleName  string
	Status      results.Status
	Instance    *ModuleInstance
	ErrorDetail string
}

// Loader verifies discovered modules against the catalog and the capability
// contract.
type Loader struct {
	catalog *Catalog
	logger  *zap.Logger
}

// NewLoader constructs a Loader over the provided catalog. A nil catalog uses
// the process-wide default; a nil logger falls back to a no-op logger.
func NewLoader(catalog *Catalog, logger *zap.Logger) Loader {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Loader{catalog: catalog, logger: logger}
}

// LoadModule resolves the descriptor against the catalog, verifies the four
// required capabilities, and validates the module metadata. It never panics;
// every failure mode is returned as a failed LoadResult.
func (loader Loader) LoadModule(descriptor ModuleDescriptor) LoadResult {
	capabilities, registered := loader.catalog.Lookup(descriptor.Name)
	if !registered {
		return loader.failedLoad(descriptor, fmt.Sprintf(unknownModuleErrorTemplateConstant, descriptor.Name))
	}

	if missingCapability, allPresent := verifyCapabilities(capabilities); !allPresent {
		return loader.failedLoad(descriptor, fmt.Sprintf(missingCapabilityErrorTemplateConstant, descriptor.Name, missingCapability))
	}

	metadata, metadataError := loader.readMetadata(descriptor, capabilities)
	if metadataError != nil {
		return loader.failedLoad(descriptor, metadataError.Error())
	}

	instance := &ModuleInstance{
		Descriptor:   descriptor,
		Metadata:     metadata,
		capabilities: capabilities,
	}

	loader.logger.Debug(loaderModuleLoadedMessageConstant,
		zap.String(loaderModuleNameFieldNameConstant, descriptor.Name),
		zap.String(loaderModuleVersionFieldNameConstant, metadata.Version),
	)
	return LoadResult{ModuleName: descriptor.Name, Status: results.StatusSuccess, Instance: instance}
}

func (loader Loader) readMetadata(descriptor ModuleDescriptor, capabilities Capabilities) (metadata ModuleMetadata, metadataError error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			metadataError = fmt.Errorf(metadataPanicErrorTemplateConstant, descriptor.Name, recovered)
		}
	}()

	metadata = capabilities.Metadata()
	if len(strings.TrimSpace(metadata.Name)) == 0 {
		return metadata, fmt.Errorf(metadataNameMissingErrorTemplateConstant, descriptor.Name)
	}
	if !semver.IsValid(normalizeVersion(metadata.Version)) {
		return metadata, fmt.Errorf(invalidVersionErrorTemplateConstant, descriptor.Name, metadata.Version)
	}
	return metadata, nil
}

func (loader Loader) failedLoad(descriptor ModuleDescriptor, reason string) LoadResult {
	loader.logger.Warn(loaderModuleLoadFailedMessageConstant,
		zap.String(loaderModuleNameFieldNameConstant, descriptor.Name),
		zap.String(loaderFailureReasonFieldNameConstant, reason),
	)
	return LoadResult{ModuleName: descriptor.Name, Status: results.StatusFailed, ErrorDetail: reason}
}

func verifyCapabilities(capabilities Capabilities) (string, bool) {
	if capabilities.Metadata == nil {
		return CapabilityMetadataName, false
	}
	if capabilities.AvailablePlots == nil {
		return CapabilityAvailablePlotsName, false
	}
	if capabilities.GeneratePlot == nil {
		return CapabilityGeneratePlotName, false
	}
	if capabilities.GenerateBatch == nil {
		return CapabilityGenerateBatchName, false
	}
	return "", true
}

func normalizeVersion(version string) string {
	trimmedVersion := strings.TrimSpace(version)
	if len(trimmedVersion) == 0 {
		return trimmedVersion
	}
	if strings.HasPrefix(trimmedVersion, semverPrefixConstant) {
		return trimmedVersion
	}
	return semverPrefixConstant + trimmedVersion
}
