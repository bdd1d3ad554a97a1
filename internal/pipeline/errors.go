package pipeline

import "fmt"

const (
	dataLoadErrorMessageTemplateConstant       = "data load failed for %s: %s"
	moduleDiscoveryErrorMessageTemplate        = "module discovery under %s: %s"
	moduleLoadErrorMessageTemplateConstant     = "module %s failed to load: %s"
	itemGenerationErrorMessageTemplateConstant = "item %s in module %s failed: %s"
	registryIOErrorMessageTemplateConstant     = "registry operation %s failed: %v"
	reportRenderErrorMessageTemplateConstant   = "report %s failed to render: %s"
)

// DataLoadError is the only fatal error in the pipeline taxonomy: the run
// aborts immediately when the dataset cannot be loaded or validated.
type DataLoadError struct {
	DatasetPath string
	Detail      string
}

// Error describes the failed data load.
func (loadError DataLoadError) Error() string {
	return fmt.Sprintf(dataLoadErrorMessageTemplateConstant, loadError.DatasetPath, loadError.Detail)
}

// ModuleDiscoveryError reports a discovery pass that produced no usable
// modules. Non-fatal: the run continues with an empty module set and a warning.
type ModuleDiscoveryError struct {
	ModulesRoot string
	Detail      string
}

// Error describes the discovery failure.
func (discoveryError ModuleDiscoveryError) Error() string {
	return fmt.Sprintf(moduleDiscoveryErrorMessageTemplate, discoveryError.ModulesRoot, discoveryError.Detail)
}

// ModuleLoadError reports a module that could not be loaded. Non-fatal: the
// module is skipped and the remaining modules run.
type ModuleLoadError struct {
	ModuleName string
	Detail     string
}

// Error describes the load failure.
func (loadError ModuleLoadError) Error() string {
	return fmt.Sprintf(moduleLoadErrorMessageTemplateConstant, loadError.ModuleName, loadError.Detail)
}

// ItemGenerationError reports a single failed plot item. Non-fatal: the batch
// continues unless continue-on-error was disabled.
type ItemGenerationError struct {
	ModuleName     string
	ItemIdentifier string
	Detail         string
}

// Error describes the item failure.
func (itemError ItemGenerationError) Error() string {
	return fmt.Sprintf(itemGenerationErrorMessageTemplateConstant, itemError.ItemIdentifier, itemError.ModuleName, itemError.Detail)
}

// RegistryIOError reports a failed registry persistence call. Non-fatal: the
// run proceeds without persistence for that call.
type RegistryIOError struct {
	Operation string
	Cause     error
}

// Error describes the registry failure.
func (registryError RegistryIOError) Error() string {
	return fmt.Sprintf(registryIOErrorMessageTemplateConstant, registryError.Operation, registryError.Cause)
}

// Unwrap exposes the underlying cause.
func (registryError RegistryIOError) Unwrap() error {
	return registryError.Cause
}

// ReportRenderError reports a failed report template. Non-fatal: the report is
// marked failed and the run degrades at most to partial.
type ReportRenderError struct {
	TemplatePath string
	Detail       string
}

// Error describes the render failure.
func (renderError ReportRenderError) Error() string {
	return fmt.Sprintf(reportRenderErrorMessageTemplateConstant, renderError.TemplatePath, renderError.Detail)
}
