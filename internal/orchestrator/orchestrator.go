// Package orchestrator executes every discovered plot module over its work
// items, collecting per-item results without letting one bad module or item
// abort the batch.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tyemirov/plotforge/internal/dataload"
	"github.com/tyemirov/plotforge/internal/plugins"
	"github.com/tyemirov/plotforge/internal/results"
)

const (
	noItemsAttemptedWarningConstant         = "no plot items were attempted; success rate reported as 0"
	moduleBatchPanicTemplateConstant        = "module %s batch generation panicked: %v"
	moduleOutputDirErrorTemplateConstant    = "unable to create output directory for module %s: %v"
	itemAbortedMessageTemplateConstant      = "module %s aborted after first failure; %d items not attempted"
	batchStartMessageConstant               = "batch plot generation starting"
	batchCompleteMessageConstant            = "batch plot generation complete"
	batchRunFieldNameConstant               = "run_id"
	batchModulesRootFieldNameConstant       = "modules_root"
	batchModulesFoundFieldNameConstant      = "modules_found"
	batchPlotsGeneratedFieldNameConstant    = "plots_generated"
	batchPlotsFailedFieldNameConstant       = "plots_failed"
	moduleOutputDirectoryPermissionConstant = 0o755
)

// ModuleLoadFailure records one module that could not be loaded.
type ModuleLoadFailure struct {
	ModuleName string
	Detail     string
}

// BatchResult aggregates the outcome of one orchestration pass. Load failures
// are reported structurally through LoadFailures and per-item failures through
// ModuleResults; Errors carries only module-level faults such as a panicking
// batch call or an unwritable output directory.
type BatchResult struct {
	RunID          string
	ModulesFound   int
	ModulesLoaded  int
	ModulesFailed  int
	PlotsGenerated int
	PlotsFailed    int
	SuccessRate    float64
	QualityScore   float64
	Duration       time.Duration
	Status         results.Status
	LoadFailures   []ModuleLoadFailure
	Errors         []string
	Warnings       []string
	ModuleResults  map[string]map[string]plugins.PlotResult
}

// ModuleDiscoverer locates candidate modules under a plugin root.
type ModuleDiscoverer interface {
	DiscoverModules(pluginRoot string) ([]plugins.ModuleDescriptor, error)
}

// ModuleLoader turns a descriptor into a verified module instance.
type ModuleLoader interface {
	LoadModule(descriptor plugins.ModuleDescriptor) plugins.LoadResult
}

// Options carries the orchestration parameters shared by every module.
type Options struct {
	Resolution      int
	ContinueOnError bool
}

// Orchestrator runs module batches sequentially in discovery order.
type Orchestrator struct {
	discoverer ModuleDiscoverer
	loader     ModuleLoader
	logger     *zap.Logger
}

// NewOrchestrator constructs an Orchestrator. A nil logger falls back to a
// no-op logger.
func NewOrchestrator(discoverer ModuleDiscoverer, loader ModuleLoader, logger *zap.Logger) Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Orchestrator{discoverer: discoverer, loader: loader, logger: logger}
}

// Orchestrate discovers, loads, and executes every module, merging per-item
// results keyed by module name then item identifier. Individual failures are
// recorded and never abort the pass; only the shape of the final tallies
// distinguishes a clean run from a degraded one.
func (orchestrator Orchestrator) Orchestrate(executionContext context.Context, dataset dataload.Dataset, modulesRoot string, outputRoot string, options Options) BatchResult {
	startTime := time.Now()
	batchResult := BatchResult{
		RunID:         uuid.NewString(),
		Status:        results.StatusSuccess,
		ModuleResults: map[string]map[string]plugins.PlotResult{},
	}

	orchestrator.logger.Info(batchStartMessageConstant,
		zap.String(batchRunFieldNameConstant, batchResult.RunID),
		zap.String(batchModulesRootFieldNameConstant, modulesRoot),
	)

	descriptors, _ := orchestrator.discoverer.DiscoverModules(modulesRoot)
	batchResult.ModulesFound = len(descriptors)

	qualityTotal := 0.0
	attemptedItems := 0

	for _, descriptor := range descriptors {
		loadResult := orchestrator.loader.LoadModule(descriptor)
		if loadResult.Status != results.StatusSuccess || loadResult.Instance == nil {
			batchResult.ModulesFailed++
			batchResult.Status = results.StatusPartial
			batchResult.LoadFailures = append(batchResult.LoadFailures, ModuleLoadFailure{ModuleName: descriptor.Name, Detail: loadResult.ErrorDetail})
			continue
		}
		batchResult.ModulesLoaded++

		moduleResults := orchestrator.runModuleBatch(executionContext, dataset, loadResult.Instance, outputRoot, options, &batchResult)
		batchResult.ModuleResults[descriptor.Name] = moduleResults

		for _, plotResult := range moduleResults {
			attemptedItems++
			if plotResult.Status == results.StatusFailed {
				batchResult.PlotsFailed++
				batchResult.Status = results.StatusPartial
				continue
			}
			batchResult.PlotsGenerated++
			qualityTotal += plotResult.QualityScore
		}
	}

	if attemptedItems == 0 {
		batchResult.SuccessRate = 0
		batchResult.Warnings = append(batchResult.Warnings, noItemsAttemptedWarningConstant)
	} else {
		batchResult.SuccessRate = float64(batchResult.PlotsGenerated) / float64(attemptedItems)
		batchResult.QualityScore = qualityTotal / float64(attemptedItems)
	}

	if batchResult.ModulesFound > 0 && batchResult.ModulesLoaded == 0 {
		batchResult.Status = results.StatusFailed
	}

	batchResult.Duration = time.Since(startTime)
	orchestrator.logger.Info(batchCompleteMessageConstant,
		zap.String(batchRunFieldNameConstant, batchResult.RunID),
		zap.Int(batchModulesFoundFieldNameConstant, batchResult.ModulesFound),
		zap.Int(batchPlotsGeneratedFieldNameConstant, batchResult.PlotsGenerated),
		zap.Int(batchPlotsFailedFieldNameConstant, batchResult.PlotsFailed),
	)
	return batchResult
}

// runModuleBatch invokes one module's batch entry point inside a panic
// boundary. A panicking module yields a failed result per planned item rather
// than taking down the run.
func (orchestrator Orchestrator) runModuleBatch(executionContext context.Context, dataset dataload.Dataset, instance *plugins.ModuleInstance, outputRoot string, options Options, batchResult *BatchResult) (moduleResults map[string]plugins.PlotResult) {
	moduleName := instance.Descriptor.Name
	moduleOutputDirectory := filepath.Join(outputRoot, moduleName)

	plannedJobs := instance.AvailablePlots()
	identifiers := make([]string, 0, len(plannedJobs))
	for _, plannedJob := range plannedJobs {
		identifiers = append(identifiers, plannedJob.Identifier)
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			panicMessage := fmt.Sprintf(moduleBatchPanicTemplateConstant, moduleName, recovered)
			batchResult.Errors = append(batchResult.Errors, panicMessage)
			batchResult.Status = results.StatusPartial
			moduleResults = map[string]plugins.PlotResult{}
			for _, identifier := range identifiers {
				moduleResults[identifier] = plugins.PlotResult{Status: results.StatusFailed, Err: panicMessage}
			}
		}
	}()

	if directoryError := os.MkdirAll(moduleOutputDirectory, moduleOutputDirectoryPermissionConstant); directoryError != nil {
		directoryMessage := fmt.Sprintf(moduleOutputDirErrorTemplateConstant, moduleName, directoryError)
		batchResult.Errors = append(batchResult.Errors, directoryMessage)
		moduleResults = map[string]plugins.PlotResult{}
		for _, identifier := range identifiers {
			moduleResults[identifier] = plugins.PlotResult{Status: results.StatusFailed, Err: directoryMessage}
		}
		return moduleResults
	}

	generationOptions := plugins.GenerationOptions{
		OutputDirectory: moduleOutputDirectory,
		Resolution:      options.Resolution,
		ContinueOnError: options.ContinueOnError,
	}

	moduleResults = instance.GenerateBatch()(executionContext, dataset, identifiers, generationOptions)
	if moduleResults == nil {
		moduleResults = map[string]plugins.PlotResult{}
	}

	if !options.ContinueOnError && len(moduleResults) < len(identifiers) {
		orchestrator.logger.Warn(fmt.Sprintf(itemAbortedMessageTemplateConstant, moduleName, len(identifiers)-len(moduleResults)))
	}
	return moduleResults
}
