// Package pipeline sequences the run phases — data load, plot orchestration,
// artifact registration, report rendering — and aggregates a single top-level
// result with an overall quality score.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/plotforge/internal/dataload"
	"github.com/tyemirov/plotforge/internal/orchestrator"
	"github.com/tyemirov/plotforge/internal/registry"
	"github.com/tyemirov/plotforge/internal/report"
	"github.com/tyemirov/plotforge/internal/results"
)

// State identifies the driver's position in the run lifecycle.
type State string

// Pipeline states. Failed is terminal and reachable from any non-terminal
// state; today only a data-load failure and a fully empty plot phase take the
// pipeline there.
const (
	StateInitialized     State = "initialized"
	StateDataLoaded      State = "data_loaded"
	StatePlotsGenerated  State = "plots_generated"
	StateReportsRendered State = "reports_rendered"
	StateFinalized       State = "finalized"
	StateFailed          State = "failed"
)

// Phase result keys on the aggregated pipeline result.
const (
	PhaseDataLoad       = "data_load"
	PhasePlotGeneration = "plot_generation"
	PhaseReportRender   = "report_render"
)

const (
	pipelineResultNameConstant            = "pipeline"
	dataQualityWeightConstant             = 0.4
	plotQualityWeightConstant             = 0.6
	dataArtifactNameConstant              = "study_dataset"
	plotArtifactNameTemplateConstant      = "%s_%s"
	reportArtifactNameTemplateConstant    = "report_%s"
	registryPersistOperationNameConstant  = "persist"
	artifactRegisterOperationNameConstant = "register"
	zeroPlotsFatalMessageConstant         = "plot generation produced no artifacts"
	datasetValidationFailedDetailConstant = "validation failed"
	noModulesDiscoveredDetailConstant     = "no plot modules discovered"
	reportPhaseSkippedMessageConstant     = "report renderer unavailable; report phase skipped"
	pipelineCompleteMessageTemplate       = "pipeline finished with status %s"
	runStartMessageConstant               = "pipeline run starting"
	runStateMessageConstant               = "pipeline state transition"
	runStateFieldNameConstant             = "state"
	runDatasetFieldNameConstant           = "dataset"
	runQualityFieldNameConstant           = "overall_quality"
)

// BatchRunner executes the plot generation phase.
type BatchRunner interface {
	Orchestrate(executionContext context.Context, dataset dataload.Dataset, modulesRoot string, outputRoot string, options orchestrator.Options) orchestrator.BatchResult
}

// ArtifactRecorder is the slice of the registry service the driver mutates.
type ArtifactRecorder interface {
	Register(request registry.RegistrationRequest) (registry.Artifact, error)
	Persist(registryPath string) error
	Warnings() []string
}

// ReportRenderer renders the configured report templates.
type ReportRenderer interface {
	Available() bool
	RenderTemplates(executionContext context.Context, templatePaths []string, outputDirectory string) []report.RenderOutcome
}

// Driver owns one pipeline run.
type Driver struct {
	dataLoader       dataload.Loader
	batchRunner      BatchRunner
	artifactRecorder ArtifactRecorder
	reportRenderer   ReportRenderer
	logger           *zap.Logger
	currentState     State
}

// NewDriver constructs a Driver from its collaborators. A nil logger falls
// back to a no-op logger.
func NewDriver(dataLoader dataload.Loader, batchRunner BatchRunner, artifactRecorder ArtifactRecorder, reportRenderer ReportRenderer, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		dataLoader:       dataLoader,
		batchRunner:      batchRunner,
		artifactRecorder: artifactRecorder,
		reportRenderer:   reportRenderer,
		logger:           logger,
		currentState:     StateInitialized,
	}
}

// CurrentState reports the driver's lifecycle state.
func (driver *Driver) CurrentState() State {
	return driver.currentState
}

// Run executes the pipeline against the configuration and returns the final
// aggregated result. Only a data-load failure or an entirely empty plot phase
// is fatal; every later failure degrades the result to partial at worst while
// the complete error and warning accounting is preserved on the result.
func (driver *Driver) Run(executionContext context.Context, configuration Configuration) *results.Result {
	configuration = configuration.Sanitize()
	pipelineResult := results.NewResult(pipelineResultNameConstant)

	if configuration.RunTimeoutSeconds > 0 {
		var cancelRun context.CancelFunc
		executionContext, cancelRun = context.WithTimeout(executionContext, time.Duration(configuration.RunTimeoutSeconds)*time.Second)
		defer cancelRun()
	}

	driver.logger.Info(runStartMessageConstant, zap.String(runDatasetFieldNameConstant, configuration.DatasetPath))

	loadOutcome, fatalLoadError := driver.runDataLoadPhase(executionContext, configuration, pipelineResult)
	if fatalLoadError != nil {
		driver.transition(StateFailed)
		return pipelineResult.Finalize()
	}
	driver.transition(StateDataLoaded)

	batchResult, fatalBatchError := driver.runPlotPhase(executionContext, configuration, loadOutcome, pipelineResult)
	if fatalBatchError != nil {
		driver.transition(StateFailed)
		return pipelineResult.Finalize()
	}
	driver.transition(StatePlotsGenerated)

	driver.runReportPhase(executionContext, configuration, batchResult, pipelineResult)
	driver.transition(StateReportsRendered)

	overallQuality := OverallQuality(loadOutcome.QualityScore, batchResult.QualityScore)
	pipelineResult.AttachPhaseResult(runQualityFieldNameConstant, overallQuality)
	pipelineResult.SetStatus(pipelineResult.Status, fmt.Sprintf(pipelineCompleteMessageTemplate, pipelineResult.Status))
	driver.transition(StateFinalized)

	driver.logger.Info(runStateMessageConstant,
		zap.String(runStateFieldNameConstant, string(driver.currentState)),
		zap.Float64(runQualityFieldNameConstant, overallQuality),
	)
	return pipelineResult.Finalize()
}

func (driver *Driver) runDataLoadPhase(executionContext context.Context, configuration Configuration, pipelineResult *results.Result) (dataload.LoadOutcome, error) {
	loadOutcome, loadError := driver.dataLoader.Load(executionContext, configuration.DatasetPath, configuration.RequiredColumns)
	if loadError != nil {
		fatalError := DataLoadError{DatasetPath: configuration.DatasetPath, Detail: loadError.Error()}
		pipelineResult.AddError(fatalError.Error())
		return loadOutcome, fatalError
	}

	for _, warning := range loadOutcome.Warnings {
		pipelineResult.AddWarning(warning)
	}

	if loadOutcome.Status == results.StatusFailed {
		fatalError := DataLoadError{DatasetPath: configuration.DatasetPath, Detail: datasetValidationFailedDetailConstant}
		for _, loadErrorMessage := range loadOutcome.Errors {
			pipelineResult.AddError(DataLoadError{DatasetPath: configuration.DatasetPath, Detail: loadErrorMessage}.Error())
		}
		// A loader may signal fatality through the status alone. The result
		// still has to carry at least one error for the failed run.
		if len(loadOutcome.Errors) == 0 {
			pipelineResult.AddError(fatalError.Error())
		}
		return loadOutcome, fatalError
	}

	if loadOutcome.Status == results.StatusPartial {
		pipelineResult.SetStatus(results.StatusPartial, "")
	}

	pipelineResult.AttachPhaseResult(PhaseDataLoad, loadOutcome)
	return loadOutcome, nil
}

func (driver *Driver) runPlotPhase(executionContext context.Context, configuration Configuration, loadOutcome dataload.LoadOutcome, pipelineResult *results.Result) (orchestrator.BatchResult, error) {
	batchResult := driver.batchRunner.Orchestrate(executionContext, loadOutcome.Data, configuration.ModulesRoot, configuration.OutputRoot, orchestrator.Options{
		Resolution:      configuration.Resolution,
		ContinueOnError: configuration.ContinueOnError,
	})

	for _, warning := range batchResult.Warnings {
		pipelineResult.AddWarning(warning)
	}
	if batchResult.ModulesFound == 0 {
		pipelineResult.AddWarning(ModuleDiscoveryError{ModulesRoot: configuration.ModulesRoot, Detail: noModulesDiscoveredDetailConstant}.Error())
	}
	for _, loadFailure := range batchResult.LoadFailures {
		pipelineResult.AddWarning(ModuleLoadError{ModuleName: loadFailure.ModuleName, Detail: loadFailure.Detail}.Error())
	}
	for moduleName, moduleResults := range batchResult.ModuleResults {
		for itemIdentifier, plotResult := range moduleResults {
			if plotResult.Status == results.StatusFailed {
				pipelineResult.AddWarning(ItemGenerationError{ModuleName: moduleName, ItemIdentifier: itemIdentifier, Detail: plotResult.Err}.Error())
			}
		}
	}
	for _, batchError := range batchResult.Errors {
		pipelineResult.AddWarning(batchError)
	}

	pipelineResult.AttachPhaseResult(PhasePlotGeneration, batchResult)

	if batchResult.ModulesFound > 0 && batchResult.PlotsGenerated == 0 {
		pipelineResult.AddError(zeroPlotsFatalMessageConstant)
		return batchResult, errors.New(zeroPlotsFatalMessageConstant)
	}

	if batchResult.Status != results.StatusSuccess {
		pipelineResult.SetStatus(results.StatusPartial, "")
	}

	driver.registerRunArtifacts(configuration, loadOutcome, batchResult, pipelineResult)
	return batchResult, nil
}

func (driver *Driver) registerRunArtifacts(configuration Configuration, loadOutcome dataload.LoadOutcome, batchResult orchestrator.BatchResult, pipelineResult *results.Result) {
	runMetadata := map[string]string{registry.RunIdentifierMetadataKey: batchResult.RunID}

	dataArtifactRegistered := false
	if len(loadOutcome.Data.SourcePath) > 0 {
		_, registerError := driver.artifactRecorder.Register(registry.RegistrationRequest{
			Name:     dataArtifactNameConstant,
			Type:     registry.ArtifactTypeRawData,
			Workflow: configuration.WorkflowName,
			FilePath: loadOutcome.Data.SourcePath,
			Metadata: runMetadata,
		})
		if registerError != nil {
			pipelineResult.AddWarning(RegistryIOError{Operation: artifactRegisterOperationNameConstant, Cause: registerError}.Error())
		} else {
			dataArtifactRegistered = true
		}
	}

	for moduleName, moduleResults := range batchResult.ModuleResults {
		for itemIdentifier, plotResult := range moduleResults {
			if plotResult.Status == results.StatusFailed || len(plotResult.OutputPath) == 0 {
				continue
			}
			var inputArtifacts []string
			if dataArtifactRegistered {
				inputArtifacts = []string{dataArtifactNameConstant}
			}
			_, registerError := driver.artifactRecorder.Register(registry.RegistrationRequest{
				Name:           fmt.Sprintf(plotArtifactNameTemplateConstant, moduleName, itemIdentifier),
				Type:           registry.ArtifactTypePlot,
				Workflow:       configuration.WorkflowName,
				FilePath:       plotResult.OutputPath,
				InputArtifacts: inputArtifacts,
				Metadata:       runMetadata,
			})
			if registerError != nil {
				pipelineResult.AddWarning(RegistryIOError{Operation: artifactRegisterOperationNameConstant, Cause: registerError}.Error())
			}
		}
	}

	for _, integrityWarning := range driver.artifactRecorder.Warnings() {
		pipelineResult.AddWarning(integrityWarning)
	}

	if persistError := driver.artifactRecorder.Persist(configuration.RegistryPath); persistError != nil {
		pipelineResult.AddWarning(RegistryIOError{Operation: registryPersistOperationNameConstant, Cause: persistError}.Error())
	}
}

func (driver *Driver) runReportPhase(executionContext context.Context, configuration Configuration, batchResult orchestrator.BatchResult, pipelineResult *results.Result) {
	if len(configuration.ReportTemplates) == 0 {
		return
	}
	if !driver.reportRenderer.Available() {
		pipelineResult.AddWarning(reportPhaseSkippedMessageConstant)
		return
	}

	runMetadata := map[string]string{registry.RunIdentifierMetadataKey: batchResult.RunID}
	renderOutcomes := driver.reportRenderer.RenderTemplates(executionContext, configuration.ReportTemplates, configuration.ReportOutputRoot)
	pipelineResult.AttachPhaseResult(PhaseReportRender, renderOutcomes)

	registryDirty := false
	for _, renderOutcome := range renderOutcomes {
		if renderOutcome.Status == results.StatusFailed {
			pipelineResult.AddWarning(ReportRenderError{TemplatePath: renderOutcome.TemplatePath, Detail: renderOutcome.Err}.Error())
			pipelineResult.SetStatus(results.StatusPartial, "")
			continue
		}
		_, registerError := driver.artifactRecorder.Register(registry.RegistrationRequest{
			Name:     fmt.Sprintf(reportArtifactNameTemplateConstant, filepathBase(renderOutcome.OutputPath)),
			Type:     registry.ArtifactTypeReport,
			Workflow: configuration.WorkflowName,
			FilePath: renderOutcome.OutputPath,
			Metadata: runMetadata,
		})
		if registerError != nil {
			pipelineResult.AddWarning(RegistryIOError{Operation: artifactRegisterOperationNameConstant, Cause: registerError}.Error())
			continue
		}
		registryDirty = true
	}

	if registryDirty {
		if persistError := driver.artifactRecorder.Persist(configuration.RegistryPath); persistError != nil {
			pipelineResult.AddWarning(RegistryIOError{Operation: registryPersistOperationNameConstant, Cause: persistError}.Error())
		}
	}
}

// OverallQuality blends the data quality score with the aggregate plot
// quality score into the run-health indicator reported on the final result.
func OverallQuality(dataQuality float64, plotQuality float64) float64 {
	return dataQuality*dataQualityWeightConstant + plotQuality*plotQualityWeightConstant
}

func filepathBase(outputPath string) string {
	baseName := filepath.Base(outputPath)
	return strings.TrimSuffix(baseName, filepath.Ext(baseName))
}

func (driver *Driver) transition(nextState State) {
	driver.currentState = nextState
	driver.logger.Debug(runStateMessageConstant, zap.String(runStateFieldNameConstant, string(nextState)))
}
