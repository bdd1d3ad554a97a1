package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/plotforge/internal/dataload"
	"github.com/tyemirov/plotforge/internal/orchestrator"
	"github.com/tyemirov/plotforge/internal/pipeline"
	"github.com/tyemirov/plotforge/internal/plugins"
	"github.com/tyemirov/plotforge/internal/registry"
	"github.com/tyemirov/plotforge/internal/report"
	"github.com/tyemirov/plotforge/internal/results"
)

const (
	testDatasetPathConstant   = "study.csv"
	testRunIdentifierConstant = "run-test"
	testModuleNameConstant    = "distributions"
	testTemplatePathConstant  = "reports/summary.md"
)

type stubDataLoader struct {
	outcome   dataload.LoadOutcome
	loadError error
}

func (loader stubDataLoader) Load(executionContext context.Context, datasetPath string, requiredColumns []string) (dataload.LoadOutcome, error) {
	return loader.outcome, loader.loadError
}

type stubBatchRunner struct {
	batchResult orchestrator.BatchResult
}

func (runner stubBatchRunner) Orchestrate(executionContext context.Context, dataset dataload.Dataset, modulesRoot string, outputRoot string, options orchestrator.Options) orchestrator.BatchResult {
	return runner.batchResult
}

type recordingArtifactRecorder struct {
	registeredRequests []registry.RegistrationRequest
	persistCount       int
	registerError      error
	persistError       error
}

func (recorder *recordingArtifactRecorder) Register(request registry.RegistrationRequest) (registry.Artifact, error) {
	if recorder.registerError != nil {
		return registry.Artifact{}, recorder.registerError
	}
	recorder.registeredRequests = append(recorder.registeredRequests, request)
	return registry.Artifact{Name: request.Name}, nil
}

func (recorder *recordingArtifactRecorder) Persist(registryPath string) error {
	recorder.persistCount++
	return recorder.persistError
}

func (recorder *recordingArtifactRecorder) Warnings() []string {
	return nil
}

type stubReportRenderer struct {
	available bool
	outcomes  []report.RenderOutcome
}

func (renderer stubReportRenderer) Available() bool {
	return renderer.available
}

func (renderer stubReportRenderer) RenderTemplates(executionContext context.Context, templatePaths []string, outputDirectory string) []report.RenderOutcome {
	return renderer.outcomes
}

func healthyLoadOutcome() dataload.LoadOutcome {
	return dataload.LoadOutcome{
		Data:         dataload.Dataset{SourcePath: testDatasetPathConstant, Columns: []string{"subject", "score"}},
		RowCount:     10,
		ColumnCount:  2,
		QualityScore: 80,
		Status:       results.StatusSuccess,
	}
}

func successfulBatchResult(generatedCount int) orchestrator.BatchResult {
	moduleResults := map[string]plugins.PlotResult{}
	for itemIndex := 0; itemIndex < generatedCount; itemIndex++ {
		identifier := string(rune('a' + itemIndex))
		moduleResults[identifier] = plugins.PlotResult{Status: results.StatusSuccess, OutputPath: identifier + ".png", QualityScore: 90}
	}
	return orchestrator.BatchResult{
		RunID:          testRunIdentifierConstant,
		ModulesFound:   1,
		ModulesLoaded:  1,
		PlotsGenerated: generatedCount,
		SuccessRate:    1,
		QualityScore:   90,
		Status:         results.StatusSuccess,
		ModuleResults:  map[string]map[string]plugins.PlotResult{testModuleNameConstant: moduleResults},
	}
}

func TestRunFailsFatallyOnMissingColumn(testInstance *testing.T) {
	failedOutcome := dataload.LoadOutcome{
		Status: results.StatusFailed,
		Errors: []string{`required column "treatment" not present in dataset`},
	}
	driver := pipeline.NewDriver(stubDataLoader{outcome: failedOutcome}, stubBatchRunner{}, &recordingArtifactRecorder{}, stubReportRenderer{}, nil)

	pipelineResult := driver.Run(context.Background(), pipeline.Configuration{DatasetPath: testDatasetPathConstant})

	require.Equal(testInstance, results.StatusFailed, pipelineResult.Status)
	require.NotEmpty(testInstance, pipelineResult.Errors)
	require.NotContains(testInstance, pipelineResult.PhaseResults, pipeline.PhasePlotGeneration)
	require.Equal(testInstance, pipeline.StateFailed, driver.CurrentState())
}

func TestRunFailedLoadWithoutErrorDetailStillFailsResult(testInstance *testing.T) {
	statusOnlyOutcome := dataload.LoadOutcome{Status: results.StatusFailed}
	driver := pipeline.NewDriver(stubDataLoader{outcome: statusOnlyOutcome}, stubBatchRunner{}, &recordingArtifactRecorder{}, stubReportRenderer{}, nil)

	pipelineResult := driver.Run(context.Background(), pipeline.Configuration{DatasetPath: testDatasetPathConstant})

	require.Equal(testInstance, results.StatusFailed, pipelineResult.Status)
	require.NotEmpty(testInstance, pipelineResult.Errors)
	require.Contains(testInstance, pipelineResult.Errors[0], testDatasetPathConstant)
	require.Equal(testInstance, pipeline.StateFailed, driver.CurrentState())
}

func TestRunFailsFatallyOnLoaderError(testInstance *testing.T) {
	driver := pipeline.NewDriver(stubDataLoader{loadError: errors.New("io failure")}, stubBatchRunner{}, &recordingArtifactRecorder{}, stubReportRenderer{}, nil)

	pipelineResult := driver.Run(context.Background(), pipeline.Configuration{DatasetPath: testDatasetPathConstant})

	require.Equal(testInstance, results.StatusFailed, pipelineResult.Status)
	require.False(testInstance, pipelineResult.EndTime.IsZero())
}

func TestRunModuleLoadFailureDegradesToPartial(testInstance *testing.T) {
	batchResult := successfulBatchResult(5)
	batchResult.ModulesFound = 2
	batchResult.ModulesFailed = 1
	batchResult.Status = results.StatusPartial
	batchResult.LoadFailures = []orchestrator.ModuleLoadFailure{{ModuleName: "correlations", Detail: "no registered implementation"}}

	recorder := &recordingArtifactRecorder{}
	driver := pipeline.NewDriver(stubDataLoader{outcome: healthyLoadOutcome()}, stubBatchRunner{batchResult: batchResult}, recorder, stubReportRenderer{}, nil)

	pipelineResult := driver.Run(context.Background(), pipeline.Configuration{DatasetPath: testDatasetPathConstant})

	require.Equal(testInstance, results.StatusPartial, pipelineResult.Status)
	require.Equal(testInstance, pipeline.StateFinalized, driver.CurrentState())
	require.NotEmpty(testInstance, pipelineResult.Warnings)
	expectedLoadWarning := pipeline.ModuleLoadError{ModuleName: "correlations", Detail: "no registered implementation"}.Error()
	require.Contains(testInstance, pipelineResult.Warnings, expectedLoadWarning)

	attachedBatch, attached := pipelineResult.PhaseResults[pipeline.PhasePlotGeneration].(orchestrator.BatchResult)
	require.True(testInstance, attached)
	require.Equal(testInstance, 2, attachedBatch.ModulesFound)
	require.Equal(testInstance, 1, attachedBatch.ModulesLoaded)
	require.Equal(testInstance, 5, attachedBatch.PlotsGenerated)
	require.Zero(testInstance, attachedBatch.PlotsFailed)
}

func TestRunItemFailuresFoldIntoWarnings(testInstance *testing.T) {
	batchResult := successfulBatchResult(2)
	batchResult.PlotsFailed = 1
	batchResult.Status = results.StatusPartial
	batchResult.ModuleResults[testModuleNameConstant]["broken_item"] = plugins.PlotResult{Status: results.StatusFailed, Err: "item exploded"}

	driver := pipeline.NewDriver(stubDataLoader{outcome: healthyLoadOutcome()}, stubBatchRunner{batchResult: batchResult}, &recordingArtifactRecorder{}, stubReportRenderer{}, nil)

	pipelineResult := driver.Run(context.Background(), pipeline.Configuration{DatasetPath: testDatasetPathConstant})

	require.Equal(testInstance, results.StatusPartial, pipelineResult.Status)
	expectedItemWarning := pipeline.ItemGenerationError{ModuleName: testModuleNameConstant, ItemIdentifier: "broken_item", Detail: "item exploded"}.Error()
	require.Contains(testInstance, pipelineResult.Warnings, expectedItemWarning)
}

func TestRunWithoutModulesWarnsAboutDiscovery(testInstance *testing.T) {
	driver := pipeline.NewDriver(stubDataLoader{outcome: healthyLoadOutcome()}, stubBatchRunner{}, &recordingArtifactRecorder{}, stubReportRenderer{}, nil)

	pipelineResult := driver.Run(context.Background(), pipeline.Configuration{DatasetPath: testDatasetPathConstant, ModulesRoot: "modules"})

	require.NotEqual(testInstance, results.StatusFailed, pipelineResult.Status)
	require.Len(testInstance, pipelineResult.Warnings, 1)
	require.Contains(testInstance, pipelineResult.Warnings[0], "modules")
}

func TestRunZeroPlotsWithModulesIsFatal(testInstance *testing.T) {
	batchResult := orchestrator.BatchResult{
		RunID:        testRunIdentifierConstant,
		ModulesFound: 1,
		Status:       results.StatusFailed,
	}
	driver := pipeline.NewDriver(stubDataLoader{outcome: healthyLoadOutcome()}, stubBatchRunner{batchResult: batchResult}, &recordingArtifactRecorder{}, stubReportRenderer{}, nil)

	pipelineResult := driver.Run(context.Background(), pipeline.Configuration{DatasetPath: testDatasetPathConstant})

	require.Equal(testInstance, results.StatusFailed, pipelineResult.Status)
	require.Equal(testInstance, pipeline.StateFailed, driver.CurrentState())
}

func TestRunRegistersArtifactsWithRunIdentifier(testInstance *testing.T) {
	recorder := &recordingArtifactRecorder{}
	driver := pipeline.NewDriver(stubDataLoader{outcome: healthyLoadOutcome()}, stubBatchRunner{batchResult: successfulBatchResult(2)}, recorder, stubReportRenderer{}, nil)

	pipelineResult := driver.Run(context.Background(), pipeline.Configuration{DatasetPath: testDatasetPathConstant})

	require.Equal(testInstance, results.StatusSuccess, pipelineResult.Status)
	require.Len(testInstance, recorder.registeredRequests, 3)
	require.Positive(testInstance, recorder.persistCount)
	for _, request := range recorder.registeredRequests {
		require.Equal(testInstance, testRunIdentifierConstant, request.Metadata[registry.RunIdentifierMetadataKey])
	}
}

func TestRunRegistryPersistFailureIsWarning(testInstance *testing.T) {
	recorder := &recordingArtifactRecorder{persistError: errors.New("disk full")}
	driver := pipeline.NewDriver(stubDataLoader{outcome: healthyLoadOutcome()}, stubBatchRunner{batchResult: successfulBatchResult(1)}, recorder, stubReportRenderer{}, nil)

	pipelineResult := driver.Run(context.Background(), pipeline.Configuration{DatasetPath: testDatasetPathConstant})

	require.NotEqual(testInstance, results.StatusFailed, pipelineResult.Status)
	require.NotEmpty(testInstance, pipelineResult.Warnings)
}

func TestRunReportRendererUnavailableSkipsPhase(testInstance *testing.T) {
	driver := pipeline.NewDriver(stubDataLoader{outcome: healthyLoadOutcome()}, stubBatchRunner{batchResult: successfulBatchResult(1)}, &recordingArtifactRecorder{}, stubReportRenderer{available: false}, nil)

	pipelineResult := driver.Run(context.Background(), pipeline.Configuration{
		DatasetPath:     testDatasetPathConstant,
		ReportTemplates: []string{testTemplatePathConstant},
	})

	require.Equal(testInstance, results.StatusSuccess, pipelineResult.Status)
	require.NotEmpty(testInstance, pipelineResult.Warnings)
	require.NotContains(testInstance, pipelineResult.PhaseResults, pipeline.PhaseReportRender)
}

func TestRunReportFailureDegradesToPartial(testInstance *testing.T) {
	renderer := stubReportRenderer{
		available: true,
		outcomes: []report.RenderOutcome{
			{TemplatePath: testTemplatePathConstant, Status: results.StatusFailed, Err: "renderer exploded"},
		},
	}
	driver := pipeline.NewDriver(stubDataLoader{outcome: healthyLoadOutcome()}, stubBatchRunner{batchResult: successfulBatchResult(1)}, &recordingArtifactRecorder{}, renderer, nil)

	pipelineResult := driver.Run(context.Background(), pipeline.Configuration{
		DatasetPath:     testDatasetPathConstant,
		ReportTemplates: []string{testTemplatePathConstant},
	})

	require.Equal(testInstance, results.StatusPartial, pipelineResult.Status)
	require.NotEmpty(testInstance, pipelineResult.Warnings)
}

func TestOverallQualityWeightedBlend(testInstance *testing.T) {
	require.InDelta(testInstance, 86.0, pipeline.OverallQuality(80, 90), 0.01)
}
