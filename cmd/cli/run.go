package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tyemirov/plotforge/internal/dataload"
	"github.com/tyemirov/plotforge/internal/execshell"
	"github.com/tyemirov/plotforge/internal/orchestrator"
	"github.com/tyemirov/plotforge/internal/pipeline"
	_ "github.com/tyemirov/plotforge/internal/plotmods/histogram" // registers the builtin modules
	"github.com/tyemirov/plotforge/internal/plugins"
	"github.com/tyemirov/plotforge/internal/registry"
	"github.com/tyemirov/plotforge/internal/report"
	"github.com/tyemirov/plotforge/internal/results"
	"github.com/tyemirov/plotforge/internal/utils"
)

const (
	runCommandUseNameConstant             = "run"
	runCommandShortDescriptionConstant    = "Run the plot and report pipeline"
	runCommandLongDescriptionConstant     = "run loads the study dataset, executes every discovered plot module, registers the produced artifacts, and renders the configured report templates."
	datasetFlagNameConstant               = "dataset"
	datasetFlagUsageConstant              = "Path to the study dataset CSV file."
	requiredColumnFlagNameConstant        = "required-column"
	requiredColumnFlagUsageConstant       = "Column that must be present in the dataset (repeatable)."
	modulesRootFlagNameConstant           = "modules-root"
	modulesRootFlagUsageConstant          = "Directory scanned for plot modules."
	outputRootFlagNameConstant            = "output-root"
	outputRootFlagUsageConstant           = "Directory receiving generated plot artifacts."
	registryPathFlagNameConstant          = "registry"
	registryPathFlagUsageConstant         = "Path to the artifact registry file."
	reportTemplateFlagNameConstant        = "report-template"
	reportTemplateFlagUsageConstant       = "Report template to render after plot generation (repeatable)."
	reportOutputFlagNameConstant          = "report-output"
	reportOutputFlagUsageConstant         = "Directory receiving rendered reports."
	rendererCommandFlagNameConstant       = "renderer"
	rendererCommandFlagUsageConstant      = "Executable used to render report templates."
	resolutionFlagNameConstant            = "resolution"
	resolutionFlagUsageConstant           = "Plot resolution in dots per inch."
	continueOnErrorFlagNameConstant       = "continue-on-error"
	continueOnErrorFlagUsageConstant      = "Keep generating remaining plots after an item fails."
	runTimeoutFlagNameConstant            = "timeout-seconds"
	runTimeoutFlagUsageConstant           = "Abort the run after this many seconds (0 disables the timeout)."
	datasetRequiredErrorMessageConstant   = "a dataset path is required; set --dataset or pipeline.dataset_path"
	executorCreationErrorTemplateConstant = "unable to create shell executor: %w"
	pipelineFailedErrorTemplateConstant   = "pipeline failed: %s"
	runSummaryTemplateConstant            = "pipeline %s: status=%s duration=%s errors=%d warnings=%d\n"
	runDiagnosticTemplateConstant         = "  %s: %s\n"
	errorDiagnosticLabelConstant          = "error"
	warningDiagnosticLabelConstant        = "warning"
	partialRunMessageConstant             = "pipeline completed with partial results"
	runConfigurationSourceMessageConstant = "pipeline configuration resolved"
	runRecordedMessageConstant            = "pipeline run recorded"
	logFieldRunIdentifierConstant         = "run_id"
)

func (application *Application) newRunCommand() *cobra.Command {
	runCommand := &cobra.Command{
		Use:   runCommandUseNameConstant,
		Short: runCommandShortDescriptionConstant,
		Long:  runCommandLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.executeRun(command)
		},
	}

	flagSet := runCommand.Flags()
	flagSet.String(datasetFlagNameConstant, "", datasetFlagUsageConstant)
	flagSet.StringArray(requiredColumnFlagNameConstant, nil, requiredColumnFlagUsageConstant)
	flagSet.String(modulesRootFlagNameConstant, "", modulesRootFlagUsageConstant)
	flagSet.String(outputRootFlagNameConstant, "", outputRootFlagUsageConstant)
	flagSet.String(registryPathFlagNameConstant, "", registryPathFlagUsageConstant)
	flagSet.StringArray(reportTemplateFlagNameConstant, nil, reportTemplateFlagUsageConstant)
	flagSet.String(reportOutputFlagNameConstant, "", reportOutputFlagUsageConstant)
	flagSet.String(rendererCommandFlagNameConstant, "", rendererCommandFlagUsageConstant)
	flagSet.Int(resolutionFlagNameConstant, 0, resolutionFlagUsageConstant)
	flagSet.Bool(continueOnErrorFlagNameConstant, true, continueOnErrorFlagUsageConstant)
	flagSet.Int(runTimeoutFlagNameConstant, 0, runTimeoutFlagUsageConstant)

	return runCommand
}

func (application *Application) executeRun(command *cobra.Command) error {
	pipelineConfiguration := application.resolvePipelineConfiguration(command)
	if len(pipelineConfiguration.DatasetPath) == 0 {
		return errors.New(datasetRequiredErrorMessageConstant)
	}

	driver, driverError := application.buildDriver(pipelineConfiguration)
	if driverError != nil {
		return driverError
	}

	if configurationFilePath, available := application.commandContextAccessor.ConfigurationFilePath(command.Context()); available {
		application.logger.Debug(runConfigurationSourceMessageConstant, zap.String(logFieldConfigFileConstant, configurationFilePath))
	}

	pipelineResult := driver.Run(command.Context(), pipelineConfiguration)
	if batchResult, attached := pipelineResult.PhaseResults[pipeline.PhasePlotGeneration].(orchestrator.BatchResult); attached {
		command.SetContext(application.commandContextAccessor.WithRunIdentifier(command.Context(), batchResult.RunID))
	}
	application.reportRunResult(command, pipelineResult)

	if pipelineResult.Status == results.StatusFailed {
		failureDetail := pipelineResult.Message
		if len(failureDetail) == 0 && len(pipelineResult.Errors) > 0 {
			failureDetail = pipelineResult.Errors[0]
		}
		return fmt.Errorf(pipelineFailedErrorTemplateConstant, failureDetail)
	}
	if pipelineResult.Status == results.StatusPartial {
		application.logger.Warn(partialRunMessageConstant, zap.Strings("warnings", pipelineResult.Warnings))
	}
	return nil
}

// resolvePipelineConfiguration overlays any run flags the invocation changed
// onto the persisted pipeline configuration.
func (application *Application) resolvePipelineConfiguration(command *cobra.Command) pipeline.Configuration {
	pipelineConfiguration := application.configuration.Pipeline

	flagSet := command.Flags()
	applyStringFlagOverride(flagSet, datasetFlagNameConstant, &pipelineConfiguration.DatasetPath)
	applyStringArrayFlagOverride(flagSet, requiredColumnFlagNameConstant, &pipelineConfiguration.RequiredColumns)
	applyStringFlagOverride(flagSet, modulesRootFlagNameConstant, &pipelineConfiguration.ModulesRoot)
	applyStringFlagOverride(flagSet, outputRootFlagNameConstant, &pipelineConfiguration.OutputRoot)
	applyStringFlagOverride(flagSet, registryPathFlagNameConstant, &pipelineConfiguration.RegistryPath)
	applyStringArrayFlagOverride(flagSet, reportTemplateFlagNameConstant, &pipelineConfiguration.ReportTemplates)
	applyStringFlagOverride(flagSet, reportOutputFlagNameConstant, &pipelineConfiguration.ReportOutputRoot)
	applyStringFlagOverride(flagSet, rendererCommandFlagNameConstant, &pipelineConfiguration.RendererCommand)
	applyIntFlagOverride(flagSet, resolutionFlagNameConstant, &pipelineConfiguration.Resolution)
	applyBoolFlagOverride(flagSet, continueOnErrorFlagNameConstant, &pipelineConfiguration.ContinueOnError)
	applyIntFlagOverride(flagSet, runTimeoutFlagNameConstant, &pipelineConfiguration.RunTimeoutSeconds)

	return pipelineConfiguration.Sanitize()
}

func applyStringFlagOverride(flagSet *pflag.FlagSet, flagName string, target *string) {
	if flagSet.Changed(flagName) {
		*target, _ = flagSet.GetString(flagName)
	}
}

func applyStringArrayFlagOverride(flagSet *pflag.FlagSet, flagName string, target *[]string) {
	if flagSet.Changed(flagName) {
		*target, _ = flagSet.GetStringArray(flagName)
	}
}

func applyIntFlagOverride(flagSet *pflag.FlagSet, flagName string, target *int) {
	if flagSet.Changed(flagName) {
		*target, _ = flagSet.GetInt(flagName)
	}
}

func applyBoolFlagOverride(flagSet *pflag.FlagSet, flagName string, target *bool) {
	if flagSet.Changed(flagName) {
		*target, _ = flagSet.GetBool(flagName)
	}
}

func (application *Application) buildDriver(pipelineConfiguration pipeline.Configuration) (*pipeline.Driver, error) {
	shellExecutor, executorError := execshell.NewShellExecutor(application.logger, execshell.NewOSCommandRunner())
	if executorError != nil {
		return nil, fmt.Errorf(executorCreationErrorTemplateConstant, executorError)
	}

	moduleDiscoverer := plugins.NewDiscoverer(application.logger)
	moduleLoader := plugins.NewLoader(plugins.DefaultCatalog(), application.logger)
	batchRunner := orchestrator.NewOrchestrator(moduleDiscoverer, moduleLoader, application.logger)
	registryService := registry.InitFromFile(pipelineConfiguration.RegistryPath, application.logger)
	reportRenderer := report.NewRenderer(shellExecutor, pipelineConfiguration.RendererCommand, execshell.LookupExecutable, application.logger)

	driver := pipeline.NewDriver(dataload.NewCSVLoader(), batchRunner, registryService, reportRenderer, application.logger)
	return driver, nil
}

func (application *Application) reportRunResult(command *cobra.Command, pipelineResult *results.Result) {
	if runIdentifier, available := application.commandContextAccessor.RunIdentifier(command.Context()); available {
		application.logger.Info(runRecordedMessageConstant, zap.String(logFieldRunIdentifierConstant, runIdentifier))
	}

	output := utils.NewFlushingWriter(command.OutOrStdout())
	fmt.Fprintf(output, runSummaryTemplateConstant,
		pipelineResult.Name,
		pipelineResult.Status,
		pipelineResult.Duration,
		len(pipelineResult.Errors),
		len(pipelineResult.Warnings),
	)
	for _, errorMessage := range pipelineResult.Errors {
		fmt.Fprintf(output, runDiagnosticTemplateConstant, errorDiagnosticLabelConstant, errorMessage)
	}
	for _, warningMessage := range pipelineResult.Warnings {
		fmt.Fprintf(output, runDiagnosticTemplateConstant, warningDiagnosticLabelConstant, warningMessage)
	}
}
