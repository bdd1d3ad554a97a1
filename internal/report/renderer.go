// Package report invokes the external document renderer for each configured
// report template. Rendering is best effort: the renderer being absent skips
// the phase, and a failed template becomes a warning on the run rather than a
// pipeline failure.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/plotforge/internal/execshell"
	"github.com/tyemirov/plotforge/internal/results"
)

const (
	// DefaultRendererCommand is the conventional markdown-to-HTML compiler.
	DefaultRendererCommand = "pandoc"

	renderedReportExtensionConstant         = ".html"
	rendererOutputFlagConstant              = "--output"
	rendererStandaloneFlagConstant          = "--standalone"
	rendererUnavailableMessageConstant      = "report renderer unavailable; skipping report phase"
	rendererTemplateMissingTemplateConstant = "report template %s not found"
	rendererFailureTemplateConstant         = "rendering %s failed: %v"
	rendererOutputMissingTemplateConstant   = "renderer exited cleanly but %s was not produced"
	rendererOutputDirectoryErrorTemplate    = "unable to create report output directory %s: %w"
	renderCompleteMessageConstant           = "report rendered"
	rendererCommandFieldNameConstant        = "renderer"
	reportTemplateFieldNameConstant         = "template"
	reportOutputFieldNameConstant           = "output"
	reportOutputDirectoryPermissionConstant = 0o755
)

// RenderOutcome reports the result of rendering one template.
type RenderOutcome struct {
	TemplatePath string
	OutputPath   string
	Status       results.Status
	Err          string
}

// ExecutableChecker reports whether an executable is resolvable. It is a
// function so tests can simulate a missing renderer.
type ExecutableChecker func(commandName execshell.CommandName) bool

// Renderer drives the external rendering executable.
type Renderer struct {
	executor          *execshell.ShellExecutor
	rendererCommand   execshell.CommandName
	executableChecker ExecutableChecker
	logger            *zap.Logger
}

// NewRenderer constructs a Renderer. An empty command falls back to the
// default renderer; a nil checker uses PATH lookup; a nil logger is replaced
// with a no-op logger.
func NewRenderer(executor *execshell.ShellExecutor, rendererCommand string, executableChecker ExecutableChecker, logger *zap.Logger) Renderer {
	trimmedCommand := strings.TrimSpace(rendererCommand)
	if len(trimmedCommand) == 0 {
		trimmedCommand = DefaultRendererCommand
	}
	if executableChecker == nil {
		executableChecker = execshell.LookupExecutable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Renderer{
		executor:          executor,
		rendererCommand:   execshell.CommandName(trimmedCommand),
		executableChecker: executableChecker,
		logger:            logger,
	}
}

// Available reports whether the rendering executable can be invoked.
func (renderer Renderer) Available() bool {
	available := renderer.executableChecker(renderer.rendererCommand)
	if !available {
		renderer.logger.Warn(rendererUnavailableMessageConstant,
			zap.String(rendererCommandFieldNameConstant, string(renderer.rendererCommand)),
		)
	}
	return available
}

// RenderTemplates renders each template into the output directory. Success for
// a template requires both a zero exit code and the expected output file.
func (renderer Renderer) RenderTemplates(executionContext context.Context, templatePaths []string, outputDirectory string) []RenderOutcome {
	outcomes := make([]RenderOutcome, 0, len(templatePaths))

	if directoryError := os.MkdirAll(outputDirectory, reportOutputDirectoryPermissionConstant); directoryError != nil {
		wrappedError := fmt.Errorf(rendererOutputDirectoryErrorTemplate, outputDirectory, directoryError)
		for _, templatePath := range templatePaths {
			outcomes = append(outcomes, RenderOutcome{TemplatePath: templatePath, Status: results.StatusFailed, Err: wrappedError.Error()})
		}
		return outcomes
	}

	for _, templatePath := range templatePaths {
		outcomes = append(outcomes, renderer.renderTemplate(executionContext, templatePath, outputDirectory))
	}
	return outcomes
}

func (renderer Renderer) renderTemplate(executionContext context.Context, templatePath string, outputDirectory string) RenderOutcome {
	outcome := RenderOutcome{TemplatePath: templatePath, Status: results.StatusSuccess}

	absoluteTemplatePath, absoluteError := filepath.Abs(templatePath)
	if absoluteError != nil {
		outcome.Status = results.StatusFailed
		outcome.Err = absoluteError.Error()
		return outcome
	}
	if _, statError := os.Stat(absoluteTemplatePath); statError != nil {
		outcome.Status = results.StatusFailed
		outcome.Err = fmt.Sprintf(rendererTemplateMissingTemplateConstant, absoluteTemplatePath)
		return outcome
	}

	templateBaseName := strings.TrimSuffix(filepath.Base(absoluteTemplatePath), filepath.Ext(absoluteTemplatePath))
	absoluteOutputPath, outputPathError := filepath.Abs(filepath.Join(outputDirectory, templateBaseName+renderedReportExtensionConstant))
	if outputPathError != nil {
		outcome.Status = results.StatusFailed
		outcome.Err = outputPathError.Error()
		return outcome
	}
	outcome.OutputPath = absoluteOutputPath

	command := execshell.ShellCommand{
		Name: renderer.rendererCommand,
		Details: execshell.CommandDetails{
			Arguments: []string{rendererStandaloneFlagConstant, absoluteTemplatePath, rendererOutputFlagConstant, absoluteOutputPath},
		},
	}

	if _, executionError := renderer.executor.Execute(executionContext, command); executionError != nil {
		outcome.Status = results.StatusFailed
		outcome.Err = fmt.Sprintf(rendererFailureTemplateConstant, absoluteTemplatePath, executionError)
		return outcome
	}

	if _, outputStatError := os.Stat(absoluteOutputPath); outputStatError != nil {
		outcome.Status = results.StatusFailed
		outcome.Err = fmt.Sprintf(rendererOutputMissingTemplateConstant, absoluteOutputPath)
		return outcome
	}

	renderer.logger.Info(renderCompleteMessageConstant,
		zap.String(reportTemplateFieldNameConstant, absoluteTemplatePath),
		zap.String(reportOutputFieldNameConstant, absoluteOutputPath),
	)
	return outcome
}
