package pipeline

import "strings"

const (
	defaultModulesRootConstant  = "modules"
	defaultOutputRootConstant   = "output"
	defaultRegistryPathConstant = "output/registry.yaml"
	defaultReportOutputConstant = "output/reports"
	defaultResolutionConstant   = 300
	defaultWorkflowNameConstant = "plotforge"
)

// Configuration captures persistent settings for the pipeline run command.
type Configuration struct {
	DatasetPath       string   `mapstructure:"dataset_path" yaml:"dataset_path"`
	RequiredColumns   []string `mapstructure:"required_columns" yaml:"required_columns"`
	ModulesRoot       string   `mapstructure:"modules_root" yaml:"modules_root"`
	OutputRoot        string   `mapstructure:"output_root" yaml:"output_root"`
	RegistryPath      string   `mapstructure:"registry_path" yaml:"registry_path"`
	ReportTemplates   []string `mapstructure:"report_templates" yaml:"report_templates"`
	ReportOutputRoot  string   `mapstructure:"report_output_root" yaml:"report_output_root"`
	RendererCommand   string   `mapstructure:"renderer_command" yaml:"renderer_command"`
	Resolution        int      `mapstructure:"resolution" yaml:"resolution"`
	ContinueOnError   bool     `mapstructure:"continue_on_error" yaml:"continue_on_error"`
	RunTimeoutSeconds int      `mapstructure:"run_timeout_seconds" yaml:"run_timeout_seconds"`
	WorkflowName      string   `mapstructure:"workflow_name" yaml:"workflow_name"`
}

// DefaultConfiguration returns baseline configuration values for the pipeline.
func DefaultConfiguration() Configuration {
	return Configuration{
		ModulesRoot:      defaultModulesRootConstant,
		OutputRoot:       defaultOutputRootConstant,
		RegistryPath:     defaultRegistryPathConstant,
		ReportOutputRoot: defaultReportOutputConstant,
		Resolution:       defaultResolutionConstant,
		ContinueOnError:  true,
		WorkflowName:     defaultWorkflowNameConstant,
	}
}

// Sanitize trims whitespace and applies defaults to unset configuration values.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	defaults := DefaultConfiguration()

	sanitized.DatasetPath = strings.TrimSpace(configuration.DatasetPath)
	sanitized.ModulesRoot = valueOrDefault(configuration.ModulesRoot, defaults.ModulesRoot)
	sanitized.OutputRoot = valueOrDefault(configuration.OutputRoot, defaults.OutputRoot)
	sanitized.RegistryPath = valueOrDefault(configuration.RegistryPath, defaults.RegistryPath)
	sanitized.ReportOutputRoot = valueOrDefault(configuration.ReportOutputRoot, defaults.ReportOutputRoot)
	sanitized.RendererCommand = strings.TrimSpace(configuration.RendererCommand)
	sanitized.WorkflowName = valueOrDefault(configuration.WorkflowName, defaults.WorkflowName)
	if sanitized.Resolution <= 0 {
		sanitized.Resolution = defaults.Resolution
	}
	if sanitized.RunTimeoutSeconds < 0 {
		sanitized.RunTimeoutSeconds = 0
	}

	sanitizedTemplates := make([]string, 0, len(configuration.ReportTemplates))
	for _, templatePath := range configuration.ReportTemplates {
		trimmedTemplatePath := strings.TrimSpace(templatePath)
		if len(trimmedTemplatePath) > 0 {
			sanitizedTemplates = append(sanitizedTemplates, trimmedTemplatePath)
		}
	}
	sanitized.ReportTemplates = sanitizedTemplates

	return sanitized
}

func valueOrDefault(value string, defaultValue string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return defaultValue
	}
	return trimmedValue
}
