// Package cli wires the plotforge command-line application: configuration
// loading, logger construction, and the command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/plotforge/internal/pipeline"
	"github.com/tyemirov/plotforge/internal/utils"
	"github.com/tyemirov/plotforge/internal/version"
)

const (
	applicationNameConstant             = "plotforge"
	applicationShortDescriptionConstant = "Plot and report pipeline orchestrator"
	applicationLongDescriptionConstant  = "plotforge discovers plot modules, runs them against a study dataset, records the produced artifacts in a provenance registry, and renders reports."
	configFileFlagNameConstant          = "config"
	configFileFlagUsageConstant         = "Optional path to a configuration file (YAML)."
	logLevelFlagNameConstant            = "log-level"
	logLevelFlagUsageConstant           = "Override the configured log level (debug, info, warn, error)."
	logFormatFlagNameConstant           = "log-format"
	logFormatFlagUsageConstant          = "Override the configured log format (structured or console)."
	versionFlagNameConstant             = "version"
	versionFlagUsageConstant            = "Print the application version and exit"
	versionOutputTemplateConstant       = "plotforge version: %s\n"
	versionCommandUseNameConstant       = "version"
	versionCommandShortDescription      = "Print the plotforge version"
	environmentPrefixConstant           = "PLOTFORGE"
	configurationNameConstant           = "config"
	configurationTypeConstant           = "yaml"
	configurationLoadErrorTemplate      = "unable to load configuration: %w"
	loggerCreationErrorTemplate         = "unable to create logger: %w"
	defaultConfigurationSearchPath      = "."
	defaultLogLevelConstant             = "info"
	defaultLogFormatConstant            = "structured"
	commonLogLevelConfigKeyConstant     = "common.log_level"
	commonLogFormatConfigKeyConstant    = "common.log_format"
	rootCommandDebugMessageConstant     = "plotforge CLI invoked"
	logFieldCommandNameConstant         = "command_name"
	logFieldConfigFileConstant          = "config_file"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common   ApplicationCommonConfiguration `mapstructure:"common"`
	Pipeline pipeline.Configuration         `mapstructure:"pipeline"`
}

// ApplicationCommonConfiguration stores logging defaults shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
	versionFlag            bool
	versionResolver        func() string
	exitFunction           func(int)
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	application := &Application{
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		versionResolver:        resolveVersion,
		exitFunction:           os.Exit,
	}

	application.configurationLoader = utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPath},
	)

	rootCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if initializationError := application.initialize(command); initializationError != nil {
				return initializationError
			}
			if application.versionFlag {
				application.printVersion(command)
				application.exitFunction(0)
			}
			return nil
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	rootCommand.SetContext(context.Background())
	rootCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	rootCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	rootCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	rootCommand.Flags().BoolVar(&application.versionFlag, versionFlagNameConstant, false, versionFlagUsageConstant)

	rootCommand.AddCommand(application.newRunCommand())
	rootCommand.AddCommand(application.newModulesCommand())
	rootCommand.AddCommand(application.newRegistryCommand())
	rootCommand.AddCommand(application.newVersionCommand())

	application.rootCommand = rootCommand
	return application
}

// Execute constructs the application and runs the command tree.
func Execute() error {
	return NewApplication().Run()
}

// Run executes the root command.
func (application *Application) Run() error {
	return application.rootCommand.Execute()
}

// RootCommand exposes the Cobra root command, primarily for tests.
func (application *Application) RootCommand() *cobra.Command {
	return application.rootCommand
}

func (application *Application) initialize(command *cobra.Command) error {
	configurationDefaults := map[string]any{
		commonLogLevelConfigKeyConstant:  defaultLogLevelConstant,
		commonLogFormatConfigKeyConstant: defaultLogFormatConstant,
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(
		application.configurationFilePath,
		configurationDefaults,
		&application.configuration,
	)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplate, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	effectiveLogLevel := application.configuration.Common.LogLevel
	if len(application.logLevelFlagValue) > 0 {
		effectiveLogLevel = application.logLevelFlagValue
	}
	effectiveLogFormat := application.configuration.Common.LogFormat
	if len(application.logFormatFlagValue) > 0 {
		effectiveLogFormat = application.logFormatFlagValue
	}

	logger, loggerError := application.loggerFactory.CreateLogger(utils.LogLevel(effectiveLogLevel), utils.LogFormat(effectiveLogFormat))
	if loggerError != nil {
		return fmt.Errorf(loggerCreationErrorTemplate, loggerError)
	}
	application.logger = logger

	commandName := ""
	if command != nil {
		commandName = command.Name()
		commandContext := application.commandContextAccessor.WithConfigurationFilePath(command.Context(), loadedConfiguration.ConfigFileUsed)
		commandContext = application.commandContextAccessor.WithLogLevel(commandContext, effectiveLogLevel)
		command.SetContext(commandContext)
	}
	application.logger.Debug(rootCommandDebugMessageConstant,
		zap.String(logFieldCommandNameConstant, commandName),
		zap.String(logFieldConfigFileConstant, loadedConfiguration.ConfigFileUsed),
	)
	return nil
}

func (application *Application) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   versionCommandUseNameConstant,
		Short: versionCommandShortDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			application.printVersion(command)
			return nil
		},
	}
}

func (application *Application) printVersion(command *cobra.Command) {
	output := utils.NewFlushingWriter(command.OutOrStdout())
	fmt.Fprintf(output, versionOutputTemplateConstant, application.versionResolver())
}

func resolveVersion() string {
	return version.Detect(version.Dependencies{})
}
