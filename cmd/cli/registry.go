package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/plotforge/internal/registry"
	"github.com/tyemirov/plotforge/internal/utils"
)

const (
	registryCommandUseNameConstant          = "registry"
	registryCommandShortDescriptionConstant = "Artifact registry commands"
	registryCleanupUseNameConstant          = "cleanup"
	registryCleanupShortDescriptionConstant = "Remove artifacts from superseded generation groups"
	registryCleanupLongDescriptionConstant  = "registry cleanup keeps the newest generation groups of the selected artifact type and deletes older artifacts together with their files."
	registryServeUseNameConstant            = "serve"
	registryServeShortDescriptionConstant   = "Serve the artifact registry over HTTP"
	registryServeLongDescriptionConstant    = "registry serve exposes the registry contents through a read-only HTTP API until the command context is cancelled."
	artifactTypeFlagNameConstant            = "type"
	artifactTypeFlagUsageConstant           = "Artifact type to clean up (raw-data, plot, report, serialized-object)."
	keepCountFlagNameConstant               = "keep"
	keepCountFlagUsageConstant              = "Number of newest generation groups to retain."
	dryRunFlagNameConstant                  = "dry-run"
	dryRunFlagUsageConstant                 = "Report what would be deleted without deleting anything."
	serveAddressFlagNameConstant            = "address"
	serveAddressFlagUsageConstant           = "Listen address for the registry HTTP API."
	defaultCleanupArtifactTypeConstant      = string(registry.ArtifactTypePlot)
	defaultCleanupKeepCountConstant         = 3
	defaultServeAddressConstant             = ":8080"
	unsupportedArtifactTypeTemplateConstant = "unsupported artifact type %q"
	cleanupSummaryTemplateConstant          = "cleanup removed %d artifacts, freeing %d bytes\n"
	cleanupDryRunSummaryTemplateConstant    = "cleanup would remove %d artifacts, freeing %d bytes\n"
	registryPersistErrorTemplateConstant    = "unable to persist registry: %w"
	registryServeStartingMessageConstant    = "registry HTTP API listening"
	registryServeStoppedMessageConstant     = "registry HTTP API stopped"
	registryServeAddressLogFieldConstant    = "address"
	registryServeShutdownTimeoutConstant    = 5 * time.Second
	registryServeReadHeaderTimeoutConstant  = 10 * time.Second
)

func (application *Application) newRegistryCommand() *cobra.Command {
	registryCommand := &cobra.Command{
		Use:   registryCommandUseNameConstant,
		Short: registryCommandShortDescriptionConstant,
	}
	registryCommand.AddCommand(application.newRegistryCleanupCommand())
	registryCommand.AddCommand(application.newRegistryServeCommand())
	return registryCommand
}

func (application *Application) newRegistryCleanupCommand() *cobra.Command {
	cleanupCommand := &cobra.Command{
		Use:   registryCleanupUseNameConstant,
		Short: registryCleanupShortDescriptionConstant,
		Long:  registryCleanupLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.executeRegistryCleanup(command)
		},
	}

	flagSet := cleanupCommand.Flags()
	flagSet.String(registryPathFlagNameConstant, "", registryPathFlagUsageConstant)
	flagSet.String(artifactTypeFlagNameConstant, defaultCleanupArtifactTypeConstant, artifactTypeFlagUsageConstant)
	flagSet.Int(keepCountFlagNameConstant, defaultCleanupKeepCountConstant, keepCountFlagUsageConstant)
	flagSet.Bool(dryRunFlagNameConstant, false, dryRunFlagUsageConstant)

	return cleanupCommand
}

func (application *Application) newRegistryServeCommand() *cobra.Command {
	serveCommand := &cobra.Command{
		Use:   registryServeUseNameConstant,
		Short: registryServeShortDescriptionConstant,
		Long:  registryServeLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.executeRegistryServe(command)
		},
	}

	flagSet := serveCommand.Flags()
	flagSet.String(registryPathFlagNameConstant, "", registryPathFlagUsageConstant)
	flagSet.String(serveAddressFlagNameConstant, defaultServeAddressConstant, serveAddressFlagUsageConstant)

	return serveCommand
}

func (application *Application) executeRegistryCleanup(command *cobra.Command) error {
	flagSet := command.Flags()
	artifactTypeValue, _ := flagSet.GetString(artifactTypeFlagNameConstant)
	keepCount, _ := flagSet.GetInt(keepCountFlagNameConstant)
	dryRun, _ := flagSet.GetBool(dryRunFlagNameConstant)

	artifactType, artifactTypeError := parseArtifactType(artifactTypeValue)
	if artifactTypeError != nil {
		return artifactTypeError
	}

	registryPath := application.resolveRegistryPath(command)
	registryService := registry.InitFromFile(registryPath, application.logger)
	cleanupOutcome := registryService.Cleanup(artifactType, keepCount, dryRun)

	output := utils.NewFlushingWriter(command.OutOrStdout())
	if dryRun {
		fmt.Fprintf(output, cleanupDryRunSummaryTemplateConstant, cleanupOutcome.DeletedCount, cleanupOutcome.FreedBytes)
		return nil
	}

	fmt.Fprintf(output, cleanupSummaryTemplateConstant, cleanupOutcome.DeletedCount, cleanupOutcome.FreedBytes)
	if cleanupOutcome.DeletedCount > 0 {
		if persistError := registryService.Persist(registryPath); persistError != nil {
			return fmt.Errorf(registryPersistErrorTemplateConstant, persistError)
		}
	}
	return nil
}

func (application *Application) executeRegistryServe(command *cobra.Command) error {
	listenAddress, _ := command.Flags().GetString(serveAddressFlagNameConstant)
	registryPath := application.resolveRegistryPath(command)
	registryService := registry.InitFromFile(registryPath, application.logger)

	httpServer := &http.Server{
		Addr:              listenAddress,
		Handler:           registry.NewHTTPHandler(registryService),
		ReadHeaderTimeout: registryServeReadHeaderTimeoutConstant,
	}

	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- httpServer.ListenAndServe()
	}()
	application.logger.Info(registryServeStartingMessageConstant,
		zap.String(registryServeAddressLogFieldConstant, listenAddress))

	select {
	case <-command.Context().Done():
		shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), registryServeShutdownTimeoutConstant)
		defer cancelShutdown()
		shutdownError := httpServer.Shutdown(shutdownContext)
		application.logger.Info(registryServeStoppedMessageConstant)
		return shutdownError
	case serveError := <-serveErrors:
		if serveError != nil && !errors.Is(serveError, http.ErrServerClosed) {
			return serveError
		}
		application.logger.Info(registryServeStoppedMessageConstant)
		return nil
	}
}

func (application *Application) resolveRegistryPath(command *cobra.Command) string {
	registryPath := application.configuration.Pipeline.Sanitize().RegistryPath
	if command.Flags().Changed(registryPathFlagNameConstant) {
		registryPath, _ = command.Flags().GetString(registryPathFlagNameConstant)
	}
	return registryPath
}

func parseArtifactType(rawValue string) (registry.ArtifactType, error) {
	normalizedValue := registry.ArtifactType(strings.ToLower(strings.TrimSpace(rawValue)))
	switch normalizedValue {
	case registry.ArtifactTypeRawData, registry.ArtifactTypePlot, registry.ArtifactTypeReport, registry.ArtifactTypeSerializedObject:
		return normalizedValue, nil
	default:
		return "", fmt.Errorf(unsupportedArtifactTypeTemplateConstant, rawValue)
	}
}
