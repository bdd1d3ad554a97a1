package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tyemirov/plotforge/internal/plugins"
	"github.com/tyemirov/plotforge/internal/results"
	"github.com/tyemirov/plotforge/internal/utils"
)

const (
	modulesCommandUseNameConstant          = "modules"
	modulesCommandShortDescriptionConstant = "Plot module commands"
	modulesListUseNameConstant             = "list"
	modulesListShortDescriptionConstant    = "List discovered plot modules and their load status"
	modulesListLongDescriptionConstant     = "modules list scans the modules root for module manifests, attempts to load each discovered module, and prints one line per module with its version and load status."
	modulesDiscoveryErrorTemplateConstant  = "unable to discover modules: %w"
	moduleListEntryTemplateConstant        = "%s\t%s\t%s\n"
	moduleListFailureEntryTemplateConstant = "%s\t%s\t%s\t%s\n"
	moduleListVersionPlaceholderConstant   = "-"
	noModulesDiscoveredMessageConstant     = "no modules discovered\n"
)

func (application *Application) newModulesCommand() *cobra.Command {
	modulesCommand := &cobra.Command{
		Use:   modulesCommandUseNameConstant,
		Short: modulesCommandShortDescriptionConstant,
	}
	modulesCommand.AddCommand(application.newModulesListCommand())
	return modulesCommand
}

func (application *Application) newModulesListCommand() *cobra.Command {
	listCommand := &cobra.Command{
		Use:   modulesListUseNameConstant,
		Short: modulesListShortDescriptionConstant,
		Long:  modulesListLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.executeModulesList(command)
		},
	}
	listCommand.Flags().String(modulesRootFlagNameConstant, "", modulesRootFlagUsageConstant)
	return listCommand
}

func (application *Application) executeModulesList(command *cobra.Command) error {
	modulesRoot := application.configuration.Pipeline.Sanitize().ModulesRoot
	if command.Flags().Changed(modulesRootFlagNameConstant) {
		modulesRoot, _ = command.Flags().GetString(modulesRootFlagNameConstant)
	}

	moduleDiscoverer := plugins.NewDiscoverer(application.logger)
	descriptors, discoveryError := moduleDiscoverer.DiscoverModules(modulesRoot)
	if discoveryError != nil {
		return fmt.Errorf(modulesDiscoveryErrorTemplateConstant, discoveryError)
	}

	output := utils.NewFlushingWriter(command.OutOrStdout())
	if len(descriptors) == 0 {
		fmt.Fprint(output, noModulesDiscoveredMessageConstant)
		return nil
	}

	moduleLoader := plugins.NewLoader(plugins.DefaultCatalog(), application.logger)
	for _, descriptor := range descriptors {
		loadResult := moduleLoader.LoadModule(descriptor)
		if loadResult.Status != results.StatusSuccess {
			fmt.Fprintf(output, moduleListFailureEntryTemplateConstant,
				descriptor.Name, moduleListVersionPlaceholderConstant, loadResult.Status, loadResult.ErrorDetail)
			continue
		}
		fmt.Fprintf(output, moduleListEntryTemplateConstant,
			loadResult.Instance.Metadata.Name, loadResult.Instance.Metadata.Version, loadResult.Status)
	}
	return nil
}
