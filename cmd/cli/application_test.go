package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/plotforge/cmd/cli"
	"github.com/tyemirov/plotforge/internal/registry"
)

const sampleDatasetContentConstant = "subject,score\n" +
	"a,10\n" +
	"b,12\n" +
	"c,14\n" +
	"d,40\n"

func executeApplication(testInstance *testing.T, arguments ...string) (string, error) {
	testInstance.Helper()

	application := cli.NewApplication()
	outputBuffer := &bytes.Buffer{}
	rootCommand := application.RootCommand()
	rootCommand.SetOut(outputBuffer)
	rootCommand.SetErr(outputBuffer)
	rootCommand.SetArgs(arguments)

	executionError := rootCommand.Execute()
	return outputBuffer.String(), executionError
}

func writeModuleManifest(testInstance *testing.T, modulesRoot string, moduleName string) {
	testInstance.Helper()
	moduleDirectory := filepath.Join(modulesRoot, moduleName)
	require.NoError(testInstance, os.MkdirAll(moduleDirectory, 0o755))
	manifestContent := "name: " + moduleName + "\nfunctions:\n  - metadata\n  - available_plots\n  - generate_plot\n  - generate_batch\n"
	require.NoError(testInstance, os.WriteFile(filepath.Join(moduleDirectory, "module.yaml"), []byte(manifestContent), 0o600))
}

func TestVersionCommandPrintsVersion(testInstance *testing.T) {
	commandOutput, executionError := executeApplication(testInstance, "version")
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, commandOutput, "plotforge version:")
}

func TestRunCommandRequiresDataset(testInstance *testing.T) {
	_, executionError := executeApplication(testInstance, "run")
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "dataset path is required")
}

func TestRunCommandExecutesPipeline(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	datasetPath := filepath.Join(workingDirectory, "study.csv")
	require.NoError(testInstance, os.WriteFile(datasetPath, []byte(sampleDatasetContentConstant), 0o600))

	modulesRoot := filepath.Join(workingDirectory, "modules")
	writeModuleManifest(testInstance, modulesRoot, "histogram")

	outputRoot := filepath.Join(workingDirectory, "output")
	registryPath := filepath.Join(outputRoot, "registry.yaml")

	commandOutput, executionError := executeApplication(testInstance,
		"run",
		"--dataset", datasetPath,
		"--required-column", "score",
		"--modules-root", modulesRoot,
		"--output-root", outputRoot,
		"--registry", registryPath,
	)

	require.NoError(testInstance, executionError)
	require.Contains(testInstance, commandOutput, "status=success")
	require.FileExists(testInstance, filepath.Join(outputRoot, "histogram", "value_distribution.svg"))

	registryService := registry.InitFromFile(registryPath, nil)
	require.Positive(testInstance, registryService.ArtifactCount())
	_, datasetRegistered := registryService.Lookup("study_dataset")
	require.True(testInstance, datasetRegistered)
}

func TestRunCommandFailsWhenDatasetMissingRequiredColumn(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	datasetPath := filepath.Join(workingDirectory, "study.csv")
	require.NoError(testInstance, os.WriteFile(datasetPath, []byte(sampleDatasetContentConstant), 0o600))

	_, executionError := executeApplication(testInstance,
		"run",
		"--dataset", datasetPath,
		"--required-column", "blood_pressure",
		"--modules-root", filepath.Join(workingDirectory, "modules"),
		"--output-root", filepath.Join(workingDirectory, "output"),
		"--registry", filepath.Join(workingDirectory, "registry.yaml"),
	)

	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "pipeline failed")
}

func TestModulesListCommand(testInstance *testing.T) {
	testCases := []struct {
		name           string
		prepareModules func(testInstance *testing.T, modulesRoot string)
		expectedOutput string
	}{
		{
			name:           "empty_root",
			prepareModules: func(*testing.T, string) {},
			expectedOutput: "no modules discovered",
		},
		{
			name: "builtin_module_loads",
			prepareModules: func(testInstance *testing.T, modulesRoot string) {
				writeModuleManifest(testInstance, modulesRoot, "histogram")
			},
			expectedOutput: "histogram\t1.0.0\tsuccess",
		},
		{
			name: "unknown_module_reports_failure",
			prepareModules: func(testInstance *testing.T, modulesRoot string) {
				writeModuleManifest(testInstance, modulesRoot, "ridgeline")
			},
			expectedOutput: "ridgeline\t-\tfailed",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			modulesRoot := filepath.Join(testInstance.TempDir(), "modules")
			testCase.prepareModules(testInstance, modulesRoot)

			commandOutput, executionError := executeApplication(testInstance, "modules", "list", "--modules-root", modulesRoot)

			require.NoError(testInstance, executionError)
			require.Contains(testInstance, commandOutput, testCase.expectedOutput)
		})
	}
}

func TestRegistryCleanupCommand(testInstance *testing.T) {
	testInstance.Run("rejects_unsupported_artifact_type", func(testInstance *testing.T) {
		_, executionError := executeApplication(testInstance, "registry", "cleanup", "--type", "hologram")
		require.Error(testInstance, executionError)
		require.Contains(testInstance, executionError.Error(), "unsupported artifact type")
	})

	testInstance.Run("dry_run_reports_zero_on_empty_registry", func(testInstance *testing.T) {
		registryPath := filepath.Join(testInstance.TempDir(), "registry.yaml")
		commandOutput, executionError := executeApplication(testInstance,
			"registry", "cleanup", "--registry", registryPath, "--dry-run")
		require.NoError(testInstance, executionError)
		require.Contains(testInstance, commandOutput, "would remove 0 artifacts")
	})
}
