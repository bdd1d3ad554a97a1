package histogram_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/plotforge/internal/dataload"
	"github.com/tyemirov/plotforge/internal/plotmods/histogram"
	"github.com/tyemirov/plotforge/internal/plugins"
	"github.com/tyemirov/plotforge/internal/results"
)

func numericDataset() dataload.Dataset {
	return dataload.Dataset{
		SourcePath: "study.csv",
		Columns:    []string{"subject", "score"},
		Rows: [][]string{
			{"a", "10"},
			{"b", "12"},
			{"c", "14"},
			{"d", "40"},
		},
	}
}

func TestHistogramModuleRegistersInDefaultCatalog(testInstance *testing.T) {
	capabilities, registered := plugins.DefaultCatalog().Lookup(histogram.ModuleName)
	require.True(testInstance, registered)
	require.NotNil(testInstance, capabilities.Metadata)
	require.Equal(testInstance, histogram.ModuleName, capabilities.Metadata().Name)
}

func TestHistogramGeneratePlot(testInstance *testing.T) {
	testCases := []struct {
		name           string
		dataset        dataload.Dataset
		identifier     string
		expectedStatus results.Status
	}{
		{
			name:           "numeric_column_produces_svg",
			dataset:        numericDataset(),
			identifier:     "value_distribution",
			expectedStatus: results.StatusSuccess,
		},
		{
			name: "sparse_numeric_column_degrades_to_partial",
			dataset: dataload.Dataset{
				Columns: []string{"score"},
				Rows:    [][]string{{"10"}, {"x"}, {"12"}, {"14"}},
			},
			identifier:     "value_distribution",
			expectedStatus: results.StatusPartial,
		},
		{
			name: "no_numeric_column_fails",
			dataset: dataload.Dataset{
				Columns: []string{"subject"},
				Rows:    [][]string{{"a"}, {"b"}},
			},
			identifier:     "value_distribution",
			expectedStatus: results.StatusFailed,
		},
		{
			name:           "empty_dataset_fails",
			dataset:        dataload.Dataset{Columns: []string{"score"}},
			identifier:     "value_distribution",
			expectedStatus: results.StatusFailed,
		},
		{
			name:           "unknown_item_fails",
			dataset:        numericDataset(),
			identifier:     "surface_3d",
			expectedStatus: results.StatusFailed,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			outputDirectory := testInstance.TempDir()
			capabilities := histogram.Capabilities()

			plotResult := capabilities.GeneratePlot(context.Background(), testCase.dataset, testCase.identifier, plugins.GenerationOptions{
				OutputDirectory: outputDirectory,
				Resolution:      300,
			})

			require.Equal(testInstance, testCase.expectedStatus, plotResult.Status)
			if testCase.expectedStatus == results.StatusFailed {
				require.NotEmpty(testInstance, plotResult.Err)
				return
			}

			require.FileExists(testInstance, plotResult.OutputPath)
			require.Equal(testInstance, outputDirectory, filepath.Dir(plotResult.OutputPath))
			documentBytes, readError := os.ReadFile(plotResult.OutputPath)
			require.NoError(testInstance, readError)
			require.True(testInstance, strings.HasPrefix(string(documentBytes), "<svg"))
			require.Greater(testInstance, plotResult.QualityScore, 0.0)
		})
	}
}

func TestHistogramGenerateBatchContinuesPastFailures(testInstance *testing.T) {
	capabilities := histogram.Capabilities()
	outputDirectory := testInstance.TempDir()

	batchResults := capabilities.GenerateBatch(context.Background(), numericDataset(), []string{"surface_3d", "value_distribution"}, plugins.GenerationOptions{
		OutputDirectory: outputDirectory,
		ContinueOnError: true,
	})

	require.Len(testInstance, batchResults, 2)
	require.Equal(testInstance, results.StatusFailed, batchResults["surface_3d"].Status)
	require.Equal(testInstance, results.StatusSuccess, batchResults["value_distribution"].Status)
}

func TestHistogramGenerateBatchStopsWhenConfigured(testInstance *testing.T) {
	capabilities := histogram.Capabilities()

	batchResults := capabilities.GenerateBatch(context.Background(), numericDataset(), []string{"surface_3d", "value_distribution"}, plugins.GenerationOptions{
		OutputDirectory: testInstance.TempDir(),
		ContinueOnError: false,
	})

	require.Len(testInstance, batchResults, 1)
	require.Equal(testInstance, results.StatusFailed, batchResults["surface_3d"].Status)
}
