package results_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/plotforge/internal/results"
)

const (
	testResultNameConstant            = "pipeline"
	testErrorMessageConstant          = "data file unreadable"
	testWarningMessageConstant        = "renderer unavailable"
	testPartialMessageConstant        = "one module failed"
	testSuccessMessageConstant        = "all plots generated"
	testPhaseNameConstant             = "plot_generation"
	resultSubtestNameTemplateConstant = "%d_%s"
)

func TestNewResultInitialState(testInstance *testing.T) {
	result := results.NewResult(testResultNameConstant)

	require.Equal(testInstance, testResultNameConstant, result.Name)
	require.Equal(testInstance, results.StatusSuccess, result.Status)
	require.Empty(testInstance, result.Errors)
	require.Empty(testInstance, result.Warnings)
	require.NotNil(testInstance, result.PhaseResults)
	require.False(testInstance, result.StartTime.IsZero())
}

func TestResultStatusEscalation(testInstance *testing.T) {
	testCases := []struct {
		name           string
		mutate         func(result *results.Result)
		expectedStatus results.Status
		expectedErrors int
	}{
		{
			name:           "error_forces_failed",
			mutate:         func(result *results.Result) { result.AddError(testErrorMessageConstant) },
			expectedStatus: results.StatusFailed,
			expectedErrors: 1,
		},
		{
			name: "failed_never_improves",
			mutate: func(result *results.Result) {
				result.AddError(testErrorMessageConstant)
				result.SetStatus(results.StatusSuccess, testSuccessMessageConstant)
				result.SetStatus(results.StatusPartial, testPartialMessageConstant)
			},
			expectedStatus: results.StatusFailed,
			expectedErrors: 1,
		},
		{
			name: "partial_never_improves",
			mutate: func(result *results.Result) {
				result.SetStatus(results.StatusPartial, testPartialMessageConstant)
				result.SetStatus(results.StatusSuccess, testSuccessMessageConstant)
			},
			expectedStatus: results.StatusPartial,
		},
		{
			name: "set_status_rejects_failed",
			mutate: func(result *results.Result) {
				result.SetStatus(results.StatusFailed, testPartialMessageConstant)
			},
			expectedStatus: results.StatusSuccess,
		},
		{
			name:           "warning_preserves_status",
			mutate:         func(result *results.Result) { result.AddWarning(testWarningMessageConstant) },
			expectedStatus: results.StatusSuccess,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(resultSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			result := results.NewResult(testResultNameConstant)
			testCase.mutate(result)

			require.Equal(testInstance, testCase.expectedStatus, result.Status)
			require.Len(testInstance, result.Errors, testCase.expectedErrors)
		})
	}
}

func TestResultFinalizeStampsOnce(testInstance *testing.T) {
	result := results.NewResult(testResultNameConstant)
	result.Finalize()

	firstEndTime := result.EndTime
	require.False(testInstance, firstEndTime.IsZero())

	result.Finalize()
	require.Equal(testInstance, firstEndTime, result.EndTime)
}

func TestResultAttachPhaseResult(testInstance *testing.T) {
	result := results.NewResult(testResultNameConstant)
	result.AttachPhaseResult(testPhaseNameConstant, 5)

	require.Equal(testInstance, 5, result.PhaseResults[testPhaseNameConstant])
}
