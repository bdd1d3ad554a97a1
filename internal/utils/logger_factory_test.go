package utils_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/plotforge/internal/utils"
)

func TestLoggerFactoryCreateLogger(testInstance *testing.T) {
	testCases := []struct {
		name            string
		requestedLevel  utils.LogLevel
		requestedFormat utils.LogFormat
		expectError     bool
	}{
		{
			name:            "structured_info",
			requestedLevel:  utils.LogLevelInfo,
			requestedFormat: utils.LogFormatStructured,
		},
		{
			name:            "console_debug",
			requestedLevel:  utils.LogLevelDebug,
			requestedFormat: utils.LogFormatConsole,
		},
		{
			name:            "empty_level_defaults_to_info",
			requestedLevel:  utils.LogLevel(""),
			requestedFormat: utils.LogFormatStructured,
		},
		{
			name:            "level_is_case_insensitive",
			requestedLevel:  utils.LogLevel("WARN"),
			requestedFormat: utils.LogFormatConsole,
		},
		{
			name:            "unsupported_level",
			requestedLevel:  utils.LogLevel("verbose"),
			requestedFormat: utils.LogFormatStructured,
			expectError:     true,
		},
		{
			name:            "unsupported_format",
			requestedLevel:  utils.LogLevelInfo,
			requestedFormat: utils.LogFormat("xml"),
			expectError:     true,
		},
	}

	for testIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testIndex, testCase.name), func(testInstance *testing.T) {
			factory := utils.NewLoggerFactory()

			logger, creationError := factory.CreateLogger(testCase.requestedLevel, testCase.requestedFormat)

			if testCase.expectError {
				require.Error(testInstance, creationError)
				require.Nil(testInstance, logger)
				return
			}
			require.NoError(testInstance, creationError)
			require.NotNil(testInstance, logger)
		})
	}
}
