// Package utils hosts the shared ambient infrastructure: logger construction,
// configuration loading, and writer helpers used by the CLI layer.
package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel names a supported logging verbosity.
type LogLevel string

// LogFormat names a supported log output format.
type LogFormat string

// Supported log levels and formats.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	LogFormatStructured LogFormat = "structured"
	LogFormatConsole    LogFormat = "console"
)

const (
	unsupportedLogLevelTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatTemplateConstant = "unsupported log format %q"
	standardErrorOutputPathConstant      = "stderr"
)

// LoggerFactory builds zap loggers from configured level and format values.
type LoggerFactory struct{}

// NewLoggerFactory constructs a LoggerFactory.
func NewLoggerFactory() LoggerFactory {
	return LoggerFactory{}
}

// CreateLogger builds a logger writing to standard error in the requested
// level and format. Unsupported values are configuration errors.
func (factory LoggerFactory) CreateLogger(requestedLevel LogLevel, requestedFormat LogFormat) (*zap.Logger, error) {
	zapLevel, levelError := parseLogLevel(requestedLevel)
	if levelError != nil {
		return nil, levelError
	}

	var encoderConfiguration zapcore.EncoderConfig
	var encoding string
	switch requestedFormat {
	case LogFormatStructured:
		encoderConfiguration = zap.NewProductionEncoderConfig()
		encoding = "json"
	case LogFormatConsole:
		encoderConfiguration = zap.NewDevelopmentEncoderConfig()
		encoding = "console"
	default:
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedFormat)
	}

	loggerConfiguration := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         encoding,
		EncoderConfig:    encoderConfiguration,
		OutputPaths:      []string{standardErrorOutputPathConstant},
		ErrorOutputPaths: []string{standardErrorOutputPathConstant},
	}
	return loggerConfiguration.Build()
}

func parseLogLevel(requestedLevel LogLevel) (zapcore.Level, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(requestedLevel)))) {
	case LogLevelDebug:
		return zapcore.DebugLevel, nil
	case LogLevelInfo, LogLevel(""):
		return zapcore.InfoLevel, nil
	case LogLevelWarn:
		return zapcore.WarnLevel, nil
	case LogLevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLevel)
	}
}
