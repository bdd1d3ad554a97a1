package utils

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configurationReadErrorTemplateConstant   = "unable to read configuration file: %w"
	configurationDecodeErrorTemplateConstant = "unable to decode configuration: %w"
	environmentKeyReplacerOldConstant        = "."
	environmentKeyReplacerNewConstant        = "_"
)

// LoadedConfiguration reports where configuration values were sourced from.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// ConfigurationLoader merges defaults, an optional configuration file, and
// prefixed environment variables through viper.
type ConfigurationLoader struct {
	configurationName string
	configurationType string
	environmentPrefix string
	searchDirectories []string
}

// NewConfigurationLoader constructs a ConfigurationLoader.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchDirectories []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchDirectories: searchDirectories,
	}
}

// LoadConfiguration resolves configuration into target, lowest precedence
// first: supplied defaults, then the configuration file (an explicit path or
// the first match in the search directories), then environment variables.
// A missing configuration file is not an error; an unreadable or malformed
// one is.
func (loader *ConfigurationLoader) LoadConfiguration(explicitConfigFilePath string, defaults map[string]any, target any) (LoadedConfiguration, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.configurationName)
	viperInstance.SetConfigType(loader.configurationType)

	for defaultKey, defaultValue := range defaults {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(environmentKeyReplacerOldConstant, environmentKeyReplacerNewConstant))
	viperInstance.AutomaticEnv()

	trimmedExplicitPath := strings.TrimSpace(explicitConfigFilePath)
	if len(trimmedExplicitPath) > 0 {
		viperInstance.SetConfigFile(trimmedExplicitPath)
		if readError := viperInstance.ReadInConfig(); readError != nil {
			return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
		}
	} else if len(loader.searchDirectories) > 0 {
		for _, searchDirectory := range loader.searchDirectories {
			viperInstance.AddConfigPath(searchDirectory)
		}
		if readError := viperInstance.ReadInConfig(); readError != nil {
			var notFoundError viper.ConfigFileNotFoundError
			if !errors.As(readError, &notFoundError) {
				return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
			}
		}
	}

	decoderConfiguration := &mapstructure.DecoderConfig{Result: target, TagName: "mapstructure"}
	decoder, decoderError := mapstructure.NewDecoder(decoderConfiguration)
	if decoderError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decoderError)
	}
	if decodeError := decoder.Decode(viperInstance.AllSettings()); decodeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
	}

	return LoadedConfiguration{ConfigFileUsed: viperInstance.ConfigFileUsed()}, nil
}
