package utils

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	flagutils "github.com/temirov/dedeploy/internal/utils/flags"
)

const (
	environmentKeySeparatorOldConstant              = "."
	environmentKeySeparatorNewConstant              = "_"
	environmentListSeparatorConstant                = ","
	configurationReadErrorTemplateConstant          = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant     = "failed to parse configuration: %w"
	embeddedConfigurationMergeErrorTemplateConstant = "failed to merge embedded configuration: %w"
	environmentBindingErrorTemplateConstant         = "failed to bind environment aliases for %s: %w"
	environmentFileLoadErrorTemplateConstant        = "failed to load environment file %s: %w"
)

// ConfigurationLoader wraps Viper to load structured configuration files and environment overrides.
type ConfigurationLoader struct {
	configurationName         string
	configurationType         string
	environmentPrefix         string
	searchPaths               []string
	environmentKeyReplacer    *strings.Replacer
	embeddedConfiguration     []byte
	embeddedConfigurationType string
	environmentAliases        map[string][]string
	environmentFiles          []string
}

// LoadedConfiguration surfaces metadata about the resolved configuration.
type LoadedConfiguration struct {
	ConfigFileUsed   string
	EnvironmentFiles []string
}

// NewConfigurationLoader creates a loader that searches known paths and respects an environment prefix.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName:      configurationName,
		configurationType:      configurationType,
		environmentPrefix:      environmentPrefix,
		searchPaths:            append([]string{}, searchPaths...),
		environmentKeyReplacer: strings.NewReplacer(environmentKeySeparatorOldConstant, environmentKeySeparatorNewConstant),
		environmentAliases:     map[string][]string{},
	}
}

// SetEmbeddedConfiguration stores embedded configuration data merged before user-provided configuration files.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	if loader == nil {
		return
	}

	loader.embeddedConfiguration = nil
	loader.embeddedConfigurationType = strings.TrimSpace(configurationType)
	if len(configurationData) == 0 {
		return
	}
	loader.embeddedConfiguration = append([]byte{}, configurationData...)
}

// SetEnvironmentAliases registers additional environment variable names per configuration key.
// The prefixed variable still wins; aliases are consulted in the order given.
func (loader *ConfigurationLoader) SetEnvironmentAliases(aliases map[string][]string) {
	if loader == nil {
		return
	}
	loader.environmentAliases = make(map[string][]string, len(aliases))
	for configurationKey, environmentNames := range aliases {
		loader.environmentAliases[configurationKey] = append([]string{}, environmentNames...)
	}
}

// SetEnvironmentFiles lists dotenv files loaded into the process environment before resolution.
// Variables already present in the environment are never overwritten.
func (loader *ConfigurationLoader) SetEnvironmentFiles(filePaths []string) {
	if loader == nil {
		return
	}
	loader.environmentFiles = nil
	for _, filePath := range filePaths {
		trimmedPath := strings.TrimSpace(filePath)
		if len(trimmedPath) > 0 {
			loader.environmentFiles = append(loader.environmentFiles, trimmedPath)
		}
	}
}

// LoadConfiguration populates targetConfiguration using configuration files, defaults, and environment variables.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	for _, environmentFile := range loader.environmentFiles {
		if loadError := godotenv.Load(environmentFile); loadError != nil {
			return LoadedConfiguration{}, fmt.Errorf(environmentFileLoadErrorTemplateConstant, environmentFile, loadError)
		}
	}

	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.configurationName)
	viperInstance.SetConfigType(loader.configurationType)

	if len(loader.embeddedConfiguration) > 0 {
		configurationType := loader.configurationType
		if len(loader.embeddedConfigurationType) > 0 {
			configurationType = loader.embeddedConfigurationType
		}

		viperInstance.SetConfigType(configurationType)
		if mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.embeddedConfiguration)); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationMergeErrorTemplateConstant, mergeError)
		}
		viperInstance.SetConfigType(loader.configurationType)
	}

	for _, searchPath := range loader.searchPaths {
		viperInstance.AddConfigPath(searchPath)
	}

	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	if loader.environmentKeyReplacer != nil {
		viperInstance.SetEnvKeyReplacer(loader.environmentKeyReplacer)
	}
	viperInstance.AutomaticEnv()

	if bindingError := loader.bindEnvironmentAliases(viperInstance); bindingError != nil {
		return LoadedConfiguration{}, bindingError
	}

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(configurationFilePath) > 0 {
		viperInstance.SetConfigFile(configurationFilePath)
	}

	if readError := viperInstance.MergeInConfig(); readError != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(readError, &notFoundError) {
			return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
		}
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		flagutils.ToggleDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(environmentListSeparatorConstant),
	))
	if unmarshalError := viperInstance.Unmarshal(targetConfiguration, decodeHook); unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	return LoadedConfiguration{
		ConfigFileUsed:   viperInstance.ConfigFileUsed(),
		EnvironmentFiles: append([]string{}, loader.environmentFiles...),
	}, nil
}

func (loader *ConfigurationLoader) bindEnvironmentAliases(viperInstance *viper.Viper) error {
	configurationKeys := make([]string, 0, len(loader.environmentAliases))
	for configurationKey := range loader.environmentAliases {
		configurationKeys = append(configurationKeys, configurationKey)
	}
	sort.Strings(configurationKeys)

	for _, configurationKey := range configurationKeys {
		environmentNames := loader.environmentAliases[configurationKey]
		if len(environmentNames) == 0 {
			continue
		}
		bindingArguments := append([]string{configurationKey}, environmentNames...)
		if bindError := viperInstance.BindEnv(bindingArguments...); bindError != nil {
			return fmt.Errorf(environmentBindingErrorTemplateConstant, configurationKey, bindError)
		}
	}
	return nil
}
