package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/dedeploy/internal/deploy"
	"github.com/temirov/dedeploy/internal/utils"
)

const (
	applicationNameConstant                 = "dedeploy"
	applicationShortDescriptionConstant     = "Deploy Dash apps to a Dash Enterprise server from CI"
	applicationLongDescriptionConstant      = "dedeploy mirrors an application directory from a monorepo into the Dash Enterprise git remote, injecting shared bootstrap files and provisioning backing services."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	envFileFlagNameConstant                 = "env-file"
	envFileFlagUsageConstant                = "Dotenv file loaded before resolving configuration (repeatable)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	bootstrapDirectoryConfigKeyConstant     = "deploy.bootstrap_directory"
	ignoreFileConfigKeyConstant             = "deploy.ignore_file"
	environmentPrefixConstant               = "DEDEPLOY"
	configurationNameConstant               = "dedeploy"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationEnvFilesFieldConstant      = "env_files"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	rootCommandInfoMessageConstant          = "dedeploy CLI executed"
	rootCommandDebugMessageConstant         = "dedeploy CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common" yaml:"common"`
	Deploy deploy.Configuration           `mapstructure:",squash" yaml:",inline"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand                 *cobra.Command
	configurationLoader         *utils.ConfigurationLoader
	loggerFactory               *utils.LoggerFactory
	logger                      *zap.Logger
	configuration               ApplicationConfiguration
	configurationMetadata       utils.LoadedConfiguration
	configurationFilePath       string
	environmentFilePaths        []string
	logLevelFlagValue           string
	logFormatFlagValue          string
	commandContextAccessor      utils.CommandContextAccessor
	executableDirectoryProvider func() (string, error)
	deployCommandBuilder        *deploy.CommandBuilder
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())
	configurationLoader.SetEnvironmentAliases(deploy.EnvironmentAliases())

	application := &Application{
		configurationLoader:         configurationLoader,
		loggerFactory:               utils.NewLoggerFactory(),
		logger:                      zap.NewNop(),
		commandContextAccessor:      utils.NewCommandContextAccessor(),
		executableDirectoryProvider: executableDirectory,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringSliceVar(&application.environmentFilePaths, envFileFlagNameConstant, nil, envFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	application.deployCommandBuilder = &deploy.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider: func() deploy.Configuration {
			return application.configuration.Deploy
		},
	}
	if workingDirectory, workingDirectoryError := os.Getwd(); workingDirectoryError == nil {
		application.deployCommandBuilder.WorkingDirectory = workingDirectory
	}
	deployCommand, deployBuildError := application.deployCommandBuilder.Build()
	if deployBuildError == nil {
		cobraCommand.AddCommand(deployCommand)
	}

	cobraCommand.AddCommand(application.newConfigCommand())

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:     string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:    string(utils.LogFormatStructured),
		bootstrapDirectoryConfigKeyConstant: "",
		ignoreFileConfigKeyConstant:         "",
	}
	if application.executableDirectoryProvider != nil {
		if directory, directoryError := application.executableDirectoryProvider(); directoryError == nil {
			defaultValues[bootstrapDirectoryConfigKeyConstant] = directory
		}
	}

	application.configurationLoader.SetEnvironmentFiles(application.environmentFilePaths)
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.Strings(configurationEnvFilesFieldConstant, application.configurationMetadata.EnvironmentFiles),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithLoadedConfiguration(
			command.Context(),
			application.configurationMetadata,
		)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	return utils.LogFormat(strings.TrimSpace(application.configuration.Common.LogFormat)).IsHumanReadable()
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	if len(arguments) == 0 {
		return command.Help()
	}

	return nil
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return nil
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

// executableDirectory locates the directory holding the running binary, where the shared bootstrap files ship.
func executableDirectory() (string, error) {
	executablePath, executableError := os.Executable()
	if executableError != nil {
		return "", executableError
	}
	resolvedPath, resolveError := filepath.EvalSymlinks(executablePath)
	if resolveError != nil {
		return "", resolveError
	}
	return filepath.Dir(resolvedPath), nil
}
