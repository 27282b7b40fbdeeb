package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/dedeploy/internal/execshell"
	"github.com/temirov/dedeploy/internal/platform"
	"github.com/temirov/dedeploy/internal/ui"
	flagutils "github.com/temirov/dedeploy/internal/utils/flags"
	pathutils "github.com/temirov/dedeploy/internal/utils/path"
	"github.com/temirov/dedeploy/internal/vcs"
)

const (
	commandUseConstant                    = "deploy <app-name>"
	commandShortDescriptionConstant       = "Deploy one application to the platform"
	commandLongDescriptionConstant        = "deploy mirrors apps/<app-name> into the application's git repository on the platform, injecting the shared bootstrap files, provisioning backing services on request, and pushing only when the content changed."
	commitIdentifierFlagNameConstant      = "commit-id"
	commitIdentifierFlagUsageConstant     = "Commit identifier recorded in the deploy commit message"
	appsRootFlagNameConstant              = "apps-root"
	appsRootFlagUsageConstant             = "Directory containing one sub-directory per application"
	bootstrapDirectoryFlagNameConstant    = "bootstrap-dir"
	bootstrapDirectoryFlagUsageConstant   = "Directory holding the shared descriptor, pre-deploy script, runtime file and ignore list"
	createAppFlagNameConstant             = "create-app"
	createAppFlagUsageConstant            = "Create the application on the platform when it does not exist"
	allowRestrictedFlagNameConstant       = "allow-restricted"
	allowRestrictedFlagUsageConstant      = "Deploy applications matching the restricted pattern"
	autoProvisionFlagNameConstant         = "auto-provision"
	autoProvisionFlagUsageConstant        = "Create and link database and cache services detected from requirements.txt"
	workingDirectoryErrorTemplateConstant = "unable to determine working directory: %w"
	vcsClientCreationErrorTemplate        = "unable to construct git client: %w"
	platformClientCreationErrorTemplate   = "unable to construct platform client: %w"
	deployExecutionErrorTemplateConstant  = "deploy failed: %w"
	summaryPrintErrorTemplateConstant     = "unable to print deployment summary: %w"
	commandLogDeploySkippedConstant       = "Deploy skipped"
	commandLogDeployFailedConstant        = "Deploy failed"
	commandLogDeployCompletedConstant     = "Deploy completed"
	logFieldSkipReasonConstant            = "reason"
	logFieldSyncStateConstant             = "sync_state"
	logFieldAppCreatedConstant            = "app_created"
	logFieldServicesConstant              = "services"
)

// CommandExecutor runs both git and the platform CLI.
type CommandExecutor interface {
	vcs.GitExecutor
	platform.CommandExecutor
}

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs a deployer from dependencies.
type ServiceProvider func(dependencies ServiceDependencies) (Deployer, error)

// CommandBuilder assembles the deploy Cobra command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     CommandExecutor
	WorkingDirectory             string
	ServiceProvider              ServiceProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() Configuration
}

type commandOptions struct {
	createApp       bool
	allowRestricted bool
	autoProvision   bool
}

// Build constructs the deploy command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	options := &commandOptions{}
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runDeploy(command, arguments, options)
		},
	}

	command.Flags().String(commitIdentifierFlagNameConstant, "", commitIdentifierFlagUsageConstant)
	command.Flags().String(appsRootFlagNameConstant, "", appsRootFlagUsageConstant)
	command.Flags().String(bootstrapDirectoryFlagNameConstant, "", bootstrapDirectoryFlagUsageConstant)
	flagutils.AddToggleFlag(command.Flags(), &options.createApp, createAppFlagNameConstant, "", false, createAppFlagUsageConstant)
	flagutils.AddToggleFlag(command.Flags(), &options.allowRestricted, allowRestrictedFlagNameConstant, "", false, allowRestrictedFlagUsageConstant)
	flagutils.AddToggleFlag(command.Flags(), &options.autoProvision, autoProvisionFlagNameConstant, "", false, autoProvisionFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) runDeploy(command *cobra.Command, arguments []string, options *commandOptions) error {
	configuration, configurationError := builder.resolveCommandConfiguration(command, options)
	if configurationError != nil {
		return configurationError
	}

	logger := builder.resolveLogger()

	executor, executorError := builder.resolveExecutor(logger, configuration)
	if executorError != nil {
		return executorError
	}

	vcsClient, vcsClientError := vcs.NewClient(executor, vcs.Identity{
		Name:  configuration.Git.AuthorName,
		Email: configuration.Git.AuthorEmail,
	}, configuration.SensitiveValues())
	if vcsClientError != nil {
		return fmt.Errorf(vcsClientCreationErrorTemplate, vcsClientError)
	}

	platformClient, platformClientError := platform.NewClient(executor, platform.Credentials{
		PlatformURL: configuration.Platform.URL,
		Username:    configuration.Platform.Username,
		APIKey:      configuration.Platform.APIKey,
	})
	if platformClientError != nil {
		return fmt.Errorf(platformClientCreationErrorTemplate, platformClientError)
	}

	service, serviceError := builder.resolveService(ServiceDependencies{
		Logger:         logger,
		VcsClient:      vcsClient,
		PlatformClient: platformClient,
		Configuration:  configuration,
	})
	if serviceError != nil {
		return serviceError
	}

	executionContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	summaryPrinter := ui.NewSummaryPrinter(command.OutOrStdout())
	result, deployError := service.Deploy(executionContext, arguments[0])

	if skipError, skipped := AsSkip(deployError); skipped {
		logger.Warn(commandLogDeploySkippedConstant,
			zap.String(logFieldAppNameConstant, skipError.AppName),
			zap.String(logFieldSkipReasonConstant, string(skipError.Reason)),
		)
		return builder.printSummary(summaryPrinter, ui.DeploymentSummary{AppName: skipError.AppName, SkipReason: string(skipError.Reason)})
	}

	if deployError != nil {
		if errors.Is(deployError, context.Canceled) || errors.Is(deployError, context.DeadlineExceeded) {
			return deployError
		}
		logger.Error(commandLogDeployFailedConstant,
			zap.String(logFieldAppNameConstant, strings.TrimSpace(arguments[0])),
			zap.String(logFieldRepositoryStateConstant, string(result.Sync.RepositoryState)),
			zap.String(logFieldSyncStateConstant, string(result.Sync.SyncState)),
			zap.Error(deployError),
		)
		return fmt.Errorf(deployExecutionErrorTemplateConstant, deployError)
	}

	serviceNames := make([]string, 0, len(result.Services))
	for _, provisionedService := range result.Services {
		serviceNames = append(serviceNames, provisionedService.Name)
	}
	logger.Info(commandLogDeployCompletedConstant,
		zap.String(logFieldAppNameConstant, result.AppName),
		zap.String(logFieldRepositoryStateConstant, string(result.Sync.RepositoryState)),
		zap.String(logFieldSyncStateConstant, string(result.Sync.SyncState)),
		zap.Bool(logFieldAppCreatedConstant, result.AppCreated),
		zap.Strings(logFieldServicesConstant, serviceNames),
	)

	return builder.printSummary(summaryPrinter, buildSummary(result))
}

func (builder *CommandBuilder) printSummary(printer *ui.SummaryPrinter, summary ui.DeploymentSummary) error {
	if printError := printer.Print(summary); printError != nil {
		return fmt.Errorf(summaryPrintErrorTemplateConstant, printError)
	}
	return nil
}

func buildSummary(result Result) ui.DeploymentSummary {
	summary := ui.DeploymentSummary{
		AppName:         result.AppName,
		RepositoryState: string(result.Sync.RepositoryState),
		SyncResult:      ui.SyncResult(result.Sync.SyncState),
		CommitMessage:   result.Sync.CommitMessage,
		AppCreated:      result.AppCreated,
		IsDashr:         result.IsDashr,
	}
	for _, provisionedService := range result.Services {
		summary.Services = append(summary.Services, ui.ServiceSummary{Name: provisionedService.Name, Created: provisionedService.Created})
	}
	return summary
}

// resolveCommandConfiguration layers changed flags over the provided configuration and anchors relative paths.
func (builder *CommandBuilder) resolveCommandConfiguration(command *cobra.Command, options *commandOptions) (Configuration, error) {
	configuration := builder.resolveConfiguration()
	flagSet := command.Flags()

	if flagSet.Changed(commitIdentifierFlagNameConstant) {
		flagValue, _ := flagSet.GetString(commitIdentifierFlagNameConstant)
		configuration.Deploy.CommitIdentifier = strings.TrimSpace(flagValue)
	}
	if flagSet.Changed(appsRootFlagNameConstant) {
		flagValue, _ := flagSet.GetString(appsRootFlagNameConstant)
		configuration.Deploy.AppsRoot = strings.TrimSpace(flagValue)
	}
	if flagSet.Changed(bootstrapDirectoryFlagNameConstant) {
		flagValue, _ := flagSet.GetString(bootstrapDirectoryFlagNameConstant)
		configuration.Deploy.BootstrapDirectory = strings.TrimSpace(flagValue)
	}
	if flagSet.Changed(createAppFlagNameConstant) {
		configuration.Deploy.CreateApp = options.createApp
	}
	if flagSet.Changed(allowRestrictedFlagNameConstant) {
		configuration.Deploy.AllowRestricted = options.allowRestricted
	}
	if flagSet.Changed(autoProvisionFlagNameConstant) {
		configuration.Deploy.AutoProvision = options.autoProvision
	}

	workingDirectory := builder.WorkingDirectory
	if len(workingDirectory) == 0 {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return Configuration{}, fmt.Errorf(workingDirectoryErrorTemplateConstant, workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	return configuration.Sanitize().ResolvePaths(pathutils.NewResolver(), workingDirectory), nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger, configuration Configuration) (CommandExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, commandRunner, humanReadableLogging)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor.WithPlatformExecutable(configuration.Platform.Executable), nil
}

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies) (Deployer, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}
	return NewService(dependencies)
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider()
}
