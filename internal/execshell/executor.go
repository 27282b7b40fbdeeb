package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell executor command runner not configured"
	commandFailedTemplateConstant             = "%s command exited with code %d"
	commandFailedWithOutputTemplateConstant   = "%s command exited with code %d: %s"
	commandExecutionFailedTemplateConstant    = "%s command could not be executed: %s"
	commandStartedLogMessageConstant          = "Executing command"
	commandCompletedLogMessageConstant        = "Command completed"
	commandFailedLogMessageConstant           = "Command exited with non-zero status"
	commandExecutionFailedLogMessageConstant  = "Command execution failed"
	logFieldCommandNameConstant               = "command"
	logFieldArgumentsConstant                 = "arguments"
	logFieldWorkingDirectoryConstant          = "working_directory"
	logFieldExitCodeConstant                  = "exit_code"
	logFieldStandardErrorConstant             = "stderr"
	logFieldErrorConstant                     = "error"
	commandGitStringConstant                  = "git"
	commandPlatformStringConstant             = "dds-client"
)

// CommandName identifies an executable invoked by the shell executor.
type CommandName string

// Supported executables.
const (
	CommandGit      CommandName = CommandName(commandGitStringConstant)
	CommandPlatform CommandName = CommandName(commandPlatformStringConstant)
)

// CommandDetails describes the arguments and environment of a single invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
	// SensitiveValues are masked in every log line and error message.
	SensitiveValues []string
}

// ShellCommand couples an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable output of a finished process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandFailedError reports a process that finished with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command.
func (failedError CommandFailedError) Error() string {
	trimmedStandardError := maskSensitiveValues(strings.TrimSpace(failedError.Result.StandardError), failedError.Command.Details.SensitiveValues)
	if len(trimmedStandardError) == 0 {
		return fmt.Sprintf(commandFailedTemplateConstant, failedError.Command.Name, failedError.Result.ExitCode)
	}
	return fmt.Sprintf(commandFailedWithOutputTemplateConstant, failedError.Command.Name, failedError.Result.ExitCode, trimmedStandardError)
}

// CommandExecutionError reports a process that could not be started or was interrupted.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	causeDescription := unknownFailureMessageConstant
	if executionError.Cause != nil {
		causeDescription = maskSensitiveValues(executionError.Cause.Error(), executionError.Command.Details.SensitiveValues)
	}
	return fmt.Sprintf(commandExecutionFailedTemplateConstant, executionError.Command.Name, causeDescription)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

var (
	// ErrLoggerNotConfigured indicates a missing logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates a missing command runner.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// ShellExecutor runs external tools and reports their lifecycle through zap.
type ShellExecutor struct {
	logger               *zap.Logger
	runner               CommandRunner
	humanReadableLogging bool
	messageFormatter     CommandMessageFormatter
	platformExecutable   CommandName
}

// NewShellExecutor constructs a ShellExecutor. When humanReadableLogging is set the
// executor emits descriptive sentences instead of structured fields.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, humanReadableLogging bool) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{
		logger:               logger,
		runner:               runner,
		humanReadableLogging: humanReadableLogging,
		messageFormatter:     CommandMessageFormatter{},
		platformExecutable:   CommandPlatform,
	}, nil
}

// WithPlatformExecutable returns a copy of the executor that invokes the named platform CLI binary.
func (executor *ShellExecutor) WithPlatformExecutable(executableName string) *ShellExecutor {
	duplicated := *executor
	trimmedName := strings.TrimSpace(executableName)
	if len(trimmedName) > 0 {
		duplicated.platformExecutable = CommandName(trimmedName)
	}
	return &duplicated
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// ExecutePlatformCLI runs the platform command-line client with the provided details.
func (executor *ShellExecutor) ExecutePlatformCLI(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: executor.platformExecutable, Details: details})
}

// Execute runs an arbitrary command. A non-zero exit code yields CommandFailedError.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.logStarted(command)

	executionResult, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.logExecutionFailure(command, runError)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	if executionResult.ExitCode != 0 {
		executor.logFailure(command, executionResult)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logCompleted(command, executionResult)
	return executionResult, nil
}

func (executor *ShellExecutor) logStarted(command ShellCommand) {
	if executor.humanReadableLogging {
		executor.logger.Info(executor.maskedMessage(command, executor.messageFormatter.BuildStartedMessage(command)))
		return
	}
	executor.logger.Info(commandStartedLogMessageConstant, executor.commandFields(command)...)
}

func (executor *ShellExecutor) logCompleted(command ShellCommand, result ExecutionResult) {
	if executor.humanReadableLogging {
		executor.logger.Info(executor.maskedMessage(command, executor.messageFormatter.BuildCompletedMessage(command, result)))
		return
	}
	executor.logger.Debug(commandCompletedLogMessageConstant, executor.commandFields(command)...)
}

func (executor *ShellExecutor) logFailure(command ShellCommand, result ExecutionResult) {
	if executor.humanReadableLogging {
		executor.logger.Warn(executor.maskedMessage(command, executor.messageFormatter.BuildFailureMessage(command, result)))
		return
	}
	fields := append(executor.commandFields(command),
		zap.Int(logFieldExitCodeConstant, result.ExitCode),
		zap.String(logFieldStandardErrorConstant, maskSensitiveValues(strings.TrimSpace(result.StandardError), command.Details.SensitiveValues)),
	)
	executor.logger.Warn(commandFailedLogMessageConstant, fields...)
}

func (executor *ShellExecutor) logExecutionFailure(command ShellCommand, failure error) {
	if executor.humanReadableLogging {
		executor.logger.Error(executor.maskedMessage(command, executor.messageFormatter.BuildExecutionFailureMessage(command, failure)))
		return
	}
	fields := append(executor.commandFields(command), zap.String(logFieldErrorConstant, maskSensitiveValues(failure.Error(), command.Details.SensitiveValues)))
	executor.logger.Error(commandExecutionFailedLogMessageConstant, fields...)
}

func (executor *ShellExecutor) commandFields(command ShellCommand) []zap.Field {
	maskedArguments := make([]string, 0, len(command.Details.Arguments))
	for _, argument := range command.Details.Arguments {
		maskedArguments = append(maskedArguments, maskSensitiveValues(argument, command.Details.SensitiveValues))
	}
	return []zap.Field{
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, maskedArguments),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	}
}

func (executor *ShellExecutor) maskedMessage(command ShellCommand, message string) string {
	return maskSensitiveValues(message, command.Details.SensitiveValues)
}
