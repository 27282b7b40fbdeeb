package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	redactedValuePlaceholderConstant        = "xxxxx"
)

const (
	gitCloneSubcommandNameConstant  = "clone"
	gitInitSubcommandNameConstant   = "init"
	gitRemoteSubcommandNameConstant = "remote"
	gitLogSubcommandNameConstant    = "log"
	gitShowSubcommandNameConstant   = "show"
	gitStatusSubcommandNameConstant = "status"
	gitAddSubcommandNameConstant    = "add"
	gitCommitSubcommandNameConstant = "commit"
	gitPushSubcommandNameConstant   = "push"
	gitDepthFlagConstant            = "--depth"
	gitForceFlagConstant            = "--force"
	gitMessageFlagConstant          = "-m"
	gitRemoteAddSubcommandConstant  = "add"
)

const (
	gitShallowCloneStartTemplateConstant         = "Probing %s with a shallow clone into %s"
	gitShallowCloneSuccessTemplateConstant       = "Shallow clone of %s available in %s"
	gitShallowCloneFailureTemplateConstant       = "Shallow clone of %s into %s failed (exit code %d%s)"
	gitCloneStartTemplateConstant                = "Cloning %s into %s"
	gitCloneSuccessTemplateConstant              = "Cloned %s into %s"
	gitCloneFailureTemplateConstant              = "Failed to clone %s into %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant     = "Unable to clone %s into %s: %s"
	gitInitStartTemplateConstant                 = "Initializing a new repository in %s"
	gitInitSuccessTemplateConstant               = "Initialized a new repository in %s"
	gitInitFailureTemplateConstant               = "Failed to initialize a repository in %s (exit code %d%s)"
	gitInitExecutionFailureTemplateConstant      = "Unable to initialize a repository in %s: %s"
	gitRemoteAddStartTemplateConstant            = "Registering %s remote %s in %s"
	gitRemoteAddSuccessTemplateConstant          = "Registered %s remote %s in %s"
	gitRemoteAddFailureTemplateConstant          = "Failed to register %s remote %s in %s (exit code %d%s)"
	gitRemoteAddExecutionFailureTemplateConstant = "Unable to register %s remote %s in %s: %s"
	gitLogStartTemplateConstant                  = "Reading latest commit in %s"
	gitLogSuccessTemplateConstant                = "Latest commit in %s is %s"
	gitLogEmptySuccessTemplateConstant           = "%s has no commits"
	gitLogFailureTemplateConstant                = "No readable commit in %s (exit code %d%s)"
	gitLogExecutionFailureTemplateConstant       = "Unable to read latest commit in %s: %s"
	gitShowStartTemplateConstant                 = "Looking up %s in %s"
	gitShowSuccessTemplateConstant               = "Resolved %s in %s"
	gitShowFailureTemplateConstant               = "%s does not resolve in %s (exit code %d%s)"
	gitShowExecutionFailureTemplateConstant      = "Unable to look up %s in %s: %s"
	gitStatusStartTemplateConstant               = "Reviewing working tree status in %s"
	gitStatusSuccessTemplateConstant             = "Collected working tree status for %s"
	gitStatusFailureTemplateConstant             = "Failed to review working tree status in %s (exit code %d%s)"
	gitStatusExecutionFailureTemplateConstant    = "Unable to review working tree status in %s: %s"
	gitAddStartTemplateConstant                  = "Staging %s in %s"
	gitAddSuccessTemplateConstant                = "Staged %s in %s"
	gitAddFailureTemplateConstant                = "Failed to stage %s in %s (exit code %d%s)"
	gitAddExecutionFailureTemplateConstant       = "Unable to stage %s in %s: %s"
	gitAddAllChangesLabelConstant                = "all changes"
	gitCommitStartTemplateConstant               = "Creating commit in %s with message %q"
	gitCommitSuccessTemplateConstant             = "Created commit in %s with message %q"
	gitCommitFailureTemplateConstant             = "Failed to create commit in %s with message %q (exit code %d%s)"
	gitCommitExecutionFailureTemplateConstant    = "Unable to create commit in %s with message %q: %s"
	gitPushStartTemplateConstant                 = "Pushing %s to %s from %s"
	gitForcePushStartTemplateConstant            = "Force pushing %s to %s from %s"
	gitPushSuccessTemplateConstant               = "Pushed %s to %s from %s"
	gitPushFailureTemplateConstant               = "Failed to push %s to %s from %s (exit code %d%s)"
	gitPushExecutionFailureTemplateConstant      = "Unable to push %s to %s from %s: %s"
	platformStartTemplateConstant                = "Requesting %s %s for %s"
	platformSuccessTemplateConstant              = "Platform confirmed %s %s for %s"
	platformFailureTemplateConstant              = "Platform rejected %s %s for %s (exit code %d%s)"
	platformExecutionFailureTemplateConstant     = "Unable to request %s %s for %s: %s"
	platformActionSeparatorConstant              = ":"
	platformNameFlagConstant                     = "--name"
	platformActionPartCountConstant              = 2
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildCompletedMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildCompletedMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	default:
		return formatter.describePlatformMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	subcommand := strings.TrimSpace(command.Details.Arguments[0])
	switch subcommand {
	case gitCloneSubcommandNameConstant:
		return formatter.describeGitCloneMessage(command, result, failure, stage)
	case gitInitSubcommandNameConstant:
		return formatter.describeGitInitMessage(command, result, failure, stage)
	case gitRemoteSubcommandNameConstant:
		return formatter.describeGitRemoteMessage(command, result, failure, stage)
	case gitLogSubcommandNameConstant:
		return formatter.describeGitLogMessage(command, result, failure, stage)
	case gitShowSubcommandNameConstant:
		return formatter.describeGitShowMessage(command, result, failure, stage)
	case gitStatusSubcommandNameConstant:
		return formatter.describeGitStatusMessage(command, result, failure, stage)
	case gitAddSubcommandNameConstant:
		return formatter.describeGitAddMessage(command, result, failure, stage)
	case gitCommitSubcommandNameConstant:
		return formatter.describeGitCommitMessage(command, result, failure, stage)
	case gitPushSubcommandNameConstant:
		return formatter.describeGitPushMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitCloneMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	positionalArguments := formatter.positionalArguments(arguments[1:])
	source := formatter.ensureValue(formatter.argumentAtIndex(positionalArguments, 0))
	destination := formatter.ensureValue(formatter.argumentAtIndex(positionalArguments, 1))
	isShallow := containsArgument(arguments, gitDepthFlagConstant)

	switch stage {
	case messageStageStart:
		if isShallow {
			return fmt.Sprintf(gitShallowCloneStartTemplateConstant, source, destination)
		}
		return fmt.Sprintf(gitCloneStartTemplateConstant, source, destination)
	case messageStageSuccess:
		if isShallow {
			return fmt.Sprintf(gitShallowCloneSuccessTemplateConstant, source, destination)
		}
		return fmt.Sprintf(gitCloneSuccessTemplateConstant, source, destination)
	case messageStageFailure:
		if isShallow {
			return fmt.Sprintf(gitShallowCloneFailureTemplateConstant, source, destination, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		}
		return fmt.Sprintf(gitCloneFailureTemplateConstant, source, destination, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitCloneExecutionFailureTemplateConstant, source, destination, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitInitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitInitStartTemplateConstant, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitInitSuccessTemplateConstant, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitInitFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitInitExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitRemoteMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) < 4 || strings.TrimSpace(arguments[1]) != gitRemoteAddSubcommandConstant {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	remoteName := formatter.ensureValue(arguments[2])
	remoteURL := formatter.ensureValue(arguments[3])
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitRemoteAddStartTemplateConstant, remoteName, remoteURL, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitRemoteAddSuccessTemplateConstant, remoteName, remoteURL, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitRemoteAddFailureTemplateConstant, remoteName, remoteURL, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitRemoteAddExecutionFailureTemplateConstant, remoteName, remoteURL, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitLogMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitLogStartTemplateConstant, workingDirectory)
	case messageStageSuccess:
		trimmed := strings.TrimSpace(result.StandardOutput)
		if len(trimmed) == 0 {
			return fmt.Sprintf(gitLogEmptySuccessTemplateConstant, workingDirectory)
		}
		return fmt.Sprintf(gitLogSuccessTemplateConstant, workingDirectory, trimmed)
	case messageStageFailure:
		return fmt.Sprintf(gitLogFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitLogExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitShowMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	revision := formatter.resolveRevisionReference(command.Details.Arguments)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitShowStartTemplateConstant, revision, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitShowSuccessTemplateConstant, revision, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitShowFailureTemplateConstant, revision, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitShowExecutionFailureTemplateConstant, revision, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitStatusMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitStatusStartTemplateConstant, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitStatusSuccessTemplateConstant, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitStatusFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitStatusExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitAddMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	pathspecs := formatter.positionalArguments(command.Details.Arguments[1:])
	target := gitAddAllChangesLabelConstant
	if len(pathspecs) > 0 {
		target = strings.Join(pathspecs, ", ")
	}
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitAddStartTemplateConstant, target, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitAddSuccessTemplateConstant, target, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitAddFailureTemplateConstant, target, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitAddExecutionFailureTemplateConstant, target, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitCommitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	commitMessage := formatter.extractCommitMessage(command.Details.Arguments)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitCommitStartTemplateConstant, workingDirectory, commitMessage)
	case messageStageSuccess:
		return fmt.Sprintf(gitCommitSuccessTemplateConstant, workingDirectory, commitMessage)
	case messageStageFailure:
		return fmt.Sprintf(gitCommitFailureTemplateConstant, workingDirectory, commitMessage, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitCommitExecutionFailureTemplateConstant, workingDirectory, commitMessage, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitPushMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)
	positionalArguments := formatter.positionalArguments(arguments[1:])
	remoteName := formatter.ensureValue(formatter.argumentAtIndex(positionalArguments, 0))
	reference := formatter.ensureValue(formatter.argumentAtIndex(positionalArguments, 1))
	isForced := containsArgument(arguments, gitForceFlagConstant)

	switch stage {
	case messageStageStart:
		if isForced {
			return fmt.Sprintf(gitForcePushStartTemplateConstant, reference, remoteName, workingDirectory)
		}
		return fmt.Sprintf(gitPushStartTemplateConstant, reference, remoteName, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitPushSuccessTemplateConstant, reference, remoteName, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitPushFailureTemplateConstant, reference, remoteName, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitPushExecutionFailureTemplateConstant, reference, remoteName, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describePlatformMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	actionParts := strings.SplitN(strings.TrimSpace(arguments[0]), platformActionSeparatorConstant, platformActionPartCountConstant)
	if len(actionParts) != platformActionPartCountConstant {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	resource := actionParts[0]
	action := actionParts[1]
	subject := formatter.ensureValue(findFlagValue(arguments, platformNameFlagConstant))

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(platformStartTemplateConstant, resource, action, subject)
	case messageStageSuccess:
		return fmt.Sprintf(platformSuccessTemplateConstant, resource, action, subject)
	case messageStageFailure:
		return fmt.Sprintf(platformFailureTemplateConstant, resource, action, subject, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(platformExecutionFailureTemplateConstant, resource, action, subject, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) resolveRevisionReference(arguments []string) string {
	if len(arguments) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	lastArgument := strings.TrimSpace(arguments[len(arguments)-1])
	if len(lastArgument) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return lastArgument
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index >= 0 && index < len(arguments) {
		return arguments[index]
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

// positionalArguments drops flags and the values of flags known to take one.
func (formatter CommandMessageFormatter) positionalArguments(arguments []string) []string {
	positional := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		trimmed := strings.TrimSpace(arguments[index])
		if len(trimmed) == 0 {
			continue
		}
		if trimmed == gitDepthFlagConstant || trimmed == gitMessageFlagConstant {
			index++
			continue
		}
		if strings.HasPrefix(trimmed, "-") {
			continue
		}
		positional = append(positional, trimmed)
	}
	return positional
}

func (formatter CommandMessageFormatter) extractCommitMessage(arguments []string) string {
	commitMessage := findFlagValue(arguments, gitMessageFlagConstant)
	if len(commitMessage) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return commitMessage
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == flag && index+1 < len(arguments) {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return emptyStringConstant
}

func maskSensitiveValues(text string, sensitiveValues []string) string {
	masked := text
	for _, sensitiveValue := range sensitiveValues {
		if len(sensitiveValue) == 0 {
			continue
		}
		masked = strings.ReplaceAll(masked, sensitiveValue, redactedValuePlaceholderConstant)
	}
	return masked
}
