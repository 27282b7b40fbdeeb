package execshell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

const (
	environmentAssignmentSeparatorConstant = "="
	gitTerminalPromptVariableConstant      = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledConstant      = "0"
	processWaitDelayConstant               = 5 * time.Second
)

// OSCommandRunner executes commands using the operating system facilities.
type OSCommandRunner struct {
	environmentProvider func() []string
}

// NewOSCommandRunner constructs a runner backed by os/exec that inherits the process environment.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{environmentProvider: os.Environ}
}

// Run executes the supplied command. Cancelling executionContext kills the process and Run returns the context error.
// Git never prompts for credentials: a rejected credential fails the command instead of blocking a CI job.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executable := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	executable.WaitDelay = processWaitDelayConstant
	executable.Env = runner.processEnvironment(command)

	if len(command.Details.WorkingDirectory) > 0 {
		executable.Dir = command.Details.WorkingDirectory
	}

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	executable.Stdout = &standardOutputBuffer
	executable.Stderr = &standardErrorBuffer

	if len(command.Details.StandardInput) > 0 {
		executable.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	runError := executable.Run()
	result := ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
	}
	if runError == nil {
		return result, nil
	}
	if contextError := executionContext.Err(); contextError != nil {
		return ExecutionResult{}, contextError
	}
	var exitError *exec.ExitError
	if errors.As(runError, &exitError) {
		result.ExitCode = exitError.ExitCode()
		return result, nil
	}
	return ExecutionResult{}, runError
}

// processEnvironment layers the command's variables over the inherited environment, replacing inherited keys.
func (runner *OSCommandRunner) processEnvironment(command ShellCommand) []string {
	overrides := make(map[string]string, len(command.Details.EnvironmentVariables)+1)
	if command.Name == CommandGit {
		overrides[gitTerminalPromptVariableConstant] = gitTerminalPromptDisabledConstant
	}
	for environmentKey, environmentValue := range command.Details.EnvironmentVariables {
		overrides[environmentKey] = environmentValue
	}

	var inherited []string
	if runner.environmentProvider != nil {
		inherited = runner.environmentProvider()
	}
	return mergeEnvironment(inherited, overrides)
}

func mergeEnvironment(inherited []string, overrides map[string]string) []string {
	merged := make([]string, 0, len(inherited)+len(overrides))
	for _, assignment := range inherited {
		environmentKey, _, _ := strings.Cut(assignment, environmentAssignmentSeparatorConstant)
		if _, overridden := overrides[environmentKey]; overridden {
			continue
		}
		merged = append(merged, assignment)
	}

	overrideKeys := make([]string, 0, len(overrides))
	for environmentKey := range overrides {
		overrideKeys = append(overrideKeys, environmentKey)
	}
	sort.Strings(overrideKeys)
	for _, environmentKey := range overrideKeys {
		merged = append(merged, environmentKey+environmentAssignmentSeparatorConstant+overrides[environmentKey])
	}
	return merged
}
