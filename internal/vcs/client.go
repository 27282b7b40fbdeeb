package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/dedeploy/internal/execshell"
)

const (
	cloneSubcommandConstant                 = "clone"
	initSubcommandConstant                  = "init"
	remoteSubcommandConstant                = "remote"
	remoteAddSubcommandConstant             = "add"
	logSubcommandConstant                   = "log"
	showSubcommandConstant                  = "show"
	statusSubcommandConstant                = "status"
	addSubcommandConstant                   = "add"
	commitSubcommandConstant                = "commit"
	pushSubcommandConstant                  = "push"
	depthFlagConstant                       = "--depth"
	shallowDepthValueConstant               = "1"
	singleEntryFlagConstant                 = "-1"
	shortHashFormatFlagConstant             = "--format=%h"
	fullHashFormatFlagConstant              = "--format=%H"
	noPatchFlagConstant                     = "--no-patch"
	porcelainFlagConstant                   = "--porcelain"
	allChangesFlagConstant                  = "-A"
	messageFlagConstant                     = "-m"
	forceFlagConstant                       = "--force"
	headReferenceTemplateConstant           = "HEAD:%s"
	authorNameEnvironmentConstant           = "GIT_AUTHOR_NAME"
	authorEmailEnvironmentConstant          = "GIT_AUTHOR_EMAIL"
	committerNameEnvironmentConstant        = "GIT_COMMITTER_NAME"
	committerEmailEnvironmentConstant       = "GIT_COMMITTER_EMAIL"
	requiredValueMessageConstant            = "value required"
	executorNotConfiguredMessageConstant    = "git executor not configured"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	remoteURLFieldNameConstant              = "remote_url"
	destinationFieldNameConstant            = "destination"
	directoryFieldNameConstant              = "directory"
	remoteNameFieldNameConstant             = "remote_name"
	revisionFieldNameConstant               = "revision"
	messageFieldNameConstant                = "message"
	branchFieldNameConstant                 = "branch"
	shallowCloneOperationNameConstant       = OperationName("ShallowClone")
	cloneOperationNameConstant              = OperationName("Clone")
	initOperationNameConstant               = OperationName("Init")
	addRemoteOperationNameConstant          = OperationName("AddRemote")
	latestShortHashOperationNameConstant    = OperationName("LatestShortHash")
	lookupCommitOperationNameConstant       = OperationName("LookupCommit")
	statusOperationNameConstant             = OperationName("Status")
	stageAllOperationNameConstant           = OperationName("StageAll")
	commitOperationNameConstant             = OperationName("Commit")
	pushOperationNameConstant               = OperationName("Push")
)

// OperationName describes a named git workflow supported by the client.
type OperationName string

// PushOptions selects the remote and branch a push targets.
type PushOptions struct {
	RemoteName string
	Branch     string
	Force      bool
}

// Identity names the author and committer recorded on deployment commits.
type Identity struct {
	Name  string
	Email string
}

// VcsClient is the version-control port used by the deployment procedure.
type VcsClient interface {
	ShallowClone(executionContext context.Context, remoteURL string, destination string) error
	Clone(executionContext context.Context, remoteURL string, destination string) error
	Init(executionContext context.Context, directory string) error
	AddRemote(executionContext context.Context, directory string, remoteName string, remoteURL string) error
	LatestShortHash(executionContext context.Context, directory string) (string, error)
	LookupCommit(executionContext context.Context, directory string, revision string) (bool, error)
	IsClean(executionContext context.Context, directory string) (bool, error)
	StageAll(executionContext context.Context, directory string) error
	Commit(executionContext context.Context, directory string, message string) error
	Push(executionContext context.Context, directory string, options PushOptions) error
}

// GitExecutor is the minimal interface required from execshell.ShellExecutor.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for git operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// Client runs git through execshell. SensitiveValues are masked in every invocation's logs.
type Client struct {
	executor        GitExecutor
	identity        Identity
	sensitiveValues []string
}

var _ VcsClient = (*Client)(nil)

// NewClient constructs a git client.
func NewClient(executor GitExecutor, identity Identity, sensitiveValues []string) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Client{
		executor:        executor,
		identity:        Identity{Name: strings.TrimSpace(identity.Name), Email: strings.TrimSpace(identity.Email)},
		sensitiveValues: append([]string{}, sensitiveValues...),
	}, nil
}

// ShallowClone fetches only the newest commit of remoteURL into destination.
func (client *Client) ShallowClone(executionContext context.Context, remoteURL string, destination string) error {
	if validationError := requireValues(remoteURLFieldNameConstant, remoteURL, destinationFieldNameConstant, destination); validationError != nil {
		return validationError
	}
	arguments := []string{cloneSubcommandConstant, depthFlagConstant, shallowDepthValueConstant, remoteURL, destination}
	_, executionError := client.execute(executionContext, shallowCloneOperationNameConstant, "", arguments)
	return executionError
}

// Clone fetches the complete history of remoteURL into destination.
func (client *Client) Clone(executionContext context.Context, remoteURL string, destination string) error {
	if validationError := requireValues(remoteURLFieldNameConstant, remoteURL, destinationFieldNameConstant, destination); validationError != nil {
		return validationError
	}
	arguments := []string{cloneSubcommandConstant, remoteURL, destination}
	_, executionError := client.execute(executionContext, cloneOperationNameConstant, "", arguments)
	return executionError
}

// Init creates an empty repository in directory.
func (client *Client) Init(executionContext context.Context, directory string) error {
	if validationError := requireValues(directoryFieldNameConstant, directory); validationError != nil {
		return validationError
	}
	_, executionError := client.execute(executionContext, initOperationNameConstant, directory, []string{initSubcommandConstant})
	return executionError
}

// AddRemote registers remoteURL under remoteName.
func (client *Client) AddRemote(executionContext context.Context, directory string, remoteName string, remoteURL string) error {
	if validationError := requireValues(directoryFieldNameConstant, directory, remoteNameFieldNameConstant, remoteName, remoteURLFieldNameConstant, remoteURL); validationError != nil {
		return validationError
	}
	arguments := []string{remoteSubcommandConstant, remoteAddSubcommandConstant, strings.TrimSpace(remoteName), remoteURL}
	_, executionError := client.execute(executionContext, addRemoteOperationNameConstant, directory, arguments)
	return executionError
}

// LatestShortHash returns the abbreviated hash of HEAD, or an empty string when the repository has no commits.
func (client *Client) LatestShortHash(executionContext context.Context, directory string) (string, error) {
	if validationError := requireValues(directoryFieldNameConstant, directory); validationError != nil {
		return "", validationError
	}
	arguments := []string{logSubcommandConstant, singleEntryFlagConstant, shortHashFormatFlagConstant}
	executionResult, executionError := client.execute(executionContext, latestShortHashOperationNameConstant, directory, arguments)
	if executionError != nil {
		if isCommandFailure(executionError) {
			return "", nil
		}
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// LookupCommit reports whether revision resolves to a commit in directory.
func (client *Client) LookupCommit(executionContext context.Context, directory string, revision string) (bool, error) {
	if validationError := requireValues(directoryFieldNameConstant, directory, revisionFieldNameConstant, revision); validationError != nil {
		return false, validationError
	}
	arguments := []string{showSubcommandConstant, noPatchFlagConstant, fullHashFormatFlagConstant, strings.TrimSpace(revision)}
	_, executionError := client.execute(executionContext, lookupCommitOperationNameConstant, directory, arguments)
	if executionError != nil {
		if isCommandFailure(executionError) {
			return false, nil
		}
		return false, executionError
	}
	return true, nil
}

// IsClean reports whether the working tree has no staged, unstaged or untracked changes.
func (client *Client) IsClean(executionContext context.Context, directory string) (bool, error) {
	if validationError := requireValues(directoryFieldNameConstant, directory); validationError != nil {
		return false, validationError
	}
	arguments := []string{statusSubcommandConstant, porcelainFlagConstant}
	executionResult, executionError := client.execute(executionContext, statusOperationNameConstant, directory, arguments)
	if executionError != nil {
		return false, executionError
	}
	return len(strings.TrimSpace(executionResult.StandardOutput)) == 0, nil
}

// StageAll stages additions, modifications and deletions.
func (client *Client) StageAll(executionContext context.Context, directory string) error {
	if validationError := requireValues(directoryFieldNameConstant, directory); validationError != nil {
		return validationError
	}
	_, executionError := client.execute(executionContext, stageAllOperationNameConstant, directory, []string{addSubcommandConstant, allChangesFlagConstant})
	return executionError
}

// Commit records the staged changes with message.
func (client *Client) Commit(executionContext context.Context, directory string, message string) error {
	if validationError := requireValues(directoryFieldNameConstant, directory, messageFieldNameConstant, message); validationError != nil {
		return validationError
	}
	commandDetails := client.commandDetails(directory, []string{commitSubcommandConstant, messageFlagConstant, message})
	commandDetails.EnvironmentVariables = client.identityEnvironment()
	_, executionError := client.run(executionContext, commitOperationNameConstant, commandDetails)
	return executionError
}

// Push publishes HEAD to options.Branch on options.RemoteName.
func (client *Client) Push(executionContext context.Context, directory string, options PushOptions) error {
	if validationError := requireValues(directoryFieldNameConstant, directory, remoteNameFieldNameConstant, options.RemoteName, branchFieldNameConstant, options.Branch); validationError != nil {
		return validationError
	}
	arguments := []string{pushSubcommandConstant}
	if options.Force {
		arguments = append(arguments, forceFlagConstant)
	}
	arguments = append(arguments, strings.TrimSpace(options.RemoteName), fmt.Sprintf(headReferenceTemplateConstant, strings.TrimSpace(options.Branch)))
	_, executionError := client.execute(executionContext, pushOperationNameConstant, directory, arguments)
	return executionError
}

func (client *Client) execute(executionContext context.Context, operation OperationName, directory string, arguments []string) (execshell.ExecutionResult, error) {
	return client.run(executionContext, operation, client.commandDetails(directory, arguments))
}

func (client *Client) run(executionContext context.Context, operation OperationName, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executionResult, executionError := client.executor.ExecuteGit(executionContext, details)
	if executionError != nil {
		return execshell.ExecutionResult{}, OperationError{Operation: operation, Cause: executionError}
	}
	return executionResult, nil
}

func (client *Client) commandDetails(directory string, arguments []string) execshell.CommandDetails {
	return execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: strings.TrimSpace(directory),
		SensitiveValues:  client.sensitiveValues,
	}
}

func (client *Client) identityEnvironment() map[string]string {
	environment := map[string]string{}
	if len(client.identity.Name) > 0 {
		environment[authorNameEnvironmentConstant] = client.identity.Name
		environment[committerNameEnvironmentConstant] = client.identity.Name
	}
	if len(client.identity.Email) > 0 {
		environment[authorEmailEnvironmentConstant] = client.identity.Email
		environment[committerEmailEnvironmentConstant] = client.identity.Email
	}
	if len(environment) == 0 {
		return nil
	}
	return environment
}

func isCommandFailure(executionError error) bool {
	var commandFailure execshell.CommandFailedError
	return errors.As(executionError, &commandFailure)
}

// requireValues accepts alternating field name and value pairs.
func requireValues(fieldNamesAndValues ...string) error {
	for index := 0; index+1 < len(fieldNamesAndValues); index += 2 {
		if len(strings.TrimSpace(fieldNamesAndValues[index+1])) == 0 {
			return InvalidInputError{FieldName: fieldNamesAndValues[index], Message: requiredValueMessageConstant}
		}
	}
	return nil
}
