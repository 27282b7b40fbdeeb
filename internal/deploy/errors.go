package deploy

import (
	"errors"
	"fmt"
)

// OperationName identifies a deploy step in errors.
type OperationName string

const (
	operationAcquireWorkspace  = OperationName("AcquireWorkspace")
	operationEnsureApp         = OperationName("EnsureApp")
	operationProvisionService  = OperationName("ProvisionService")
	operationReadRequirements  = OperationName("ReadRequirements")
	operationProbeRepository   = OperationName("ProbeRepository")
	operationPrepareStaging    = OperationName("PrepareStaging")
	operationMirrorSource      = OperationName("MirrorSource")
	operationInjectBootstrap   = OperationName("InjectBootstrap")
	operationInspectStaging    = OperationName("InspectStaging")
	operationCommitChanges     = OperationName("CommitChanges")
	operationPushChanges       = OperationName("PushChanges")
	operationReadIgnoreList    = OperationName("ReadIgnoreList")
	operationInspectSourceTree = OperationName("InspectSourceTree")
)

// SkipReason explains why a deploy ended without touching the remote.
type SkipReason string

const (
	// SkipReasonIgnored marks apps listed in the ignore file.
	SkipReasonIgnored SkipReason = "ignored"
	// SkipReasonRestricted marks apps matching the restricted pattern without the override.
	SkipReasonRestricted SkipReason = "restricted"
	// SkipReasonAppMissing marks apps absent on the platform when creation is disabled.
	SkipReasonAppMissing SkipReason = "app_missing"
)

var (
	// ErrVcsClientNotConfigured indicates the service was built without a git client.
	ErrVcsClientNotConfigured = errors.New("deploy: vcs client not configured")
	// ErrPlatformClientNotConfigured indicates the service was built without a platform client.
	ErrPlatformClientNotConfigured = errors.New("deploy: platform client not configured")
)

// SkipError ends a deploy successfully without contacting the remote further.
type SkipError struct {
	AppName string
	Reason  SkipReason
}

// Error describes the skip.
func (skipError SkipError) Error() string {
	return fmt.Sprintf("deploy of %s skipped: %s", skipError.AppName, skipError.Reason)
}

// AsSkip reports whether err carries a SkipError.
func AsSkip(err error) (SkipError, bool) {
	var skipError SkipError
	if errors.As(err, &skipError) {
		return skipError, true
	}
	return SkipError{}, false
}

// InvalidInputError describes configuration and argument validation failures.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s", inputError.FieldName, inputError.Message)
}

// OperationError wraps failures of a deploy step.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return string(operationError.Operation)
	}
	return fmt.Sprintf("%s: %v", operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

func wrapOperation(operation OperationName, cause error) error {
	return OperationError{Operation: operation, Cause: cause}
}
