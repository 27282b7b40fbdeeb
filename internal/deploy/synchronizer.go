package deploy

import (
	"context"

	"go.uber.org/zap"

	"github.com/temirov/dedeploy/internal/vcs"
)

const (
	syncLogProbeFailedTolerated     = "Probe clone failed for a newly created application, starting a fresh history"
	syncLogRepositoryClassified     = "Classified remote repository"
	syncLogNothingToCommit          = "No changes to deploy"
	syncLogPushed                   = "Pushed deployment"
	syncLogPushFailed               = "Push rejected"
	logFieldRemoteConstant          = "remote"
	logFieldRepositoryStateConstant = "repository_state"
	logFieldLatestHashConstant      = "latest_hash"
	logFieldSourceHashConstant      = "source_hash"
	logFieldBranchConstant          = "branch"
	logFieldForcePushConstant       = "force"
	logFieldCommitMessageConstant   = "commit_message"
)

// RepositoryState classifies the remote repository before staging.
type RepositoryState string

const (
	// RepositoryStateUnprobed is the state before the probe clone ran.
	RepositoryStateUnprobed RepositoryState = "UNPROBED"
	// RepositoryStateEmpty means the remote has no commits.
	RepositoryStateEmpty RepositoryState = "EMPTY"
	// RepositoryStateLegacy means the remote uses the legacy layout and its history is replaced.
	RepositoryStateLegacy RepositoryState = "LEGACY"
	// RepositoryStateCurrent means the remote history is extended.
	RepositoryStateCurrent RepositoryState = "CURRENT"
)

// SyncState is the terminal state of a synchronization.
type SyncState string

const (
	// SyncStateNoop means staging matched the remote and nothing was pushed.
	SyncStateNoop SyncState = "NOOP"
	// SyncStatePushed means a commit was pushed.
	SyncStatePushed SyncState = "PUSHED"
	// SyncStateForcePushed means a commit replaced the remote history.
	SyncStateForcePushed SyncState = "FORCE_PUSHED"
	// SyncStatePushFailed means the remote rejected the push.
	SyncStatePushFailed SyncState = "PUSH_FAILED"
)

// SyncRequest describes one synchronization.
type SyncRequest struct {
	Application Application
	// RemoteURL carries credentials and must never be logged; use RedactedRemoteURL.
	RemoteURL         string
	RedactedRemoteURL string
	CommitMessage     string
	AppCreated        bool
	Workspace         *Workspace
}

// SyncOutcome reports how a synchronization ended.
type SyncOutcome struct {
	RepositoryState RepositoryState
	SyncState       SyncState
	ForcePush       bool
	CommitMessage   string
	Bootstrap       BootstrapReport
}

// Synchronizer mirrors an application into its remote repository.
type Synchronizer struct {
	logger     *zap.Logger
	vcsClient  vcs.VcsClient
	mirror     TreeMirror
	injector   *BootstrapInjector
	remoteName string
	branch     string
}

// NewSynchronizer builds a Synchronizer pushing to branch on the origin remote.
func NewSynchronizer(logger *zap.Logger, vcsClient vcs.VcsClient, injector *BootstrapInjector, branch string) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		logger:     logger,
		vcsClient:  vcsClient,
		injector:   injector,
		remoteName: defaultRemoteNameConstant,
		branch:     branch,
	}
}

// Synchronize probes the remote, prepares staging, mirrors the source, and commits and pushes only when staging changed.
// The returned outcome is meaningful even when an error is returned.
func (synchronizer *Synchronizer) Synchronize(executionContext context.Context, request SyncRequest) (SyncOutcome, error) {
	outcome := SyncOutcome{RepositoryState: RepositoryStateUnprobed}
	probeDirectory := request.Workspace.ProbeDirectory
	stagingDirectory := request.Workspace.StagingDirectory

	repositoryState, classifyError := synchronizer.classify(executionContext, request, probeDirectory)
	if classifyError != nil {
		return outcome, classifyError
	}
	outcome.RepositoryState = repositoryState
	outcome.ForcePush = repositoryState == RepositoryStateLegacy

	if prepareError := synchronizer.prepareStaging(executionContext, request, repositoryState, stagingDirectory); prepareError != nil {
		return outcome, prepareError
	}

	if mirrorError := synchronizer.mirror.Mirror(request.Application.SourceDirectory, stagingDirectory); mirrorError != nil {
		return outcome, wrapOperation(operationMirrorSource, mirrorError)
	}

	if !request.Application.IsDashr && synchronizer.injector != nil {
		report, injectError := synchronizer.injector.Inject(stagingDirectory)
		if injectError != nil {
			return outcome, wrapOperation(operationInjectBootstrap, injectError)
		}
		outcome.Bootstrap = report
	}

	clean, statusError := synchronizer.vcsClient.IsClean(executionContext, stagingDirectory)
	if statusError != nil {
		return outcome, wrapOperation(operationInspectStaging, statusError)
	}
	if clean {
		outcome.SyncState = SyncStateNoop
		synchronizer.logger.Info(syncLogNothingToCommit, zap.String(logFieldAppNameConstant, request.Application.Name))
		return outcome, nil
	}

	if stageError := synchronizer.vcsClient.StageAll(executionContext, stagingDirectory); stageError != nil {
		return outcome, wrapOperation(operationCommitChanges, stageError)
	}
	if commitError := synchronizer.vcsClient.Commit(executionContext, stagingDirectory, request.CommitMessage); commitError != nil {
		return outcome, wrapOperation(operationCommitChanges, commitError)
	}
	outcome.CommitMessage = request.CommitMessage

	pushFields := []zap.Field{
		zap.String(logFieldAppNameConstant, request.Application.Name),
		zap.String(logFieldRemoteConstant, request.RedactedRemoteURL),
		zap.String(logFieldBranchConstant, synchronizer.branch),
		zap.Bool(logFieldForcePushConstant, outcome.ForcePush),
		zap.String(logFieldCommitMessageConstant, request.CommitMessage),
	}
	pushError := synchronizer.vcsClient.Push(executionContext, stagingDirectory, vcs.PushOptions{
		RemoteName: synchronizer.remoteName,
		Branch:     synchronizer.branch,
		Force:      outcome.ForcePush,
	})
	if pushError != nil {
		outcome.SyncState = SyncStatePushFailed
		synchronizer.logger.Error(syncLogPushFailed, append(pushFields, zap.Error(pushError))...)
		return outcome, wrapOperation(operationPushChanges, pushError)
	}

	outcome.SyncState = SyncStatePushed
	if outcome.ForcePush {
		outcome.SyncState = SyncStateForcePushed
	}
	synchronizer.logger.Info(syncLogPushed, pushFields...)
	return outcome, nil
}

// classify shallow-clones the remote into probeDirectory and decides how staging is prepared.
// The remote is legacy when the commit checked out in the application's source repository
// resolves inside the probe clone, meaning the whole source repository was once pushed there.
func (synchronizer *Synchronizer) classify(executionContext context.Context, request SyncRequest, probeDirectory string) (RepositoryState, error) {
	if cloneError := synchronizer.vcsClient.ShallowClone(executionContext, request.RemoteURL, probeDirectory); cloneError != nil {
		if !request.AppCreated || executionContext.Err() != nil {
			return RepositoryStateUnprobed, wrapOperation(operationProbeRepository, cloneError)
		}
		synchronizer.logger.Warn(syncLogProbeFailedTolerated,
			zap.String(logFieldAppNameConstant, request.Application.Name),
			zap.String(logFieldRemoteConstant, request.RedactedRemoteURL),
			zap.Error(cloneError),
		)
		synchronizer.logClassification(request, RepositoryStateEmpty, "", "")
		return RepositoryStateEmpty, nil
	}

	latestHash, hashError := synchronizer.vcsClient.LatestShortHash(executionContext, probeDirectory)
	if hashError != nil {
		return RepositoryStateUnprobed, wrapOperation(operationProbeRepository, hashError)
	}
	if len(latestHash) == 0 {
		synchronizer.logClassification(request, RepositoryStateEmpty, latestHash, "")
		return RepositoryStateEmpty, nil
	}

	sourceHash, sourceHashError := synchronizer.vcsClient.LatestShortHash(executionContext, request.Application.SourceDirectory)
	if sourceHashError != nil {
		return RepositoryStateUnprobed, wrapOperation(operationProbeRepository, sourceHashError)
	}

	repositoryState := RepositoryStateCurrent
	if len(sourceHash) > 0 {
		legacy, lookupError := synchronizer.vcsClient.LookupCommit(executionContext, probeDirectory, sourceHash)
		if lookupError != nil {
			return RepositoryStateUnprobed, wrapOperation(operationProbeRepository, lookupError)
		}
		if legacy {
			repositoryState = RepositoryStateLegacy
		}
	}
	synchronizer.logClassification(request, repositoryState, latestHash, sourceHash)
	return repositoryState, nil
}

func (synchronizer *Synchronizer) prepareStaging(executionContext context.Context, request SyncRequest, repositoryState RepositoryState, stagingDirectory string) error {
	if repositoryState == RepositoryStateCurrent {
		if cloneError := synchronizer.vcsClient.Clone(executionContext, request.RemoteURL, stagingDirectory); cloneError != nil {
			return wrapOperation(operationPrepareStaging, cloneError)
		}
		return nil
	}

	if initError := synchronizer.vcsClient.Init(executionContext, stagingDirectory); initError != nil {
		return wrapOperation(operationPrepareStaging, initError)
	}
	if remoteError := synchronizer.vcsClient.AddRemote(executionContext, stagingDirectory, synchronizer.remoteName, request.RemoteURL); remoteError != nil {
		return wrapOperation(operationPrepareStaging, remoteError)
	}
	return nil
}

func (synchronizer *Synchronizer) logClassification(request SyncRequest, repositoryState RepositoryState, latestHash string, sourceHash string) {
	synchronizer.logger.Info(syncLogRepositoryClassified,
		zap.String(logFieldAppNameConstant, request.Application.Name),
		zap.String(logFieldRemoteConstant, request.RedactedRemoteURL),
		zap.String(logFieldRepositoryStateConstant, string(repositoryState)),
		zap.String(logFieldLatestHashConstant, latestHash),
		zap.String(logFieldSourceHashConstant, sourceHash),
	)
}
