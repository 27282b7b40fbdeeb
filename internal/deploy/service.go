package deploy

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/dedeploy/internal/platform"
	"github.com/temirov/dedeploy/internal/requirements"
	"github.com/temirov/dedeploy/internal/vcs"
)

const (
	requirementsFileNameConstant        = "requirements.txt"
	serviceLogDeployStartedMessage      = "Deploying application"
	serviceLogRequirementsMissing       = "Application has no requirements file"
	serviceLogOutdatedPinMessage        = "Pinned package is older than the recommended minimum"
	serviceLogMinimumCheckFailedMessage = "Unable to compare pinned versions"
	serviceLogWorkspaceReleaseFailed    = "Unable to remove scratch directories"
	serviceLogProvisioningSkipped       = "Backing service provisioning skipped for restricted application"
	logFieldPackageConstant             = "package"
	logFieldPinnedVersionConstant       = "pinned"
	logFieldMinimumVersionConstant      = "minimum"
	logFieldCommitIdentifierConstant    = "commit_id"
	logFieldDashrConstant               = "dashr"
)

// Deployer runs one deploy.
type Deployer interface {
	Deploy(executionContext context.Context, appName string) (Result, error)
}

// ServiceDependencies describes collaborators required by the deploy service.
type ServiceDependencies struct {
	Logger         *zap.Logger
	VcsClient      vcs.VcsClient
	PlatformClient platform.PlatformClient
	Configuration  Configuration
	// ScratchDirectory hosts the probe and staging directories; empty means the system temporary directory.
	ScratchDirectory string
}

// Result summarizes a finished deploy.
type Result struct {
	AppName    string
	IsDashr    bool
	AppCreated bool
	Services   []ProvisionedService
	Sync       SyncOutcome
}

// Service orchestrates the gate, provisioning, and repository synchronization for one application.
type Service struct {
	logger           *zap.Logger
	vcsClient        vcs.VcsClient
	platformClient   platform.PlatformClient
	configuration    Configuration
	scratchDirectory string
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.VcsClient == nil {
		return nil, ErrVcsClientNotConfigured
	}
	if dependencies.PlatformClient == nil {
		return nil, ErrPlatformClientNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:           logger,
		vcsClient:        dependencies.VcsClient,
		platformClient:   dependencies.PlatformClient,
		configuration:    dependencies.Configuration,
		scratchDirectory: dependencies.ScratchDirectory,
	}, nil
}

// Deploy runs the whole procedure for appName. Skips surface as SkipError; scratch directories are always removed.
func (service *Service) Deploy(executionContext context.Context, appName string) (Result, error) {
	gate, gateError := NewGate(service.logger, service.configuration)
	if gateError != nil {
		return Result{}, gateError
	}
	application, evaluationError := gate.Evaluate(appName)
	if evaluationError != nil {
		return Result{}, evaluationError
	}

	result := Result{AppName: application.Name, IsDashr: application.IsDashr}
	service.logger.Info(serviceLogDeployStartedMessage,
		zap.String(logFieldAppNameConstant, application.Name),
		zap.String(logFieldCommitIdentifierConstant, service.configuration.Deploy.CommitIdentifier),
		zap.Bool(logFieldDashrConstant, application.IsDashr),
	)

	remoteURL, remoteError := service.configuration.RemoteURL(application.Name)
	if remoteError != nil {
		return result, remoteError
	}

	manifest, manifestError := service.readManifest(application)
	if manifestError != nil {
		return result, manifestError
	}

	provisioner := NewProvisioner(service.logger, service.platformClient, service.configuration.Deploy.CreateApp, service.configuration.Provisioning)
	appCreated, ensureError := provisioner.EnsureApp(executionContext, application.Name)
	if ensureError != nil {
		return result, ensureError
	}
	result.AppCreated = appCreated

	if service.configuration.Deploy.AutoProvision {
		if application.IsDashr {
			service.logger.Info(serviceLogProvisioningSkipped, zap.String(logFieldAppNameConstant, application.Name))
		} else {
			services, provisionError := provisioner.ProvisionServices(executionContext, application.Name, manifest)
			result.Services = services
			if provisionError != nil {
				return result, provisionError
			}
		}
	}

	workspace, workspaceError := AcquireWorkspace(service.scratchDirectory, application.Name)
	if workspaceError != nil {
		return result, workspaceError
	}
	defer service.releaseWorkspace(workspace)

	injector := NewBootstrapInjector(service.logger, service.configuration.Deploy.BootstrapDirectory, service.configuration.Bootstrap)
	synchronizer := NewSynchronizer(service.logger, service.vcsClient, injector, service.configuration.Deploy.Branch)
	outcome, syncError := synchronizer.Synchronize(executionContext, SyncRequest{
		Application:       application,
		RemoteURL:         remoteURL.String(),
		RedactedRemoteURL: remoteURL.Redacted(),
		CommitMessage:     service.configuration.CommitMessage(),
		AppCreated:        appCreated,
		Workspace:         workspace,
	})
	result.Sync = outcome
	return result, syncError
}

// readManifest loads requirements.txt of non-dashr apps and logs advisory version warnings.
func (service *Service) readManifest(application Application) (requirements.Manifest, error) {
	if application.IsDashr {
		return requirements.Manifest{}, nil
	}

	manifestPath := filepath.Join(application.SourceDirectory, requirementsFileNameConstant)
	manifest, found, parseError := requirements.ParseFile(manifestPath)
	if parseError != nil {
		return requirements.Manifest{}, wrapOperation(operationReadRequirements, parseError)
	}
	if !found {
		service.logger.Debug(serviceLogRequirementsMissing, zap.String(logFieldAppNameConstant, application.Name))
		return manifest, nil
	}

	outdatedPins, checkError := manifest.CheckMinimums(service.configuration.Requirements.MinimumVersions)
	if checkError != nil {
		service.logger.Warn(serviceLogMinimumCheckFailedMessage, zap.String(logFieldAppNameConstant, application.Name), zap.Error(checkError))
	}
	for _, outdatedPin := range outdatedPins {
		service.logger.Warn(serviceLogOutdatedPinMessage,
			zap.String(logFieldAppNameConstant, application.Name),
			zap.String(logFieldPackageConstant, outdatedPin.Name),
			zap.String(logFieldPinnedVersionConstant, outdatedPin.Pinned),
			zap.String(logFieldMinimumVersionConstant, outdatedPin.Minimum),
		)
	}
	return manifest, nil
}

func (service *Service) releaseWorkspace(workspace *Workspace) {
	if releaseError := workspace.Release(); releaseError != nil {
		service.logger.Error(serviceLogWorkspaceReleaseFailed, zap.Error(releaseError))
	}
}
