package deploy

import (
	"context"

	"go.uber.org/zap"

	"github.com/temirov/dedeploy/internal/platform"
	"github.com/temirov/dedeploy/internal/requirements"
)

const (
	provisionLogAppMissingMessage     = "Application does not exist on the platform"
	provisionLogAppCreatedMessage     = "Created application on the platform"
	provisionLogServiceExistsMessage  = "Backing service already exists"
	provisionLogServiceCreatedMessage = "Created backing service"
	provisionLogServiceLinkedMessage  = "Linked backing service"
	provisionLogServiceNotNeeded      = "No backing services required"
	logFieldServiceNameConstant       = "service"
	logFieldServiceKindConstant       = "kind"
	logFieldCreateAppEnabledConstant  = "create_app"
)

// ProvisionedService reports one backing service the deploy ensured and linked.
type ProvisionedService struct {
	Kind    platform.ServiceKind
	Name    string
	Created bool
}

// Provisioner ensures the platform app and its backing services exist.
type Provisioner struct {
	logger         *zap.Logger
	platformClient platform.PlatformClient
	createApp      bool
	provisioning   ProvisioningConfiguration
}

// NewProvisioner builds a Provisioner over platformClient.
func NewProvisioner(logger *zap.Logger, platformClient platform.PlatformClient, createApp bool, provisioning ProvisioningConfiguration) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{logger: logger, platformClient: platformClient, createApp: createApp, provisioning: provisioning}
}

// EnsureApp reports whether the app was created in this call. A missing app without creation enabled is a skip.
func (provisioner *Provisioner) EnsureApp(executionContext context.Context, appName string) (bool, error) {
	exists, existsError := provisioner.platformClient.AppExists(executionContext, appName)
	if existsError != nil {
		return false, wrapOperation(operationEnsureApp, existsError)
	}
	if exists {
		return false, nil
	}

	if !provisioner.createApp {
		provisioner.logger.Warn(provisionLogAppMissingMessage,
			zap.String(logFieldAppNameConstant, appName),
			zap.Bool(logFieldCreateAppEnabledConstant, false),
		)
		return false, SkipError{AppName: appName, Reason: SkipReasonAppMissing}
	}

	if createError := provisioner.platformClient.CreateApp(executionContext, appName); createError != nil {
		return false, wrapOperation(operationEnsureApp, createError)
	}
	provisioner.logger.Info(provisionLogAppCreatedMessage, zap.String(logFieldAppNameConstant, appName))
	return true, nil
}

// ProvisionServices ensures and links a database and a cache when the manifest names a matching package.
func (provisioner *Provisioner) ProvisionServices(executionContext context.Context, appName string, manifest requirements.Manifest) ([]ProvisionedService, error) {
	requiredKinds := make([]platform.ServiceKind, 0, 2)
	if manifest.MatchesAnyPrefix(provisioner.provisioning.DatabasePrefixes) {
		requiredKinds = append(requiredKinds, platform.ServiceKindPostgres)
	}
	if manifest.MatchesAnyPrefix(provisioner.provisioning.CachePrefixes) {
		requiredKinds = append(requiredKinds, platform.ServiceKindRedis)
	}
	if len(requiredKinds) == 0 {
		provisioner.logger.Debug(provisionLogServiceNotNeeded, zap.String(logFieldAppNameConstant, appName))
		return nil, nil
	}

	provisioned := make([]ProvisionedService, 0, len(requiredKinds))
	for _, kind := range requiredKinds {
		service, serviceError := provisioner.ensureService(executionContext, appName, kind)
		if serviceError != nil {
			return provisioned, serviceError
		}
		provisioned = append(provisioned, service)
	}
	return provisioned, nil
}

func (provisioner *Provisioner) ensureService(executionContext context.Context, appName string, kind platform.ServiceKind) (ProvisionedService, error) {
	serviceName := platform.ServiceName(appName, kind)
	service := ProvisionedService{Kind: kind, Name: serviceName}
	serviceFields := []zap.Field{
		zap.String(logFieldAppNameConstant, appName),
		zap.String(logFieldServiceKindConstant, string(kind)),
		zap.String(logFieldServiceNameConstant, serviceName),
	}

	exists, existsError := provisioner.platformClient.ServiceExists(executionContext, kind, serviceName)
	if existsError != nil {
		return service, wrapOperation(operationProvisionService, existsError)
	}
	if exists {
		provisioner.logger.Debug(provisionLogServiceExistsMessage, serviceFields...)
	} else {
		if createError := provisioner.platformClient.CreateService(executionContext, kind, serviceName); createError != nil {
			return service, wrapOperation(operationProvisionService, createError)
		}
		service.Created = true
		provisioner.logger.Info(provisionLogServiceCreatedMessage, serviceFields...)
	}

	if linkError := provisioner.platformClient.LinkService(executionContext, kind, serviceName, appName); linkError != nil {
		return service, wrapOperation(operationProvisionService, linkError)
	}
	provisioner.logger.Info(provisionLogServiceLinkedMessage, serviceFields...)
	return service, nil
}
