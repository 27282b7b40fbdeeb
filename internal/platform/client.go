package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/dedeploy/internal/execshell"
)

const (
	appExistsCommandConstant                = "apps:exists"
	appCreateCommandConstant                = "apps:create"
	serviceExistsCommandConstant            = "services:exists"
	serviceCreateCommandConstant            = "services:create"
	serviceLinkCommandConstant              = "services:link"
	nameFlagConstant                        = "--name"
	typeFlagConstant                        = "--type"
	appFlagConstant                         = "--app"
	platformURLEnvironmentConstant          = "DASH_ENTERPRISE_URL"
	platformUsernameEnvironmentConstant     = "DASH_ENTERPRISE_USERNAME"
	platformAPIKeyEnvironmentConstant       = "DASH_ENTERPRISE_API_KEY"
	serviceNameTemplateConstant             = "%s-%s"
	requiredValueMessageConstant            = "value required"
	unsupportedServiceKindMessageConstant   = "unsupported service kind"
	executorNotConfiguredMessageConstant    = "platform cli executor not configured"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	appNameFieldNameConstant                = "app_name"
	serviceNameFieldNameConstant            = "service_name"
	serviceKindFieldNameConstant            = "service_kind"
	appExistsOperationNameConstant          = OperationName("AppExists")
	createAppOperationNameConstant          = OperationName("CreateApp")
	serviceExistsOperationNameConstant      = OperationName("ServiceExists")
	createServiceOperationNameConstant      = OperationName("CreateService")
	linkServiceOperationNameConstant        = OperationName("LinkService")
)

// OperationName describes a named platform CLI workflow supported by the client.
type OperationName string

// ServiceKind identifies a backing service flavour offered by the platform.
type ServiceKind string

// Supported backing services.
const (
	ServiceKindPostgres ServiceKind = ServiceKind("postgres")
	ServiceKindRedis    ServiceKind = ServiceKind("redis")
)

// ServiceName returns the conventional service name for an app, e.g. "sales-dashboard-postgres".
func ServiceName(appName string, kind ServiceKind) string {
	return fmt.Sprintf(serviceNameTemplateConstant, strings.TrimSpace(appName), kind)
}

// Credentials authenticate platform CLI calls.
type Credentials struct {
	PlatformURL string
	Username    string
	APIKey      string
}

// PlatformClient is the app and backing-service provisioning port used by deployments.
type PlatformClient interface {
	AppExists(executionContext context.Context, appName string) (bool, error)
	CreateApp(executionContext context.Context, appName string) error
	ServiceExists(executionContext context.Context, kind ServiceKind, serviceName string) (bool, error)
	CreateService(executionContext context.Context, kind ServiceKind, serviceName string) error
	LinkService(executionContext context.Context, kind ServiceKind, serviceName string, appName string) error
}

// CommandExecutor is the minimal interface required from execshell.ShellExecutor.
type CommandExecutor interface {
	ExecutePlatformCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
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

// OperationError wraps execution issues for platform CLI operations.
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

// Client coordinates platform CLI invocations through execshell.
type Client struct {
	executor    CommandExecutor
	credentials Credentials
}

var _ PlatformClient = (*Client)(nil)

// NewClient constructs a platform CLI client. Credentials are handed to the CLI through its environment
// and are expected to be validated by the caller.
func NewClient(executor CommandExecutor, credentials Credentials) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	trimmedCredentials := Credentials{
		PlatformURL: strings.TrimSpace(credentials.PlatformURL),
		Username:    strings.TrimSpace(credentials.Username),
		APIKey:      strings.TrimSpace(credentials.APIKey),
	}
	return &Client{executor: executor, credentials: trimmedCredentials}, nil
}

// AppExists reports whether appName is registered on the platform. A non-zero exit means absent.
func (client *Client) AppExists(executionContext context.Context, appName string) (bool, error) {
	if validationError := requireValues(appNameFieldNameConstant, appName); validationError != nil {
		return false, validationError
	}
	arguments := []string{appExistsCommandConstant, nameFlagConstant, strings.TrimSpace(appName)}
	return client.probe(executionContext, appExistsOperationNameConstant, arguments)
}

// CreateApp registers appName, which also creates its git repository.
func (client *Client) CreateApp(executionContext context.Context, appName string) error {
	if validationError := requireValues(appNameFieldNameConstant, appName); validationError != nil {
		return validationError
	}
	arguments := []string{appCreateCommandConstant, nameFlagConstant, strings.TrimSpace(appName)}
	return client.execute(executionContext, createAppOperationNameConstant, arguments)
}

// ServiceExists reports whether the named backing service exists.
func (client *Client) ServiceExists(executionContext context.Context, kind ServiceKind, serviceName string) (bool, error) {
	if validationError := validateService(kind, serviceName); validationError != nil {
		return false, validationError
	}
	arguments := []string{serviceExistsCommandConstant, typeFlagConstant, string(kind), nameFlagConstant, strings.TrimSpace(serviceName)}
	return client.probe(executionContext, serviceExistsOperationNameConstant, arguments)
}

// CreateService provisions a backing service.
func (client *Client) CreateService(executionContext context.Context, kind ServiceKind, serviceName string) error {
	if validationError := validateService(kind, serviceName); validationError != nil {
		return validationError
	}
	arguments := []string{serviceCreateCommandConstant, typeFlagConstant, string(kind), nameFlagConstant, strings.TrimSpace(serviceName)}
	return client.execute(executionContext, createServiceOperationNameConstant, arguments)
}

// LinkService attaches a backing service to appName.
func (client *Client) LinkService(executionContext context.Context, kind ServiceKind, serviceName string, appName string) error {
	if validationError := validateService(kind, serviceName); validationError != nil {
		return validationError
	}
	if validationError := requireValues(appNameFieldNameConstant, appName); validationError != nil {
		return validationError
	}
	arguments := []string{serviceLinkCommandConstant, typeFlagConstant, string(kind), nameFlagConstant, strings.TrimSpace(serviceName), appFlagConstant, strings.TrimSpace(appName)}
	return client.execute(executionContext, linkServiceOperationNameConstant, arguments)
}

func (client *Client) probe(executionContext context.Context, operation OperationName, arguments []string) (bool, error) {
	_, executionError := client.executor.ExecutePlatformCLI(executionContext, client.commandDetails(arguments))
	if executionError == nil {
		return true, nil
	}
	var commandFailure execshell.CommandFailedError
	if errors.As(executionError, &commandFailure) {
		return false, nil
	}
	return false, OperationError{Operation: operation, Cause: executionError}
}

func (client *Client) execute(executionContext context.Context, operation OperationName, arguments []string) error {
	if _, executionError := client.executor.ExecutePlatformCLI(executionContext, client.commandDetails(arguments)); executionError != nil {
		return OperationError{Operation: operation, Cause: executionError}
	}
	return nil
}

func (client *Client) commandDetails(arguments []string) execshell.CommandDetails {
	return execshell.CommandDetails{
		Arguments: arguments,
		EnvironmentVariables: map[string]string{
			platformURLEnvironmentConstant:      client.credentials.PlatformURL,
			platformUsernameEnvironmentConstant: client.credentials.Username,
			platformAPIKeyEnvironmentConstant:   client.credentials.APIKey,
		},
		SensitiveValues: []string{client.credentials.APIKey},
	}
}

func validateService(kind ServiceKind, serviceName string) error {
	switch kind {
	case ServiceKindPostgres, ServiceKindRedis:
	default:
		return InvalidInputError{FieldName: serviceKindFieldNameConstant, Message: unsupportedServiceKindMessageConstant}
	}
	return requireValues(serviceNameFieldNameConstant, serviceName)
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
