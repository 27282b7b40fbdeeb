package testsupport

import (
	"context"
	"fmt"

	"github.com/temirov/dedeploy/internal/platform"
)

// FakePlatformClient keeps apps, services and links in memory.
type FakePlatformClient struct {
	Apps     map[string]bool
	Services map[string]bool

	AppExistsError     error
	CreateAppError     error
	CreateServiceError error
	LinkServiceError   error

	CallCount       int
	CreatedApps     []string
	CreatedServices []string
	Links           []string
}

var _ platform.PlatformClient = (*FakePlatformClient)(nil)

// AppExists reports whether appName is known.
func (client *FakePlatformClient) AppExists(executionContext context.Context, appName string) (bool, error) {
	client.CallCount++
	if contextError := executionContext.Err(); contextError != nil {
		return false, contextError
	}
	if client.AppExistsError != nil {
		return false, client.AppExistsError
	}
	return client.Apps[appName], nil
}

// CreateApp registers appName.
func (client *FakePlatformClient) CreateApp(_ context.Context, appName string) error {
	client.CallCount++
	if client.CreateAppError != nil {
		return client.CreateAppError
	}
	if client.Apps == nil {
		client.Apps = map[string]bool{}
	}
	client.Apps[appName] = true
	client.CreatedApps = append(client.CreatedApps, appName)
	return nil
}

// ServiceExists reports whether serviceName is known.
func (client *FakePlatformClient) ServiceExists(_ context.Context, _ platform.ServiceKind, serviceName string) (bool, error) {
	client.CallCount++
	return client.Services[serviceName], nil
}

// CreateService registers serviceName.
func (client *FakePlatformClient) CreateService(_ context.Context, _ platform.ServiceKind, serviceName string) error {
	client.CallCount++
	if client.CreateServiceError != nil {
		return client.CreateServiceError
	}
	if client.Services == nil {
		client.Services = map[string]bool{}
	}
	client.Services[serviceName] = true
	client.CreatedServices = append(client.CreatedServices, serviceName)
	return nil
}

// LinkService records a link as "<kind>:<service>-><app>".
func (client *FakePlatformClient) LinkService(_ context.Context, kind platform.ServiceKind, serviceName string, appName string) error {
	client.CallCount++
	if client.LinkServiceError != nil {
		return client.LinkServiceError
	}
	client.Links = append(client.Links, fmt.Sprintf("%s:%s->%s", kind, serviceName, appName))
	return nil
}
