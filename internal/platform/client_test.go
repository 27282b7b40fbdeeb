package platform_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/dedeploy/internal/execshell"
	"github.com/temirov/dedeploy/internal/platform"
)

const (
	testAppNameConstant          = "sales-dashboard"
	testPlatformURLConstant      = "https://dash.example.com"
	testUsernameConstant         = "deployer"
	testAPIKeyConstant           = "api-key-value"
	testProbePresentCaseConstant = "present"
	testProbeAbsentCaseConstant  = "absent"
	testProbeBrokenCaseConstant  = "execution_error"
)

type stubPlatformExecutor struct {
	executeFunc     func(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error)
	recordedDetails []execshell.CommandDetails
}

func (executor *stubPlatformExecutor) ExecutePlatformCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedDetails = append(executor.recordedDetails, details)
	if executor.executeFunc != nil {
		return executor.executeFunc(executionContext, details)
	}
	return execshell.ExecutionResult{}, nil
}

func testCredentials() platform.Credentials {
	return platform.Credentials{PlatformURL: testPlatformURLConstant, Username: testUsernameConstant, APIKey: testAPIKeyConstant}
}

func TestNewClientValidation(testInstance *testing.T) {
	client, creationError := platform.NewClient(nil, testCredentials())
	require.ErrorIs(testInstance, creationError, platform.ErrExecutorNotConfigured)
	require.Nil(testInstance, client)
}

func TestNewClientTrimsCredentials(testInstance *testing.T) {
	executor := &stubPlatformExecutor{}
	client, creationError := platform.NewClient(executor, platform.Credentials{PlatformURL: " " + testPlatformURLConstant + " ", Username: testUsernameConstant, APIKey: testAPIKeyConstant + "\n"})
	require.NoError(testInstance, creationError)

	require.NoError(testInstance, client.CreateApp(context.Background(), testAppNameConstant))
	require.Equal(testInstance, testPlatformURLConstant, executor.recordedDetails[0].EnvironmentVariables["DASH_ENTERPRISE_URL"])
	require.Equal(testInstance, []string{testAPIKeyConstant}, executor.recordedDetails[0].SensitiveValues)
}

func TestAppExists(testInstance *testing.T) {
	testCases := []struct {
		name           string
		executeError   error
		expectedExists bool
		expectError    bool
	}{
		{name: testProbePresentCaseConstant, expectedExists: true},
		{name: testProbeAbsentCaseConstant, executeError: execshell.CommandFailedError{Result: execshell.ExecutionResult{ExitCode: 1}}, expectedExists: false},
		{name: testProbeBrokenCaseConstant, executeError: execshell.CommandExecutionError{Cause: errors.New("executable file not found")}, expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &stubPlatformExecutor{executeFunc: func(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error) {
				return execshell.ExecutionResult{}, testCase.executeError
			}}
			client, creationError := platform.NewClient(executor, testCredentials())
			require.NoError(testInstance, creationError)

			exists, existsError := client.AppExists(context.Background(), testAppNameConstant)
			if testCase.expectError {
				require.Error(testInstance, existsError)
				require.IsType(testInstance, platform.OperationError{}, existsError)
				return
			}
			require.NoError(testInstance, existsError)
			require.Equal(testInstance, testCase.expectedExists, exists)

			details := executor.recordedDetails[0]
			require.Equal(testInstance, []string{"apps:exists", "--name", testAppNameConstant}, details.Arguments)
			require.Equal(testInstance, testAPIKeyConstant, details.EnvironmentVariables["DASH_ENTERPRISE_API_KEY"])
			require.Equal(testInstance, testUsernameConstant, details.EnvironmentVariables["DASH_ENTERPRISE_USERNAME"])
			require.Equal(testInstance, testPlatformURLConstant, details.EnvironmentVariables["DASH_ENTERPRISE_URL"])
			require.Equal(testInstance, []string{testAPIKeyConstant}, details.SensitiveValues)
		})
	}
}

func TestServiceCommands(testInstance *testing.T) {
	executor := &stubPlatformExecutor{}
	client, creationError := platform.NewClient(executor, testCredentials())
	require.NoError(testInstance, creationError)

	serviceName := platform.ServiceName(testAppNameConstant, platform.ServiceKindPostgres)
	require.Equal(testInstance, "sales-dashboard-postgres", serviceName)

	require.NoError(testInstance, client.CreateApp(context.Background(), testAppNameConstant))
	exists, existsError := client.ServiceExists(context.Background(), platform.ServiceKindPostgres, serviceName)
	require.NoError(testInstance, existsError)
	require.True(testInstance, exists)
	require.NoError(testInstance, client.CreateService(context.Background(), platform.ServiceKindPostgres, serviceName))
	require.NoError(testInstance, client.LinkService(context.Background(), platform.ServiceKindPostgres, serviceName, testAppNameConstant))

	require.Len(testInstance, executor.recordedDetails, 4)
	require.Equal(testInstance, []string{"apps:create", "--name", testAppNameConstant}, executor.recordedDetails[0].Arguments)
	require.Equal(testInstance, []string{"services:exists", "--type", "postgres", "--name", serviceName}, executor.recordedDetails[1].Arguments)
	require.Equal(testInstance, []string{"services:create", "--type", "postgres", "--name", serviceName}, executor.recordedDetails[2].Arguments)
	require.Equal(testInstance, []string{"services:link", "--type", "postgres", "--name", serviceName, "--app", testAppNameConstant}, executor.recordedDetails[3].Arguments)
}

func TestServiceValidation(testInstance *testing.T) {
	executor := &stubPlatformExecutor{}
	client, creationError := platform.NewClient(executor, testCredentials())
	require.NoError(testInstance, creationError)

	require.IsType(testInstance, platform.InvalidInputError{}, client.CreateService(context.Background(), platform.ServiceKind("mysql"), "db"))
	require.IsType(testInstance, platform.InvalidInputError{}, client.LinkService(context.Background(), platform.ServiceKindRedis, "cache", " "))
	require.Empty(testInstance, executor.recordedDetails)
}

func TestCreateFailureIsOperationError(testInstance *testing.T) {
	executor := &stubPlatformExecutor{executeFunc: func(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error) {
		return execshell.ExecutionResult{}, execshell.CommandFailedError{Result: execshell.ExecutionResult{ExitCode: 2}}
	}}
	client, creationError := platform.NewClient(executor, testCredentials())
	require.NoError(testInstance, creationError)

	createError := client.CreateApp(context.Background(), testAppNameConstant)
	require.Error(testInstance, createError)
	require.IsType(testInstance, platform.OperationError{}, createError)
}
