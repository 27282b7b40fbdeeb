package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/dedeploy/internal/deploy"
	"github.com/temirov/dedeploy/internal/utils"
)

const (
	testExecutableDirectoryConstant = "/opt/dedeploy"
	testSecretConstant              = "s3cr3t-key"
)

var isolatedEnvironmentNames = []string{
	"DEDEPLOY_PLATFORM_URL",
	"DEDEPLOY_PLATFORM_USERNAME",
	"DEDEPLOY_PLATFORM_API_KEY",
	"DEDEPLOY_DEPLOY_COMMIT_ID",
	"DEDEPLOY_DEPLOY_CREATE_APP",
	"DEDEPLOY_COMMON_LOG_FORMAT",
	"DASH_ENTERPRISE_URL",
	"DASH_ENTERPRISE_USERNAME",
	"DASH_ENTERPRISE_API_KEY",
	"COMMIT_SHA",
	"CIRCLE_SHA1",
	"CREATE_APP",
	"ALLOW_DASHR",
	"AUTO_PROVISION",
}

// isolateEnvironment unsets every variable the loader consults and restores them after the test.
func isolateEnvironment(testInstance *testing.T) {
	testInstance.Helper()
	for _, environmentName := range isolatedEnvironmentNames {
		testInstance.Setenv(environmentName, "")
		require.NoError(testInstance, os.Unsetenv(environmentName))
	}
}

func newTestApplication(testInstance *testing.T) *Application {
	testInstance.Helper()
	isolateEnvironment(testInstance)
	application := NewApplication()
	application.loggerFactory = utils.NewLoggerFactoryWithDestination(io.Discard)
	application.executableDirectoryProvider = func() (string, error) {
		return testExecutableDirectoryConstant, nil
	}
	return application
}

type capturingDeployer struct {
	appName string
}

func (deployer *capturingDeployer) Deploy(_ context.Context, appName string) (deploy.Result, error) {
	deployer.appName = appName
	return deploy.Result{
		AppName: appName,
		Sync:    deploy.SyncOutcome{RepositoryState: deploy.RepositoryStateCurrent, SyncState: deploy.SyncStateNoop},
	}, nil
}

func TestInitializeConfigurationAppliesEmbeddedDefaults(testInstance *testing.T) {
	application := newTestApplication(testInstance)
	rootCommand := application.rootCommand
	rootCommand.SetContext(context.Background())

	require.NoError(testInstance, application.initializeConfiguration(rootCommand))

	configuration := application.configuration
	require.Equal(testInstance, string(utils.LogLevelInfo), configuration.Common.LogLevel)
	require.Equal(testInstance, string(utils.LogFormatStructured), configuration.Common.LogFormat)
	require.Equal(testInstance, "https://dash.example.com", configuration.Deploy.Platform.URL)
	require.Equal(testInstance, "dds-client", configuration.Deploy.Platform.Executable)
	require.Equal(testInstance, "apps", configuration.Deploy.Deploy.AppsRoot)
	require.Equal(testInstance, testExecutableDirectoryConstant, configuration.Deploy.Deploy.BootstrapDirectory)
	require.Empty(testInstance, configuration.Deploy.Deploy.IgnoreFile)
	require.Equal(testInstance, []string{"psycopg2", "sqlalchemy"}, configuration.Deploy.Provisioning.DatabasePrefixes)
	require.False(testInstance, application.humanReadableLoggingEnabled())

	loadedConfiguration, available := application.commandContextAccessor.LoadedConfiguration(rootCommand.Context())
	require.True(testInstance, available)
	require.Empty(testInstance, loadedConfiguration.ConfigFileUsed)
}

func TestInitializeConfigurationEnvironmentPrecedence(testInstance *testing.T) {
	testCases := []struct {
		name               string
		environment        map[string]string
		expectedAPIKey     string
		expectedCommitID   string
		expectedCreateApp  bool
		expectedPlatformID string
	}{
		{
			name: "ci_aliases",
			environment: map[string]string{
				"DASH_ENTERPRISE_API_KEY":  "alias-key",
				"DASH_ENTERPRISE_USERNAME": "ci-bot",
				"CIRCLE_SHA1":              "abc1234",
				"CREATE_APP":               "yes",
			},
			expectedAPIKey:     "alias-key",
			expectedCommitID:   "abc1234",
			expectedCreateApp:  true,
			expectedPlatformID: "ci-bot",
		},
		{
			name: "prefixed_variables_win",
			environment: map[string]string{
				"DASH_ENTERPRISE_API_KEY":    "alias-key",
				"DEDEPLOY_PLATFORM_API_KEY":  "prefixed-key",
				"COMMIT_SHA":                 "first",
				"CIRCLE_SHA1":                "second",
				"DEDEPLOY_PLATFORM_USERNAME": "prefixed-bot",
			},
			expectedAPIKey:     "prefixed-key",
			expectedCommitID:   "first",
			expectedPlatformID: "prefixed-bot",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			application := newTestApplication(testInstance)
			for environmentName, environmentValue := range testCase.environment {
				testInstance.Setenv(environmentName, environmentValue)
			}

			require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

			deployConfiguration := application.configuration.Deploy
			require.Equal(testInstance, testCase.expectedAPIKey, deployConfiguration.Platform.APIKey)
			require.Equal(testInstance, testCase.expectedPlatformID, deployConfiguration.Platform.Username)
			require.Equal(testInstance, testCase.expectedCommitID, deployConfiguration.Deploy.CommitIdentifier)
			require.Equal(testInstance, testCase.expectedCreateApp, deployConfiguration.Deploy.CreateApp)
		})
	}
}

func TestInitializeConfigurationReadsFilesAndFlags(testInstance *testing.T) {
	application := newTestApplication(testInstance)
	temporaryDirectory := testInstance.TempDir()

	configurationPath := filepath.Join(temporaryDirectory, "dedeploy.yaml")
	configurationContent := "platform:\n  url: https://dash.internal.example.com/\ndeploy:\n  apps_root: dashboards\n  auto_provision: on\n"
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(configurationContent), 0o600))

	environmentFilePath := filepath.Join(temporaryDirectory, "ci.env")
	require.NoError(testInstance, os.WriteFile(environmentFilePath, []byte("DASH_ENTERPRISE_USERNAME=dotenv-bot\n"), 0o600))

	rootCommand := application.rootCommand
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(configFileFlagNameConstant, configurationPath))
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(envFileFlagNameConstant, environmentFilePath))
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(logFormatFlagNameConstant, string(utils.LogFormatConsole)))
	rootCommand.SetContext(context.Background())

	require.NoError(testInstance, application.initializeConfiguration(rootCommand))

	deployConfiguration := application.configuration.Deploy
	require.Equal(testInstance, "https://dash.internal.example.com/", deployConfiguration.Platform.URL)
	require.Equal(testInstance, "dashboards", deployConfiguration.Deploy.AppsRoot)
	require.True(testInstance, deployConfiguration.Deploy.AutoProvision)
	require.Equal(testInstance, "dotenv-bot", deployConfiguration.Platform.Username)
	require.Equal(testInstance, "master", deployConfiguration.Deploy.Branch)
	require.True(testInstance, application.humanReadableLoggingEnabled())

	loadedConfiguration, available := application.commandContextAccessor.LoadedConfiguration(rootCommand.Context())
	require.True(testInstance, available)
	require.Equal(testInstance, configurationPath, loadedConfiguration.ConfigFileUsed)
	require.Equal(testInstance, []string{environmentFilePath}, loadedConfiguration.EnvironmentFiles)
}

func TestInitializeConfigurationRejectsMissingEnvironmentFile(testInstance *testing.T) {
	application := newTestApplication(testInstance)
	rootCommand := application.rootCommand
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(envFileFlagNameConstant, filepath.Join(testInstance.TempDir(), "absent.env")))

	require.Error(testInstance, application.initializeConfiguration(rootCommand))
}

func TestInitializeConfigurationRejectsUnknownLogLevel(testInstance *testing.T) {
	application := newTestApplication(testInstance)
	rootCommand := application.rootCommand
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "verbose"))

	require.Error(testInstance, application.initializeConfiguration(rootCommand))
}

func TestConfigCommandMasksSecret(testInstance *testing.T) {
	application := newTestApplication(testInstance)
	testInstance.Setenv("DASH_ENTERPRISE_API_KEY", testSecretConstant)

	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetArgs([]string{configCommandUseConstant})

	require.NoError(testInstance, application.rootCommand.Execute())
	require.NotContains(testInstance, output.String(), testSecretConstant)
	require.Contains(testInstance, output.String(), "api_key: xxxxx")
	require.Contains(testInstance, output.String(), "log_level: info")
	require.Contains(testInstance, output.String(), "bootstrap_directory: "+testExecutableDirectoryConstant)
}

func TestDeploySubcommandReceivesLoadedConfiguration(testInstance *testing.T) {
	application := newTestApplication(testInstance)
	testInstance.Setenv("DASH_ENTERPRISE_USERNAME", "ci-bot")
	testInstance.Setenv("DASH_ENTERPRISE_API_KEY", testSecretConstant)

	deployer := &capturingDeployer{}
	var receivedConfiguration deploy.Configuration
	application.deployCommandBuilder.ServiceProvider = func(dependencies deploy.ServiceDependencies) (deploy.Deployer, error) {
		receivedConfiguration = dependencies.Configuration
		return deployer, nil
	}

	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetArgs([]string{"deploy", "--commit-id", "4f2a9c1", "sales-dashboard"})

	require.NoError(testInstance, application.rootCommand.Execute())
	require.Equal(testInstance, "sales-dashboard", deployer.appName)
	require.Equal(testInstance, "ci-bot", receivedConfiguration.Platform.Username)
	require.Equal(testInstance, testSecretConstant, receivedConfiguration.Platform.APIKey)
	require.Equal(testInstance, "4f2a9c1", receivedConfiguration.Deploy.CommitIdentifier)
	require.Equal(testInstance, testExecutableDirectoryConstant, receivedConfiguration.Deploy.BootstrapDirectory)
	require.Equal(testInstance, filepath.Join(testExecutableDirectoryConstant, "apps_to_ignore.txt"), receivedConfiguration.Deploy.IgnoreFile)
	require.Equal(testInstance, "sales-dashboard: up to date\n  repository: current\n", output.String())
}

func TestRootCommandWithoutArgumentsPrintsHelp(testInstance *testing.T) {
	application := newTestApplication(testInstance)
	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetArgs([]string{})

	require.NoError(testInstance, application.Execute())
	require.Contains(testInstance, output.String(), "deploy")
	require.Contains(testInstance, output.String(), "config")
}
