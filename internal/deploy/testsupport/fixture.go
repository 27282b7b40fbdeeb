package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/dedeploy/internal/deploy"
)

const (
	// SharedDescriptorContent is the shared descriptor written by NewFixture.
	SharedDescriptorContent = "{\"scripts\": {\"dash-predeploy\": \"python predeploy.py\"}}\n"
	// SharedPredeployContent is the shared pre-deploy script written by NewFixture.
	SharedPredeployContent = "print('predeploy')\n"
	// TestCommitIdentifier is the commit identifier of fixture configurations.
	TestCommitIdentifier = "4f2a9c1"
	// TestAPIKey is the API key of fixture configurations.
	TestAPIKey = "s3cr3t-key"

	fixtureDirectoryPermissions = 0o755
	fixtureFilePermissions      = 0o644
)

// Fixture lays out an apps root, a bootstrap directory and a scratch directory on disk.
type Fixture struct {
	AppsRoot           string
	BootstrapDirectory string
	ScratchDirectory   string
}

// NewFixture creates the directories and the shared descriptor and pre-deploy script.
func NewFixture(testInstance *testing.T) Fixture {
	testInstance.Helper()
	rootDirectory := testInstance.TempDir()
	fixture := Fixture{
		AppsRoot:           filepath.Join(rootDirectory, "apps"),
		BootstrapDirectory: filepath.Join(rootDirectory, "bootstrap"),
		ScratchDirectory:   filepath.Join(rootDirectory, "scratch"),
	}
	for _, directory := range []string{fixture.AppsRoot, fixture.BootstrapDirectory, fixture.ScratchDirectory} {
		require.NoError(testInstance, os.MkdirAll(directory, fixtureDirectoryPermissions))
	}
	WriteFiles(testInstance, fixture.BootstrapDirectory, map[string]string{
		"app.json":     SharedDescriptorContent,
		"predeploy.py": SharedPredeployContent,
	})
	return fixture
}

// WriteApp creates apps/<appName> with files.
func (fixture Fixture) WriteApp(testInstance *testing.T, appName string, files map[string]string) string {
	testInstance.Helper()
	appDirectory := filepath.Join(fixture.AppsRoot, appName)
	require.NoError(testInstance, os.MkdirAll(appDirectory, fixtureDirectoryPermissions))
	WriteFiles(testInstance, appDirectory, files)
	return appDirectory
}

// Configuration returns a valid configuration rooted at the fixture directories.
func (fixture Fixture) Configuration() deploy.Configuration {
	configuration := deploy.DefaultConfiguration()
	configuration.Platform.URL = "https://dash.example.com"
	configuration.Platform.Username = "deployer"
	configuration.Platform.APIKey = TestAPIKey
	configuration.Deploy.CommitIdentifier = TestCommitIdentifier
	configuration.Deploy.AppsRoot = fixture.AppsRoot
	configuration.Deploy.BootstrapDirectory = fixture.BootstrapDirectory
	configuration.Deploy.IgnoreFile = filepath.Join(fixture.BootstrapDirectory, "apps_to_ignore.txt")
	return configuration
}

// ScratchEntries lists what remains in the scratch directory.
func (fixture Fixture) ScratchEntries(testInstance *testing.T) []string {
	testInstance.Helper()
	entries, readError := os.ReadDir(fixture.ScratchDirectory)
	require.NoError(testInstance, readError)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

// WriteFiles writes slash-separated relative paths under root.
func WriteFiles(testInstance *testing.T, root string, files map[string]string) {
	testInstance.Helper()
	for relativePath, content := range files {
		filePath := filepath.Join(root, filepath.FromSlash(relativePath))
		require.NoError(testInstance, os.MkdirAll(filepath.Dir(filePath), fixtureDirectoryPermissions))
		require.NoError(testInstance, os.WriteFile(filePath, []byte(content), fixtureFilePermissions))
	}
}
