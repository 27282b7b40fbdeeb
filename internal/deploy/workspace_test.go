package deploy_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/dedeploy/internal/deploy"
)

func TestAcquireWorkspaceCreatesDistinctDirectories(testInstance *testing.T) {
	baseDirectory := testInstance.TempDir()

	firstWorkspace, firstError := deploy.AcquireWorkspace(baseDirectory, "sales-dashboard")
	require.NoError(testInstance, firstError)
	secondWorkspace, secondError := deploy.AcquireWorkspace(baseDirectory, "sales-dashboard")
	require.NoError(testInstance, secondError)

	directories := []string{
		firstWorkspace.ProbeDirectory,
		firstWorkspace.StagingDirectory,
		secondWorkspace.ProbeDirectory,
		secondWorkspace.StagingDirectory,
	}
	seen := map[string]struct{}{}
	for _, directory := range directories {
		require.DirExists(testInstance, directory)
		require.Equal(testInstance, baseDirectory, filepath.Dir(directory))
		require.True(testInstance, strings.HasPrefix(filepath.Base(directory), "dedeploy-sales-dashboard-"))
		seen[directory] = struct{}{}
	}
	require.Len(testInstance, seen, len(directories))

	require.NoError(testInstance, firstWorkspace.Release())
	require.NoError(testInstance, secondWorkspace.Release())
	for _, directory := range directories {
		require.NoDirExists(testInstance, directory)
	}
}

func TestWorkspaceReleaseRemovesContentsAndIsRepeatable(testInstance *testing.T) {
	workspace, acquireError := deploy.AcquireWorkspace(testInstance.TempDir(), "sales-dashboard")
	require.NoError(testInstance, acquireError)
	require.NoError(testInstance, os.MkdirAll(filepath.Join(workspace.StagingDirectory, ".git", "objects"), 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(workspace.ProbeDirectory, "app.py"), []byte("x"), 0o644))

	require.NoError(testInstance, workspace.Release())
	require.NoError(testInstance, workspace.Release())
	require.NoDirExists(testInstance, workspace.ProbeDirectory)
	require.NoDirExists(testInstance, workspace.StagingDirectory)
}

func TestAcquireWorkspaceFailsForMissingBase(testInstance *testing.T) {
	_, acquireError := deploy.AcquireWorkspace(filepath.Join(testInstance.TempDir(), "absent"), "sales-dashboard")

	var operationError deploy.OperationError
	require.ErrorAs(testInstance, acquireError, &operationError)
	require.Equal(testInstance, deploy.OperationName("AcquireWorkspace"), operationError.Operation)
}

func TestNilWorkspaceReleaseIsNoop(testInstance *testing.T) {
	var workspace *deploy.Workspace
	require.NoError(testInstance, workspace.Release())
}
