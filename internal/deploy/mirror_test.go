package deploy_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/dedeploy/internal/deploy"
	"github.com/temirov/dedeploy/internal/deploy/testsupport"
)

func TestTreeMirrorReplacesWorkingTree(testInstance *testing.T) {
	sourceDirectory := testInstance.TempDir()
	stagingDirectory := testInstance.TempDir()

	testsupport.WriteFiles(testInstance, sourceDirectory, map[string]string{
		"app.py":        "import dash\n",
		"pages/home.py": "layout = None\n",
		".buildpacks":   "https://github.com/heroku/heroku-buildpack-python\n",
		".gitignore":    "*.pyc\n",
		".git/HEAD":     "ref: refs/heads/source\n",
	})
	testsupport.WriteFiles(testInstance, stagingDirectory, map[string]string{
		"stale.py":     "gone\n",
		"pages/old.py": "gone\n",
		".git/HEAD":    "ref: refs/heads/master\n",
	})

	require.NoError(testInstance, deploy.TreeMirror{}.Mirror(sourceDirectory, stagingDirectory))

	stagedTree, readError := testsupport.ReadTree(stagingDirectory)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, map[string]string{
		"app.py":        "import dash\n",
		"pages/home.py": "layout = None\n",
		".buildpacks":   "https://github.com/heroku/heroku-buildpack-python\n",
		".gitignore":    "*.pyc\n",
	}, stagedTree)

	stagedHead, headError := os.ReadFile(filepath.Join(stagingDirectory, ".git", "HEAD"))
	require.NoError(testInstance, headError)
	require.Equal(testInstance, "ref: refs/heads/master\n", string(stagedHead))
}

func TestTreeMirrorPreservesModeAndTimes(testInstance *testing.T) {
	sourceDirectory := testInstance.TempDir()
	stagingDirectory := testInstance.TempDir()

	scriptPath := filepath.Join(sourceDirectory, "start.sh")
	require.NoError(testInstance, os.WriteFile(scriptPath, []byte("#!/bin/sh\n"), 0o755))
	modificationTime := time.Date(2021, time.March, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(testInstance, os.Chtimes(scriptPath, modificationTime, modificationTime))

	require.NoError(testInstance, deploy.TreeMirror{}.Mirror(sourceDirectory, stagingDirectory))

	stagedInfo, statError := os.Stat(filepath.Join(stagingDirectory, "start.sh"))
	require.NoError(testInstance, statError)
	require.Equal(testInstance, os.FileMode(0o755), stagedInfo.Mode().Perm())
	require.True(testInstance, modificationTime.Equal(stagedInfo.ModTime()))
}

func TestTreeMirrorKeepsSymlinksShallow(testInstance *testing.T) {
	sourceDirectory := testInstance.TempDir()
	stagingDirectory := testInstance.TempDir()

	testsupport.WriteFiles(testInstance, sourceDirectory, map[string]string{"data/source.csv": "a,b\n"})
	require.NoError(testInstance, os.Symlink(filepath.Join("data", "source.csv"), filepath.Join(sourceDirectory, "latest.csv")))

	require.NoError(testInstance, deploy.TreeMirror{}.Mirror(sourceDirectory, stagingDirectory))

	linkTarget, readLinkError := os.Readlink(filepath.Join(stagingDirectory, "latest.csv"))
	require.NoError(testInstance, readLinkError)
	require.Equal(testInstance, filepath.Join("data", "source.csv"), linkTarget)
}

func TestTreeMirrorMissingSourceFails(testInstance *testing.T) {
	stagingDirectory := testInstance.TempDir()
	require.Error(testInstance, deploy.TreeMirror{}.Mirror(filepath.Join(stagingDirectory, "absent"), stagingDirectory))
}
