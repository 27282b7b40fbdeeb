package testsupport

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"

	"github.com/temirov/dedeploy/internal/vcs"
)

const (
	gitDirectoryNameConstant  = ".git"
	pushedShortHashConstant   = "9e1c0de"
	gitDirectoryPermissions   = 0o755
	remoteFilePermissions     = 0o644
	remoteMissingErrorMessage = "repository not found"
)

// RemoteRepository is the in-memory state of the remote a FakeVcsClient talks to.
type RemoteRepository struct {
	Exists     bool
	LatestHash string
	Files      map[string]string
}

// FakeVcsClient simulates git against a RemoteRepository using real scratch directories.
// Clones materialize the remote files; pushes replace them with the staged tree.
type FakeVcsClient struct {
	Remote RemoteRepository
	// SourceHash is the commit checked out in the repository holding the applications.
	SourceHash string

	ShallowCloneError error
	CloneError        error
	PushError         error
	CommitHook        func()

	Operations        []string
	Directories       []string
	RemoteURLs        []string
	Commits           []string
	Pushes            []vcs.PushOptions
	LookedUpRevisions []string

	baselines     map[string]map[string]string
	shallowClones map[string]string
}

var _ vcs.VcsClient = (*FakeVcsClient)(nil)

// ShallowClone materializes a .git directory when the remote exists.
func (client *FakeVcsClient) ShallowClone(executionContext context.Context, remoteURL string, destination string) error {
	if recordError := client.record(executionContext, "ShallowClone", destination); recordError != nil {
		return recordError
	}
	client.RemoteURLs = append(client.RemoteURLs, remoteURL)
	if client.ShallowCloneError != nil {
		return client.ShallowCloneError
	}
	if !client.Remote.Exists {
		return errors.New(remoteMissingErrorMessage)
	}
	if client.shallowClones == nil {
		client.shallowClones = map[string]string{}
	}
	client.shallowClones[destination] = client.Remote.LatestHash
	return os.MkdirAll(filepath.Join(destination, gitDirectoryNameConstant), gitDirectoryPermissions)
}

// Clone writes the remote files into destination.
func (client *FakeVcsClient) Clone(executionContext context.Context, remoteURL string, destination string) error {
	if recordError := client.record(executionContext, "Clone", destination); recordError != nil {
		return recordError
	}
	client.RemoteURLs = append(client.RemoteURLs, remoteURL)
	if client.CloneError != nil {
		return client.CloneError
	}
	if !client.Remote.Exists {
		return errors.New(remoteMissingErrorMessage)
	}
	if mkdirError := os.MkdirAll(filepath.Join(destination, gitDirectoryNameConstant), gitDirectoryPermissions); mkdirError != nil {
		return mkdirError
	}
	for relativePath, content := range client.Remote.Files {
		filePath := filepath.Join(destination, relativePath)
		if mkdirError := os.MkdirAll(filepath.Dir(filePath), gitDirectoryPermissions); mkdirError != nil {
			return mkdirError
		}
		if writeError := os.WriteFile(filePath, []byte(content), remoteFilePermissions); writeError != nil {
			return writeError
		}
	}
	client.setBaseline(destination, client.Remote.Files)
	return nil
}

// Init starts an empty history in directory.
func (client *FakeVcsClient) Init(executionContext context.Context, directory string) error {
	if recordError := client.record(executionContext, "Init", directory); recordError != nil {
		return recordError
	}
	client.setBaseline(directory, map[string]string{})
	return os.MkdirAll(filepath.Join(directory, gitDirectoryNameConstant), gitDirectoryPermissions)
}

// AddRemote records the remote URL.
func (client *FakeVcsClient) AddRemote(executionContext context.Context, directory string, _ string, remoteURL string) error {
	if recordError := client.record(executionContext, "AddRemote", directory); recordError != nil {
		return recordError
	}
	client.RemoteURLs = append(client.RemoteURLs, remoteURL)
	return nil
}

// LatestShortHash returns the head a shallow clone fetched, or SourceHash for any other directory.
func (client *FakeVcsClient) LatestShortHash(executionContext context.Context, directory string) (string, error) {
	if recordError := client.record(executionContext, "LatestShortHash", directory); recordError != nil {
		return "", recordError
	}
	if headHash, cloned := client.shallowClones[directory]; cloned {
		return headHash, nil
	}
	return client.SourceHash, nil
}

// LookupCommit resolves revision only when it is the single commit a shallow clone holds.
func (client *FakeVcsClient) LookupCommit(executionContext context.Context, directory string, revision string) (bool, error) {
	if recordError := client.record(executionContext, "LookupCommit", directory); recordError != nil {
		return false, recordError
	}
	client.LookedUpRevisions = append(client.LookedUpRevisions, revision)
	headHash, cloned := client.shallowClones[directory]
	return cloned && len(headHash) > 0 && headHash == revision, nil
}

// IsClean compares the working tree with what the last clone or init produced.
func (client *FakeVcsClient) IsClean(executionContext context.Context, directory string) (bool, error) {
	if recordError := client.record(executionContext, "IsClean", directory); recordError != nil {
		return false, recordError
	}
	currentTree, readError := ReadTree(directory)
	if readError != nil {
		return false, readError
	}
	return reflect.DeepEqual(currentTree, client.baselines[directory]), nil
}

// StageAll records the call.
func (client *FakeVcsClient) StageAll(executionContext context.Context, directory string) error {
	return client.record(executionContext, "StageAll", directory)
}

// Commit records the message and runs CommitHook.
func (client *FakeVcsClient) Commit(executionContext context.Context, directory string, message string) error {
	if recordError := client.record(executionContext, "Commit", directory); recordError != nil {
		return recordError
	}
	client.Commits = append(client.Commits, message)
	if client.CommitHook != nil {
		client.CommitHook()
	}
	return nil
}

// Push publishes the staged tree as the new remote content.
func (client *FakeVcsClient) Push(executionContext context.Context, directory string, options vcs.PushOptions) error {
	if recordError := client.record(executionContext, "Push", directory); recordError != nil {
		return recordError
	}
	client.Pushes = append(client.Pushes, options)
	if client.PushError != nil {
		return client.PushError
	}
	stagedTree, readError := ReadTree(directory)
	if readError != nil {
		return readError
	}
	client.Remote = RemoteRepository{Exists: true, LatestHash: pushedShortHashConstant, Files: stagedTree}
	return nil
}

// ReadTree returns every regular file under root except .git, keyed by slash-separated relative path.
func ReadTree(root string) (map[string]string, error) {
	tree := map[string]string{}
	walkError := filepath.WalkDir(root, func(currentPath string, entry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}
		if entry.IsDir() {
			if entry.Name() == gitDirectoryNameConstant {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		content, readError := os.ReadFile(currentPath)
		if readError != nil {
			return readError
		}
		relativePath, relativeError := filepath.Rel(root, currentPath)
		if relativeError != nil {
			return relativeError
		}
		tree[filepath.ToSlash(relativePath)] = string(content)
		return nil
	})
	return tree, walkError
}

func (client *FakeVcsClient) record(executionContext context.Context, operation string, directory string) error {
	client.Operations = append(client.Operations, operation)
	client.Directories = append(client.Directories, directory)
	return executionContext.Err()
}

func (client *FakeVcsClient) setBaseline(directory string, files map[string]string) {
	if client.baselines == nil {
		client.baselines = map[string]map[string]string{}
	}
	baseline := make(map[string]string, len(files))
	for relativePath, content := range files {
		baseline[relativePath] = content
	}
	client.baselines[directory] = baseline
}
