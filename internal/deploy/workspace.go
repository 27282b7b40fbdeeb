package deploy

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
)

const (
	probeDirectoryPatternTemplate   = "dedeploy-%s-probe-*"
	stagingDirectoryPatternTemplate = "dedeploy-%s-staging-*"
	workspaceRemovalErrorTemplate   = "unable to remove %s: %w"
)

// Workspace owns the two scratch directories of a deploy attempt.
type Workspace struct {
	ProbeDirectory   string
	StagingDirectory string
}

// AcquireWorkspace creates uniquely named probe and staging directories under baseDirectory.
// An empty baseDirectory uses the system temporary directory.
func AcquireWorkspace(baseDirectory string, appName string) (*Workspace, error) {
	probeDirectory, probeError := os.MkdirTemp(baseDirectory, fmt.Sprintf(probeDirectoryPatternTemplate, appName))
	if probeError != nil {
		return nil, wrapOperation(operationAcquireWorkspace, probeError)
	}

	stagingDirectory, stagingError := os.MkdirTemp(baseDirectory, fmt.Sprintf(stagingDirectoryPatternTemplate, appName))
	if stagingError != nil {
		workspace := &Workspace{ProbeDirectory: probeDirectory}
		if releaseError := workspace.Release(); releaseError != nil {
			return nil, wrapOperation(operationAcquireWorkspace, multierror.Append(stagingError, releaseError))
		}
		return nil, wrapOperation(operationAcquireWorkspace, stagingError)
	}

	return &Workspace{ProbeDirectory: probeDirectory, StagingDirectory: stagingDirectory}, nil
}

// Release removes both scratch directories. It is safe to call more than once.
func (workspace *Workspace) Release() error {
	if workspace == nil {
		return nil
	}

	var releaseErrors *multierror.Error
	for _, directory := range []string{workspace.ProbeDirectory, workspace.StagingDirectory} {
		if len(directory) == 0 {
			continue
		}
		if removalError := os.RemoveAll(directory); removalError != nil {
			releaseErrors = multierror.Append(releaseErrors, fmt.Errorf(workspaceRemovalErrorTemplate, directory, removalError))
		}
	}
	return releaseErrors.ErrorOrNil()
}
