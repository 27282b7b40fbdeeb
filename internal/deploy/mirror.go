package deploy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/otiai10/copy"
)

const (
	gitMetadataDirectoryNameConstant = ".git"
	buildpacksFileNameConstant       = ".buildpacks"
	gitignoreFileNameConstant        = ".gitignore"
	mirrorClearErrorTemplate         = "unable to clear %s: %w"
	mirrorCopyErrorTemplate          = "unable to copy %s: %w"
	mirrorListErrorTemplate          = "unable to list %s: %w"
)

// TreeMirror makes a staging working tree an exact copy of an application source tree.
// Git metadata on either side is left alone.
type TreeMirror struct{}

// Mirror clears stagingDirectory except .git, copies sourceDirectory into it, then re-copies the dotfiles the platform reads.
func (mirror TreeMirror) Mirror(sourceDirectory string, stagingDirectory string) error {
	if clearError := mirror.ClearWorkingTree(stagingDirectory); clearError != nil {
		return clearError
	}
	if copyError := mirror.CopySourceTree(sourceDirectory, stagingDirectory); copyError != nil {
		return copyError
	}
	return mirror.CopyPlatformDotfiles(sourceDirectory, stagingDirectory)
}

// ClearWorkingTree removes every entry of directory except the .git directory.
func (mirror TreeMirror) ClearWorkingTree(directory string) error {
	entries, readError := os.ReadDir(directory)
	if readError != nil {
		return fmt.Errorf(mirrorListErrorTemplate, directory, readError)
	}
	for _, entry := range entries {
		if entry.Name() == gitMetadataDirectoryNameConstant {
			continue
		}
		entryPath := filepath.Join(directory, entry.Name())
		if removalError := os.RemoveAll(entryPath); removalError != nil {
			return fmt.Errorf(mirrorClearErrorTemplate, entryPath, removalError)
		}
	}
	return nil
}

// CopySourceTree copies every top-level entry of sourceDirectory except .git,
// preserving permissions and modification times. Symlinks are copied as links.
func (mirror TreeMirror) CopySourceTree(sourceDirectory string, stagingDirectory string) error {
	entries, readError := os.ReadDir(sourceDirectory)
	if readError != nil {
		return fmt.Errorf(mirrorListErrorTemplate, sourceDirectory, readError)
	}
	for _, entry := range entries {
		if entry.Name() == gitMetadataDirectoryNameConstant {
			continue
		}
		sourcePath := filepath.Join(sourceDirectory, entry.Name())
		if copyError := copy.Copy(sourcePath, filepath.Join(stagingDirectory, entry.Name()), mirrorCopyOptions()); copyError != nil {
			return fmt.Errorf(mirrorCopyErrorTemplate, sourcePath, copyError)
		}
	}
	return nil
}

// CopyPlatformDotfiles overwrites .buildpacks and .gitignore in staging with the source copies when present.
func (mirror TreeMirror) CopyPlatformDotfiles(sourceDirectory string, stagingDirectory string) error {
	for _, fileName := range []string{buildpacksFileNameConstant, gitignoreFileNameConstant} {
		sourcePath := filepath.Join(sourceDirectory, fileName)
		if !regularFileExists(sourcePath) {
			continue
		}
		if copyError := copyFile(sourcePath, filepath.Join(stagingDirectory, fileName)); copyError != nil {
			return copyError
		}
	}
	return nil
}

func mirrorCopyOptions() copy.Options {
	return copy.Options{
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Shallow
		},
		OnDirExists: func(string, string) copy.DirExistsAction {
			return copy.Merge
		},
		PreserveTimes: true,
	}
}

func copyFile(sourcePath string, destinationPath string) error {
	if removalError := os.RemoveAll(destinationPath); removalError != nil {
		return fmt.Errorf(mirrorClearErrorTemplate, destinationPath, removalError)
	}
	if copyError := copy.Copy(sourcePath, destinationPath, mirrorCopyOptions()); copyError != nil {
		return fmt.Errorf(mirrorCopyErrorTemplate, sourcePath, copyError)
	}
	return nil
}

func regularFileExists(filePath string) bool {
	info, statError := os.Stat(filePath)
	return statError == nil && info.Mode().IsRegular()
}
