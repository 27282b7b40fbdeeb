package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant             = "~"
	tildeForwardSlashPrefixConstant = "~/"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// Resolver turns configured paths into absolute locations, expanding a leading tilde.
type Resolver struct {
	homeDirectoryProvider HomeDirectoryProvider
	homeDirectory         string
	homeDirectoryError    error
	initializationGuard   sync.Once
}

// NewResolver constructs a Resolver using the operating system home lookup.
func NewResolver() *Resolver {
	return NewResolverWithHomeProvider(os.UserHomeDir)
}

// NewResolverWithHomeProvider constructs a Resolver with a custom home lookup.
func NewResolverWithHomeProvider(provider HomeDirectoryProvider) *Resolver {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &Resolver{homeDirectoryProvider: provider}
}

// ExpandHome resolves "~" and "~/..." prefixes. Other paths are returned untouched.
func (resolver *Resolver) ExpandHome(candidatePath string) string {
	if resolver == nil || !strings.HasPrefix(candidatePath, tildeSymbolConstant) {
		return candidatePath
	}

	homeDirectory := resolver.resolveHomeDirectory()
	if len(homeDirectory) == 0 {
		return candidatePath
	}

	switch {
	case candidatePath == tildeSymbolConstant:
		return homeDirectory
	case strings.HasPrefix(candidatePath, tildeForwardSlashPrefixConstant):
		return filepath.Join(homeDirectory, strings.TrimPrefix(candidatePath, tildeForwardSlashPrefixConstant))
	case strings.HasPrefix(candidatePath, tildeSymbolConstant+string(os.PathSeparator)):
		return filepath.Join(homeDirectory, strings.TrimPrefix(candidatePath, tildeSymbolConstant+string(os.PathSeparator)))
	default:
		return candidatePath
	}
}

// Resolve expands the home prefix and anchors relative paths at baseDirectory.
// An empty candidate yields an empty result.
func (resolver *Resolver) Resolve(baseDirectory string, candidatePath string) string {
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		return ""
	}
	expandedPath := resolver.ExpandHome(trimmedPath)
	if filepath.IsAbs(expandedPath) || len(baseDirectory) == 0 {
		return filepath.Clean(expandedPath)
	}
	return filepath.Join(baseDirectory, expandedPath)
}

func (resolver *Resolver) resolveHomeDirectory() string {
	resolver.initializationGuard.Do(func() {
		resolver.homeDirectory, resolver.homeDirectoryError = resolver.homeDirectoryProvider()
	})
	if resolver.homeDirectoryError != nil {
		return ""
	}
	return resolver.homeDirectory
}
