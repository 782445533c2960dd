// Package pathutils resolves user-facing repository paths.
package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant         = "~"
	forwardSlashSymbolConstant  = "/"
	relativeWorkingPathConstant = "."
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander converts "~" prefixed paths to absolute paths under the user's home directory.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	homeDirectory         string
	initializationGuard   sync.Once
}

// NewHomeExpander constructs a HomeExpander using the operating system lookup.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{homeDirectoryProvider: provider}
}

// Expand resolves a leading "~" and cleans the result. Paths without the prefix are only cleaned.
func (expander *HomeExpander) Expand(candidatePath string) string {
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		return trimmedPath
	}
	if expander == nil || !strings.HasPrefix(trimmedPath, tildeSymbolConstant) {
		return filepath.Clean(trimmedPath)
	}

	remainder := strings.TrimPrefix(trimmedPath, tildeSymbolConstant)
	if len(remainder) > 0 && !strings.HasPrefix(remainder, forwardSlashSymbolConstant) && !strings.HasPrefix(remainder, string(os.PathSeparator)) {
		return filepath.Clean(trimmedPath)
	}

	homeDirectory := expander.resolveHomeDirectory()
	if len(homeDirectory) == 0 {
		return filepath.Clean(trimmedPath)
	}
	relativePath := strings.TrimLeft(remainder, forwardSlashSymbolConstant+string(os.PathSeparator))
	if len(relativePath) == 0 {
		relativePath = relativeWorkingPathConstant
	}
	return filepath.Join(homeDirectory, relativePath)
}

func (expander *HomeExpander) resolveHomeDirectory() string {
	expander.initializationGuard.Do(func() {
		homeDirectory, lookupError := expander.homeDirectoryProvider()
		if lookupError == nil {
			expander.homeDirectory = homeDirectory
		}
	})
	return expander.homeDirectory
}
