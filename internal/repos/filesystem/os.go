package filesystem

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	temporaryFilePatternTemplateConstant = ".%s.*.tmp"
	writeFileErrorTemplateConstant       = "write %s: %w"
)

// OSFileSystem implements shared.FileSystem on the local disk.
type OSFileSystem struct{}

// Stat retrieves file metadata.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// ReadFile reads file contents.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to a temporary sibling and renames it over path.
func (OSFileSystem) WriteFile(path string, data []byte, permissions fs.FileMode) error {
	temporaryFile, createError := os.CreateTemp(filepath.Dir(path), fmt.Sprintf(temporaryFilePatternTemplateConstant, filepath.Base(path)))
	if createError != nil {
		return fmt.Errorf(writeFileErrorTemplateConstant, path, createError)
	}
	temporaryPath := temporaryFile.Name()
	defer os.Remove(temporaryPath)

	if _, writeError := temporaryFile.Write(data); writeError != nil {
		temporaryFile.Close()
		return fmt.Errorf(writeFileErrorTemplateConstant, path, writeError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return fmt.Errorf(writeFileErrorTemplateConstant, path, closeError)
	}
	if chmodError := os.Chmod(temporaryPath, permissions); chmodError != nil {
		return fmt.Errorf(writeFileErrorTemplateConstant, path, chmodError)
	}
	if renameError := os.Rename(temporaryPath, path); renameError != nil {
		return fmt.Errorf(writeFileErrorTemplateConstant, path, renameError)
	}
	return nil
}
