package projects

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/temirov/gitcaptain/internal/repos/shared"
)

const (
	fileSystemNotConfiguredMessageConstant = "configuration store filesystem not configured"
	backupPathTemplateConstant             = "%s.backup_%s%s"
	backupTimestampLayoutConstant          = "20060102T150405Z"
	readConfigurationErrorTemplateConstant = "read configuration %s: %w"
	decodeDocumentErrorTemplateConstant    = "decode configuration %s: %w"
	encodeDocumentErrorTemplateConstant    = "encode configuration %s: %w"
	writeConfigurationErrorTemplate        = "write configuration %s: %w"
	backupConfigurationErrorTemplate       = "back up configuration %s: %w"
	jsonExtensionConstant                  = ".json"
	jsonIndentConstant                     = "  "
	projectsDocumentKeyConstant            = "projects"
	providersDocumentKeyConstant           = "pr_providers"
	configurationFilePermissionsConstant   = fs.FileMode(0o644)
)

// ErrFileSystemNotConfigured indicates the store was constructed without a filesystem.
var ErrFileSystemNotConfigured = errors.New(fileSystemNotConfiguredMessageConstant)

// Store persists snapshots back into the configuration file they were loaded from.
type Store struct {
	fileSystem shared.FileSystem
	clock      shared.Clock
}

// NewStore constructs a Store. A nil clock defaults to the system clock.
func NewStore(fileSystem shared.FileSystem, clock shared.Clock) (*Store, error) {
	if fileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Store{fileSystem: fileSystem, clock: clock}, nil
}

// Backup copies the configuration file next to itself with a UTC timestamp and returns the copy's path.
func (store *Store) Backup(configurationPath string) (string, error) {
	contents, readError := store.fileSystem.ReadFile(configurationPath)
	if readError != nil {
		return "", fmt.Errorf(backupConfigurationErrorTemplate, configurationPath, readError)
	}
	timestamp := store.clock.Now().UTC().Format(backupTimestampLayoutConstant)
	backupPath := fmt.Sprintf(backupPathTemplateConstant, configurationPath, timestamp, filepath.Ext(configurationPath))
	if writeError := store.fileSystem.WriteFile(backupPath, contents, configurationFilePermissionsConstant); writeError != nil {
		return "", fmt.Errorf(backupConfigurationErrorTemplate, configurationPath, writeError)
	}
	return backupPath, nil
}

// Save rewrites the projects and pr_providers sections of the configuration file, keeping every other section.
// Files ending in .json are written as JSON, everything else as YAML.
func (store *Store) Save(configurationPath string, snapshot Snapshot) error {
	document, decodeError := store.readDocument(configurationPath)
	if decodeError != nil {
		return decodeError
	}

	configuration := snapshot.Configuration()
	document[projectsDocumentKeyConstant] = configuration.Projects
	if len(configuration.PullRequestProviders) > 0 {
		document[providersDocumentKeyConstant] = configuration.PullRequestProviders
	} else {
		delete(document, providersDocumentKeyConstant)
	}

	var encoded []byte
	var encodeError error
	if isJSONPath(configurationPath) {
		encoded, encodeError = json.MarshalIndent(document, "", jsonIndentConstant)
	} else {
		encoded, encodeError = yaml.Marshal(document)
	}
	if encodeError != nil {
		return fmt.Errorf(encodeDocumentErrorTemplateConstant, configurationPath, encodeError)
	}

	if writeError := store.fileSystem.WriteFile(configurationPath, encoded, configurationFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(writeConfigurationErrorTemplate, configurationPath, writeError)
	}
	return nil
}

// Render encodes the snapshot as indented JSON for display.
func (store *Store) Render(snapshot Snapshot) ([]byte, error) {
	return json.MarshalIndent(snapshot.Configuration(), "", jsonIndentConstant)
}

func (store *Store) readDocument(configurationPath string) (map[string]any, error) {
	document := map[string]any{}
	contents, readError := store.fileSystem.ReadFile(configurationPath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return document, nil
		}
		return nil, fmt.Errorf(readConfigurationErrorTemplateConstant, configurationPath, readError)
	}
	if len(strings.TrimSpace(string(contents))) == 0 {
		return document, nil
	}

	var decodeError error
	if isJSONPath(configurationPath) {
		decodeError = json.Unmarshal(contents, &document)
	} else {
		decodeError = yaml.Unmarshal(contents, &document)
	}
	if decodeError != nil {
		return nil, fmt.Errorf(decodeDocumentErrorTemplateConstant, configurationPath, decodeError)
	}
	if document == nil {
		document = map[string]any{}
	}
	return document, nil
}

func isJSONPath(configurationPath string) bool {
	return strings.EqualFold(filepath.Ext(configurationPath), jsonExtensionConstant)
}
