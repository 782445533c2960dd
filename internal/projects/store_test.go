package projects_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/gitcaptain/internal/projects"
	"github.com/temirov/gitcaptain/internal/repos/filesystem"
)

type fixedClock struct {
	instant time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.instant
}

const testStoreYAMLContentConstant = `common:
  log_level: debug
projects:
  - name: api
    path: /srv/api
    base_branch: main
    remote_name: origin
`

func TestStoreBackupAndSaveYAMLPreservesOtherSections(testInstance *testing.T) {
	configurationPath := filepath.Join(testInstance.TempDir(), "config.yaml")
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(testStoreYAMLContentConstant), 0o644))

	store, storeError := projects.NewStore(filesystem.OSFileSystem{}, fixedClock{instant: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)})
	require.NoError(testInstance, storeError)

	backupPath, backupError := store.Backup(configurationPath)
	require.NoError(testInstance, backupError)
	require.Equal(testInstance, configurationPath+".backup_20260304T050607Z.yaml", backupPath)
	backupContents, readError := os.ReadFile(backupPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, testStoreYAMLContentConstant, string(backupContents))

	snapshot := projects.NewSnapshot(projects.Configuration{Projects: []projects.ProjectConfiguration{
		{Name: "api", Path: "/srv/api", BaseBranch: "main", RemoteName: "upstream", RemoteURL: "git@example.com:team/api.git"},
	}})
	require.NoError(testInstance, store.Save(configurationPath, snapshot))

	savedContents, savedReadError := os.ReadFile(configurationPath)
	require.NoError(testInstance, savedReadError)
	var saved struct {
		Common   map[string]string               `yaml:"common"`
		Projects []projects.ProjectConfiguration `yaml:"projects"`
	}
	require.NoError(testInstance, yaml.Unmarshal(savedContents, &saved))
	require.Equal(testInstance, "debug", saved.Common["log_level"])
	require.Len(testInstance, saved.Projects, 1)
	require.Equal(testInstance, "upstream", saved.Projects[0].RemoteName)
	require.Equal(testInstance, "git@example.com:team/api.git", saved.Projects[0].RemoteURL)
}

func TestStoreSaveWritesJSONForJSONFiles(testInstance *testing.T) {
	configurationPath := filepath.Join(testInstance.TempDir(), "projects.json")
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(`{"link":{"task_id":"OPS-1"},"projects":[]}`), 0o644))

	store, storeError := projects.NewStore(filesystem.OSFileSystem{}, nil)
	require.NoError(testInstance, storeError)

	snapshot := projects.NewSnapshot(projects.Configuration{
		PullRequestProviders: []projects.PullRequestProviderConfiguration{{Provider: "github"}},
		Projects:             []projects.ProjectConfiguration{{Name: "web", Path: "/srv/web", BaseBranch: "main", RemoteName: "origin"}},
	})
	require.NoError(testInstance, store.Save(configurationPath, snapshot))

	savedContents, readError := os.ReadFile(configurationPath)
	require.NoError(testInstance, readError)
	var saved projects.Configuration
	require.NoError(testInstance, json.Unmarshal(savedContents, &saved))
	require.True(testInstance, snapshot.Equal(projects.NewSnapshot(saved)))

	var document map[string]any
	require.NoError(testInstance, json.Unmarshal(savedContents, &document))
	require.Contains(testInstance, document, "link")

	rendered, renderError := store.Render(snapshot)
	require.NoError(testInstance, renderError)
	require.Contains(testInstance, string(rendered), "\"name\": \"web\"")
}

func TestNewStoreRequiresFileSystem(testInstance *testing.T) {
	_, storeError := projects.NewStore(nil, nil)
	require.ErrorIs(testInstance, storeError, projects.ErrFileSystemNotConfigured)
}
