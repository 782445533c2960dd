package projects_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitcaptain/internal/projects"
)

func TestSnapshotIsolatesCallerMutations(testInstance *testing.T) {
	configuration := sampleConfiguration().Normalize(nil)
	snapshot := projects.NewSnapshot(configuration)

	configuration.Projects[0].Submodules[0].BaseBranch = "mutated"
	returnedProjects := snapshot.Projects()
	returnedProjects[0].Name = "mutated"

	project, found := snapshot.Project("api")
	require.True(testInstance, found)
	require.Equal(testInstance, "develop", project.Submodules[0].BaseBranch)
	require.Equal(testInstance, []string{"api", "web"}, snapshot.ProjectNames())
	require.Equal(testInstance, []string{"gitlab"}, snapshot.ProviderNames())
}

func TestSnapshotRemoteUpdatesProduceNewSnapshots(testInstance *testing.T) {
	original := projects.NewSnapshot(sampleConfiguration().Normalize(nil))

	updated, updateError := original.WithSubmoduleRemote("web", "shared", "mirror", "git@example.com:mirror/shared.git")
	require.NoError(testInstance, updateError)
	updated, updateError = updated.WithProjectRemote("api", "origin", "git@example.com:team/api.git")
	require.NoError(testInstance, updateError)

	originalProject, _ := original.Project("web")
	updatedProject, _ := updated.Project("web")
	require.Equal(testInstance, "origin", originalProject.Submodules[0].RemoteName)
	require.Equal(testInstance, "mirror", updatedProject.Submodules[0].RemoteName)
	require.Equal(testInstance, "git@example.com:mirror/shared.git", updatedProject.Submodules[0].RemoteURL)

	updatedAPI, _ := updated.Project("api")
	require.Equal(testInstance, "git@example.com:team/api.git", updatedAPI.RemoteURL)

	require.False(testInstance, original.Equal(updated))
	require.True(testInstance, original.Equal(projects.NewSnapshot(original.Configuration())))
}

func TestSnapshotRemoteUpdatesRejectUnknownEntries(testInstance *testing.T) {
	snapshot := projects.NewSnapshot(sampleConfiguration().Normalize(nil))

	_, projectError := snapshot.WithProjectRemote("missing", "origin", "url")
	require.ErrorIs(testInstance, projectError, projects.ErrUnknownProject)

	_, submoduleError := snapshot.WithSubmoduleRemote("api", "missing", "origin", "url")
	require.ErrorIs(testInstance, submoduleError, projects.ErrUnknownSubmodule)
}
