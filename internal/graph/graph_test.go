package graph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitcaptain/internal/graph"
	"github.com/temirov/gitcaptain/internal/projects"
)

const (
	testSharedSubmoduleNameConstant = "shared"
	testApiProjectNameConstant      = "api"
	testWebProjectNameConstant      = "web"
)

func sharedSubmoduleConfiguration() projects.Configuration {
	return projects.Configuration{Projects: []projects.ProjectConfiguration{
		{
			Name:       testApiProjectNameConstant,
			Path:       "/srv/api",
			BaseBranch: "main",
			RemoteName: "origin",
			Submodules: []projects.SubmoduleConfiguration{
				{Name: testSharedSubmoduleNameConstant, BaseBranch: "develop", RemoteName: "origin"},
				{Name: "proto", Path: "third_party/proto", BaseBranch: "main", RemoteName: "origin"},
			},
		},
		{
			Name:       testWebProjectNameConstant,
			Path:       "/srv/web",
			BaseBranch: "main",
			RemoteName: "upstream",
			Submodules: []projects.SubmoduleConfiguration{
				{Name: testSharedSubmoduleNameConstant, BaseBranch: "develop", RemoteName: "origin"},
			},
		},
	}}
}

func TestBuildPreservesDeclarationOrderAndPaths(testInstance *testing.T) {
	repositoryGraph := graph.Build(sharedSubmoduleConfiguration())

	require.Equal(testInstance, []string{testApiProjectNameConstant, testWebProjectNameConstant}, repositoryGraph.ProjectNames())

	api, found := repositoryGraph.Project(testApiProjectNameConstant)
	require.True(testInstance, found)
	require.Equal(testInstance, []string{testSharedSubmoduleNameConstant, "proto"}, api.SubmoduleNames())
	require.Equal(testInstance, graph.BranchStatusUnresolved, api.Branch.Status)

	proto, protoFound := api.Submodule("proto")
	require.True(testInstance, protoFound)
	require.Equal(testInstance, "/srv/api/third_party/proto", proto.Path)
	require.Equal(testInstance, "third_party/proto", proto.RelativePath)
	require.Same(testInstance, api, proto.Project)
}

func TestSharedSubmoduleIsUniqueAcrossProjects(testInstance *testing.T) {
	configuration := sharedSubmoduleConfiguration()
	configuration.Projects[0].Submodules = configuration.Projects[0].Submodules[:1]

	repositoryGraph := graph.Build(configuration)

	require.Equal(testInstance, []string{testSharedSubmoduleNameConstant}, repositoryGraph.UniqueSubmodules())
	require.Len(testInstance, repositoryGraph.SubmoduleReferences(), 2)

	names, grouped := graph.GroupByName(repositoryGraph.SubmoduleReferences())
	require.Equal(testInstance, []string{testSharedSubmoduleNameConstant}, names)
	require.Len(testInstance, grouped[testSharedSubmoduleNameConstant], 2)
	require.Equal(testInstance, "/srv/api/shared", grouped[testSharedSubmoduleNameConstant][0].Path)
	require.Equal(testInstance, "/srv/web/shared", grouped[testSharedSubmoduleNameConstant][1].Path)
}

func TestSelectedReferencesSkipFailedProjects(testInstance *testing.T) {
	repositoryGraph := graph.Build(sharedSubmoduleConfiguration())
	api, _ := repositoryGraph.Project(testApiProjectNameConstant)
	web, _ := repositoryGraph.Project(testWebProjectNameConstant)

	api.SelectSubmodules([]string{"proto", testSharedSubmoduleNameConstant})
	web.SelectSubmodules([]string{testSharedSubmoduleNameConstant})
	web.Branch.Fail(errors.New("checkout failed"))

	selected := repositoryGraph.SelectedReferences()
	require.Len(testInstance, selected, 2)
	require.Equal(testInstance, testSharedSubmoduleNameConstant, selected[0].Name)
	require.Equal(testInstance, "proto", selected[1].Name)
	require.Len(testInstance, repositoryGraph.Active(), 1)

	subset := repositoryGraph.Select([]string{testWebProjectNameConstant})
	require.Equal(testInstance, []string{testWebProjectNameConstant}, subset.ProjectNames())
	require.Same(testInstance, web, subset.Projects[0])
}

func TestFeatureBranchStateTransitions(testInstance *testing.T) {
	state := graph.FeatureBranchState{Status: graph.BranchStatusUnresolved}
	require.False(testInstance, state.Resolved())

	state.Advance(graph.BranchStatusPathChecked)
	state.Advance(graph.BranchStatusBaseBranchChecked)
	state.Resolve("feature/links", graph.BranchOriginCreated)
	require.True(testInstance, state.Resolved())
	require.Equal(testInstance, graph.BranchOriginCreated, state.Origin)

	state.Fail(errors.New("checkout failed"))
	require.True(testInstance, state.Failed())
	require.False(testInstance, state.Resolved())
	require.Equal(testInstance, "feature/links", state.BranchName)
}
