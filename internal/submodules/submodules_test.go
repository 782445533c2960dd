package submodules_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gitcaptain/internal/decisions"
	"github.com/temirov/gitcaptain/internal/execshell"
	"github.com/temirov/gitcaptain/internal/gitrepo"
	"github.com/temirov/gitcaptain/internal/gitrepo/gitrepotest"
	"github.com/temirov/gitcaptain/internal/graph"
	"github.com/temirov/gitcaptain/internal/projects"
	repoerrors "github.com/temirov/gitcaptain/internal/repos/errors"
	"github.com/temirov/gitcaptain/internal/submodules"
)

const (
	testApiPathConstant          = "/srv/api"
	testWebPathConstant          = "/srv/web"
	testApiSharedPathConstant    = "/srv/api/shared"
	testWebSharedPathConstant    = "/srv/web/shared"
	testApiProtoPathConstant     = "/srv/api/proto"
	testSharedNameConstant       = "shared"
	testProtoNameConstant        = "proto"
	testPreviousCommitConstant   = "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"
	testCurrentCommitConstant    = "b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2"
	testExpectedMessageConstant  = "feat(submodules): update links\n\nshared:\n- add retries\n- fix parser\n- bump version\n"
	testPushSubmoduleKeyConstant = decisions.KeyPushSubmodule
)

type submodulesFixture struct {
	executor    *gitrepotest.ScriptedGitExecutor
	script      *decisions.Script
	coordinator *submodules.Coordinator
	stager      *submodules.Stager
	graph       *graph.Graph
	logs        *observer.ObservedLogs
}

func newSubmodulesFixture(testInstance *testing.T, configuration projects.Configuration) submodulesFixture {
	testInstance.Helper()

	executor := gitrepotest.NewScriptedGitExecutor()
	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, managerError)

	script := decisions.NewScript()
	core, logs := observer.New(zap.DebugLevel)
	dependencies := submodules.Dependencies{RepositoryManager: repositoryManager, Decisions: script, Logger: zap.New(core)}

	coordinator, coordinatorError := submodules.NewCoordinator(dependencies, 2)
	require.NoError(testInstance, coordinatorError)
	stager, stagerError := submodules.NewStager(dependencies)
	require.NoError(testInstance, stagerError)

	repositoryGraph := graph.Build(configuration)
	for _, project := range repositoryGraph.Projects {
		project.SelectSubmodules(project.SubmoduleNames())
	}
	return submodulesFixture{executor: executor, script: script, coordinator: coordinator, stager: stager, graph: repositoryGraph, logs: logs}
}

func singleProjectConfiguration(submoduleNames ...string) projects.Configuration {
	submoduleConfigurations := []projects.SubmoduleConfiguration{}
	for _, name := range submoduleNames {
		submoduleConfigurations = append(submoduleConfigurations, projects.SubmoduleConfiguration{Name: name, BaseBranch: "develop", RemoteName: "origin"})
	}
	return projects.Configuration{Projects: []projects.ProjectConfiguration{
		{Name: "api", Path: testApiPathConstant, BaseBranch: "main", RemoteName: "origin", Submodules: submoduleConfigurations},
	}}
}

func sharedConfiguration() projects.Configuration {
	configuration := singleProjectConfiguration(testSharedNameConstant)
	configuration.Projects = append(configuration.Projects, projects.ProjectConfiguration{
		Name:       "web",
		Path:       testWebPathConstant,
		BaseBranch: "main",
		RemoteName: "origin",
		Submodules: []projects.SubmoduleConfiguration{{Name: testSharedNameConstant, BaseBranch: "develop", RemoteName: "origin"}},
	})
	return configuration
}

func lsTree(commit string, path string) string {
	return "160000 commit " + commit + "\t" + path + "\n"
}

func TestStageBuildsMessageForAdvancedSubmodule(testInstance *testing.T) {
	fixture := newSubmodulesFixture(testInstance, singleProjectConfiguration(testSharedNameConstant))
	fixture.executor.
		Respond(testApiPathConstant, lsTree(testPreviousCommitConstant, testSharedNameConstant), "ls-tree", "HEAD", testSharedNameConstant).
		Respond(testApiSharedPathConstant, testCurrentCommitConstant+"\n", "rev-parse", "HEAD").
		Respond(testApiSharedPathConstant, gitrepotest.JoinLines("add retries", "fix parser", "bump version"), "log")

	project := fixture.graph.Projects[0]
	result := fixture.stager.Stage(context.Background(), project, submodules.SyncReport{})

	require.Equal(testInstance, testExpectedMessageConstant, result.Message)
	require.Equal(testInstance, 3, result.TotalCommits())
	require.Equal(testInstance, "1 of 1 submodules staged", result.Summary())
	require.Equal(testInstance, 1, fixture.executor.Count(testApiPathConstant, "add", testSharedNameConstant))
	require.Equal(testInstance, 1, fixture.executor.Count(testApiSharedPathConstant, "pull", "--no-rebase", "--ff", "origin", "develop"))
	require.Equal(testInstance, []string{"log", "--format=%s", "--reverse", testPreviousCommitConstant + ".." + testCurrentCommitConstant},
		fixture.executor.Arguments(testApiSharedPathConstant)[4])
}

func TestStageSkipsUnchangedAndFailedSubmodules(testInstance *testing.T) {
	fixture := newSubmodulesFixture(testInstance, singleProjectConfiguration(testSharedNameConstant, testProtoNameConstant))
	fixture.executor.
		Respond(testApiPathConstant, lsTree(testCurrentCommitConstant, testSharedNameConstant), "ls-tree", "HEAD", testSharedNameConstant).
		Respond(testApiSharedPathConstant, testCurrentCommitConstant+"\n", "rev-parse", "HEAD").
		Fail(testApiProtoPathConstant, nil, "pull")

	project := fixture.graph.Projects[0]
	result := fixture.stager.Stage(context.Background(), project, submodules.SyncReport{})

	require.Empty(testInstance, result.Message)
	require.Equal(testInstance, "0 of 2 submodules staged", result.Summary())
	require.Len(testInstance, result.Skipped, 2)
	require.Nil(testInstance, result.Skipped[0].Reason)
	require.ErrorIs(testInstance, result.Skipped[1].Reason, repoerrors.ErrSubmoduleUpdate)
	require.Zero(testInstance, fixture.executor.Count(testApiPathConstant, "add"))
	require.Zero(testInstance, fixture.executor.Count(testApiSharedPathConstant, "log"))
}

func TestStageContinuesAfterOneSubmoduleFails(testInstance *testing.T) {
	fixture := newSubmodulesFixture(testInstance, singleProjectConfiguration(testProtoNameConstant, testSharedNameConstant))
	fixture.executor.
		Fail(testApiProtoPathConstant, nil, "checkout").
		Respond(testApiPathConstant, lsTree(testPreviousCommitConstant, testSharedNameConstant), "ls-tree", "HEAD", testSharedNameConstant).
		Respond(testApiSharedPathConstant, testCurrentCommitConstant+"\n", "rev-parse", "HEAD").
		Respond(testApiSharedPathConstant, gitrepotest.JoinLines("add retries"), "log")

	result := fixture.stager.Stage(context.Background(), fixture.graph.Projects[0], submodules.SyncReport{})

	require.Equal(testInstance, "1 of 2 submodules staged", result.Summary())
	require.Equal(testInstance, "feat(submodules): update links\n\nshared:\n- add retries\n", result.Message)
	require.Equal(testInstance, 1, fixture.executor.Count(testApiPathConstant, "add", testSharedNameConstant))
}

func TestSharedSubmoduleIsPulledOnce(testInstance *testing.T) {
	fixture := newSubmodulesFixture(testInstance, sharedConfiguration())
	fixture.executor.
		Respond(testApiSharedPathConstant, testCurrentCommitConstant+"\n", "rev-parse", "HEAD").
		Respond(testApiSharedPathConstant, "0\n", "rev-list", "--count").
		Respond(testWebSharedPathConstant, testCurrentCommitConstant+"\n", "rev-parse", "HEAD").
		Respond("", lsTree(testPreviousCommitConstant, testSharedNameConstant), "ls-tree").
		Respond("", gitrepotest.JoinLines("add retries", "fix parser", "bump version"), "log")

	report := fixture.coordinator.Synchronize(context.Background(), fixture.graph.SelectedReferences())

	outcome, found := report.Outcome(testSharedNameConstant)
	require.True(testInstance, found)
	require.NoError(testInstance, outcome.Failure)
	require.Equal(testInstance, testCurrentCommitConstant, outcome.Commit)
	require.Equal(testInstance, [][]string{
		{"fetch", "origin"},
		{"checkout", "develop"},
		{"merge", "--ff-only", testCurrentCommitConstant},
	}, fixture.executor.Arguments(testWebSharedPathConstant))

	for _, project := range fixture.graph.Projects {
		result := fixture.stager.Stage(context.Background(), project, report)
		require.Equal(testInstance, testExpectedMessageConstant, result.Message)
	}

	require.Equal(testInstance, 1, fixture.executor.Count("", "pull"))
	require.Equal(testInstance, 1, fixture.executor.Count(testApiSharedPathConstant, "pull", "--no-rebase", "--ff", "origin", "develop"))
	require.Zero(testInstance, fixture.executor.Count("", "push"))
	require.Zero(testInstance, fixture.script.AskedCount(testPushSubmoduleKeyConstant))
}

func TestSharedSubmodulePushIsOfferedOnce(testInstance *testing.T) {
	testCases := []struct {
		name                string
		confirmPush         bool
		expectedPushes      int
		expectedFetchSource string
	}{
		{name: "pushed_commit_is_fetched_from_remote", confirmPush: true, expectedPushes: 1, expectedFetchSource: "origin"},
		{name: "unpublished_commit_is_fetched_from_primary", confirmPush: false, expectedPushes: 0, expectedFetchSource: testApiSharedPathConstant},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newSubmodulesFixture(testInstance, sharedConfiguration())
			fixture.executor.
				Respond(testApiSharedPathConstant, testCurrentCommitConstant+"\n", "rev-parse", "HEAD").
				Respond(testApiSharedPathConstant, "2\n", "rev-list", "--count")
			fixture.script.WithConfirm(testPushSubmoduleKeyConstant, testSharedNameConstant, testCase.confirmPush)

			report := fixture.coordinator.Synchronize(context.Background(), fixture.graph.SelectedReferences())

			outcome, _ := report.Outcome(testSharedNameConstant)
			require.Equal(testInstance, 2, outcome.Ahead)
			require.Equal(testInstance, testCase.confirmPush, outcome.Pushed)
			require.Equal(testInstance, testCase.expectedPushes, fixture.executor.Count(testApiSharedPathConstant, "push", "origin", "develop"))
			require.Equal(testInstance, 1, fixture.script.AskedCount(testPushSubmoduleKeyConstant))
			require.Equal(testInstance, 1, fixture.executor.Count(testWebSharedPathConstant, "fetch", testCase.expectedFetchSource))
		})
	}
}

func TestSharedSubmoduleFailureDisablesEveryReference(testInstance *testing.T) {
	fixture := newSubmodulesFixture(testInstance, sharedConfiguration())
	fixture.executor.Fail(testApiSharedPathConstant, nil, "pull")

	report := fixture.coordinator.Synchronize(context.Background(), fixture.graph.SelectedReferences())

	for _, project := range fixture.graph.Projects {
		result := fixture.stager.Stage(context.Background(), project, report)
		require.Equal(testInstance, "0 of 1 submodules staged", result.Summary())
		require.ErrorIs(testInstance, result.Skipped[0].Reason, repoerrors.ErrSubmoduleUpdate)
	}

	require.Equal(testInstance, 1, fixture.executor.Count("", "pull"))
	require.Empty(testInstance, fixture.executor.Arguments(testWebSharedPathConstant))
	failureLogs := fixture.logs.FilterMessage("Submodule update failed; staging is disabled for every project referencing it").All()
	require.Len(testInstance, failureLogs, 1)
	require.Equal(testInstance, "api, web", failureLogs[0].ContextMap()["projects"])
}

func TestReferenceAlignmentFailureOnlyAffectsThatProject(testInstance *testing.T) {
	fixture := newSubmodulesFixture(testInstance, sharedConfiguration())
	fixture.executor.
		Respond(testApiSharedPathConstant, testCurrentCommitConstant+"\n", "rev-parse", "HEAD").
		Respond(testApiSharedPathConstant, "0\n", "rev-list", "--count").
		Respond(testApiPathConstant, lsTree(testPreviousCommitConstant, testSharedNameConstant), "ls-tree").
		Respond(testApiSharedPathConstant, gitrepotest.JoinLines("add retries"), "log").
		Fail(testWebSharedPathConstant, nil, "merge")

	report := fixture.coordinator.Synchronize(context.Background(), fixture.graph.SelectedReferences())

	api, _ := fixture.graph.Project("api")
	web, _ := fixture.graph.Project("web")
	require.Equal(testInstance, "1 of 1 submodules staged", fixture.stager.Stage(context.Background(), api, report).Summary())

	webResult := fixture.stager.Stage(context.Background(), web, report)
	require.Equal(testInstance, "0 of 1 submodules staged", webResult.Summary())
	require.ErrorIs(testInstance, webResult.Skipped[0].Reason, repoerrors.ErrSubmoduleUpdate)
}

func TestSharedSubmoduleWithLocalCommitsMergesRemoteOnce(testInstance *testing.T) {
	testCases := []struct {
		name       string
		pullRebase string
	}{
		{name: "pull_rebase_unset"},
		{name: "pull_rebase_enabled", pullRebase: "true"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			sandbox := gitrepotest.NewSandbox(testInstance)
			remotePath := sandbox.CreateRemote(testSharedNameConstant, "develop")
			apiSharedPath := sandbox.Clone(remotePath, "api", testSharedNameConstant)
			webSharedPath := sandbox.Clone(remotePath, "web", testSharedNameConstant)
			if len(testCase.pullRebase) > 0 {
				sandbox.Git(apiSharedPath, "config", "pull.rebase", testCase.pullRebase)
			}

			localCommit := sandbox.Commit(apiSharedPath, "local fix")
			remoteCommit := sandbox.Publish(remotePath, "develop", "add retries", "fix parser", "bump version")

			repositoryManager, managerError := gitrepo.NewRepositoryManager(sandbox.Executor)
			require.NoError(testInstance, managerError)
			script := decisions.NewScript().WithConfirm(testPushSubmoduleKeyConstant, testSharedNameConstant, false)
			coordinator, coordinatorError := submodules.NewCoordinator(submodules.Dependencies{RepositoryManager: repositoryManager, Decisions: script}, 2)
			require.NoError(testInstance, coordinatorError)

			configuration := sharedConfiguration()
			configuration.Projects[0].Path = sandbox.Path("api")
			configuration.Projects[1].Path = sandbox.Path("web")
			repositoryGraph := graph.Build(configuration)
			for _, project := range repositoryGraph.Projects {
				project.SelectSubmodules(project.SubmoduleNames())
			}

			report := coordinator.Synchronize(context.Background(), repositoryGraph.SelectedReferences())

			outcome, found := report.Outcome(testSharedNameConstant)
			require.True(testInstance, found)
			require.NoError(testInstance, outcome.Failure)
			require.Equal(testInstance, sandbox.Head(apiSharedPath), outcome.Commit)
			require.Equal(testInstance, []string{localCommit, remoteCommit}, sandbox.Parents(apiSharedPath, outcome.Commit))
			require.Equal(testInstance, 2, outcome.Ahead)
			require.False(testInstance, outcome.Pushed)

			for _, reference := range repositoryGraph.SelectedReferences() {
				require.NoError(testInstance, report.ReferenceFailure(reference))
			}
			require.Equal(testInstance, outcome.Commit, sandbox.Head(webSharedPath))
			require.Equal(testInstance, 1, script.AskedCount(testPushSubmoduleKeyConstant))
		})
	}
}

type cancellingGitExecutor struct {
	*gitrepotest.ScriptedGitExecutor
	cancel context.CancelFunc
}

func (executor cancellingGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	result, executionError := executor.ScriptedGitExecutor.ExecuteGit(executionContext, details)
	if len(details.Arguments) > 0 && details.Arguments[0] == "pull" {
		executor.cancel()
		return execshell.ExecutionResult{}, context.Canceled
	}
	return result, executionError
}

func TestSynchronizeStopsQueuedPullsWhenCancelled(testInstance *testing.T) {
	executionContext, cancel := context.WithCancel(context.Background())
	defer cancel()
	executor := cancellingGitExecutor{ScriptedGitExecutor: gitrepotest.NewScriptedGitExecutor(), cancel: cancel}
	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, managerError)
	coordinator, coordinatorError := submodules.NewCoordinator(submodules.Dependencies{RepositoryManager: repositoryManager, Decisions: decisions.NewScript()}, 1)
	require.NoError(testInstance, coordinatorError)

	repositoryGraph := graph.Build(singleProjectConfiguration(testSharedNameConstant, testProtoNameConstant))
	repositoryGraph.Projects[0].SelectSubmodules(repositoryGraph.Projects[0].SubmoduleNames())

	report := coordinator.Synchronize(executionContext, repositoryGraph.SelectedReferences())

	require.Equal(testInstance, 1, executor.Count("", "pull"))
	for _, name := range []string{testSharedNameConstant, testProtoNameConstant} {
		outcome, found := report.Outcome(name)
		require.True(testInstance, found)
		require.ErrorIs(testInstance, outcome.Failure, repoerrors.ErrSubmoduleUpdate)
		require.ErrorIs(testInstance, outcome.Failure, context.Canceled)
	}
}

func TestSynchronizeWithCancelledContextRunsNoGit(testInstance *testing.T) {
	fixture := newSubmodulesFixture(testInstance, sharedConfiguration())
	executionContext, cancel := context.WithCancel(context.Background())
	cancel()

	report := fixture.coordinator.Synchronize(executionContext, fixture.graph.SelectedReferences())

	outcome, found := report.Outcome(testSharedNameConstant)
	require.True(testInstance, found)
	require.ErrorIs(testInstance, outcome.Failure, context.Canceled)
	require.Empty(testInstance, fixture.executor.Executed())
	require.Len(testInstance, fixture.logs.FilterMessage("Submodule update cancelled before it started").All(), 1)
}
