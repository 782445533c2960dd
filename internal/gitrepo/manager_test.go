package gitrepo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitcaptain/internal/execshell"
	"github.com/temirov/gitcaptain/internal/gitrepo"
	"github.com/temirov/gitcaptain/internal/gitrepo/gitrepotest"
	"github.com/temirov/gitcaptain/internal/repos/shared"
)

const (
	testRepositoryPathConstant = "/workspace/project"
	testRemoteNameConstant     = "origin"
	testBaseBranchConstant     = "main"
	testSubmodulePathConstant  = "lib"
	testPinnedCommitConstant   = "4f1c2d3e4f1c2d3e4f1c2d3e4f1c2d3e4f1c2d3e"
)

func TestNewRepositoryManagerRequiresExecutor(testInstance *testing.T) {
	manager, creationError := gitrepo.NewRepositoryManager(nil)
	require.ErrorIs(testInstance, creationError, gitrepo.ErrGitExecutorNotConfigured)
	require.Nil(testInstance, manager)
}

func TestRepositoryManagerIssuesGitCommands(testInstance *testing.T) {
	testCases := []struct {
		name              string
		invoke            func(manager *gitrepo.RepositoryManager) error
		expectedArguments []string
	}{
		{
			name: "checkout",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.Checkout(context.Background(), testRepositoryPathConstant, "origin/main")
			},
			expectedArguments: []string{"checkout", "origin/main"},
		},
		{
			name: "create_branch",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.CreateBranch(context.Background(), testRepositoryPathConstant, "feature/links")
			},
			expectedArguments: []string{"checkout", "-b", "feature/links"},
		},
		{
			name: "pull",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.Pull(context.Background(), testRepositoryPathConstant, testRemoteNameConstant, testBaseBranchConstant)
			},
			expectedArguments: []string{"pull", "--no-rebase", "--ff", "origin", "main"},
		},
		{
			name: "push",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.Push(context.Background(), testRepositoryPathConstant, testRemoteNameConstant, "feature/links")
			},
			expectedArguments: []string{"push", "origin", "feature/links"},
		},
		{
			name: "merge_fast_forward",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.MergeFastForward(context.Background(), testRepositoryPathConstant, testPinnedCommitConstant)
			},
			expectedArguments: []string{"merge", "--ff-only", testPinnedCommitConstant},
		},
		{
			name: "commit",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.Commit(context.Background(), testRepositoryPathConstant, "feat(submodules): update links")
			},
			expectedArguments: []string{"commit", "-m", "feat(submodules): update links"},
		},
		{
			name: "set_remote_url",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.SetRemoteURL(context.Background(), testRepositoryPathConstant, testRemoteNameConstant, "git@example.com:team/app.git")
			},
			expectedArguments: []string{"remote", "set-url", "origin", "git@example.com:team/app.git"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := gitrepotest.NewScriptedGitExecutor()
			manager, creationError := gitrepo.NewRepositoryManager(executor)
			require.NoError(testInstance, creationError)

			require.NoError(testInstance, testCase.invoke(manager))

			executed := executor.Executed()
			require.Len(testInstance, executed, 1)
			require.Equal(testInstance, testCase.expectedArguments, executed[0].Arguments)
			require.Equal(testInstance, testRepositoryPathConstant, executed[0].WorkingDirectory)
			require.Equal(testInstance, shared.GitTerminalPromptDisabledValueConstant, executed[0].EnvironmentVariables[shared.GitTerminalPromptEnvironmentNameConstant])
		})
	}
}

func TestRepositoryManagerParsesOutputs(testInstance *testing.T) {
	executor := gitrepotest.NewScriptedGitExecutor().
		Respond(testRepositoryPathConstant, gitrepotest.JoinLines("main", "feature/a", ""), "branch").
		Respond(testRepositoryPathConstant, "160000 commit "+testPinnedCommitConstant+"\tlib\n", "ls-tree").
		Respond(testRepositoryPathConstant, gitrepotest.JoinLines("first", "second"), "log").
		Respond(testRepositoryPathConstant, "3\n", "rev-list").
		Respond(testRepositoryPathConstant, "feature/a\n", "rev-parse", "--abbrev-ref").
		Respond(testRepositoryPathConstant, gitrepotest.JoinLines(
			"origin\tgit@example.com:team/app.git (fetch)",
			"origin\tgit@example.com:team/app.git (push)",
			"upstream\thttps://example.com/core/app.git (fetch)",
		), "remote", "-v")
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)
	executionContext := context.Background()

	branches, branchesError := manager.LocalBranches(executionContext, testRepositoryPathConstant)
	require.NoError(testInstance, branchesError)
	require.Equal(testInstance, []string{"main", "feature/a"}, branches)

	pinnedCommit, pinnedError := manager.PinnedCommit(executionContext, testRepositoryPathConstant, testSubmodulePathConstant)
	require.NoError(testInstance, pinnedError)
	require.Equal(testInstance, testPinnedCommitConstant, pinnedCommit)

	summaries, summariesError := manager.CommitSummaries(executionContext, testRepositoryPathConstant, "a1", "b2")
	require.NoError(testInstance, summariesError)
	require.Equal(testInstance, []string{"first", "second"}, summaries)

	ahead, aheadError := manager.CountCommitsAhead(executionContext, testRepositoryPathConstant, testRemoteNameConstant, testBaseBranchConstant)
	require.NoError(testInstance, aheadError)
	require.Equal(testInstance, 3, ahead)

	currentBranch, currentError := manager.CurrentBranch(executionContext, testRepositoryPathConstant)
	require.NoError(testInstance, currentError)
	require.Equal(testInstance, "feature/a", currentBranch)

	remotes, remotesError := manager.Remotes(executionContext, testRepositoryPathConstant)
	require.NoError(testInstance, remotesError)
	require.Equal(testInstance, []shared.RemoteDescriptor{
		{Name: "origin", FetchURL: "git@example.com:team/app.git", PushURL: "git@example.com:team/app.git"},
		{Name: "upstream", FetchURL: "https://example.com/core/app.git"},
	}, remotes)

	require.Equal(testInstance, []string{"log", "--format=%s", "--reverse", "a1..b2"}, executor.Arguments(testRepositoryPathConstant)[2])
	require.Equal(testInstance, []string{"rev-list", "--count", "origin/main..HEAD"}, executor.Arguments(testRepositoryPathConstant)[3])
}

func TestRepositoryManagerRejectsUnexpectedOutput(testInstance *testing.T) {
	executor := gitrepotest.NewScriptedGitExecutor().
		Respond(testRepositoryPathConstant, "", "ls-tree").
		Respond(testRepositoryPathConstant, "many\n", "rev-list")
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)

	_, pinnedError := manager.PinnedCommit(context.Background(), testRepositoryPathConstant, testSubmodulePathConstant)
	require.ErrorIs(testInstance, pinnedError, gitrepo.ErrUnexpectedGitOutput)

	_, aheadError := manager.CountCommitsAhead(context.Background(), testRepositoryPathConstant, testRemoteNameConstant, testBaseBranchConstant)
	require.ErrorIs(testInstance, aheadError, gitrepo.ErrUnexpectedGitOutput)
}

func TestRepositoryManagerPropagatesCommandFailures(testInstance *testing.T) {
	executor := gitrepotest.NewScriptedGitExecutor().Fail(testRepositoryPathConstant, nil, "pull")
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)

	pullError := manager.Pull(context.Background(), testRepositoryPathConstant, testRemoteNameConstant, testBaseBranchConstant)
	require.Error(testInstance, pullError)
	require.IsType(testInstance, execshell.CommandFailedError{}, pullError)
}

func TestRepositoryManagerPullMergesDivergentFeatureBranch(testInstance *testing.T) {
	testCases := []struct {
		name            string
		pullRebase      string
		pullFastForward string
	}{
		{name: "pull_rebase_unset"},
		{name: "pull_rebase_enabled", pullRebase: "true"},
		{name: "pull_fast_forward_only", pullFastForward: "only"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			sandbox := gitrepotest.NewSandbox(testInstance)
			remotePath := sandbox.CreateRemote("api", testBaseBranchConstant)
			projectPath := sandbox.Clone(remotePath, "api")
			if len(testCase.pullRebase) > 0 {
				sandbox.Git(projectPath, "config", "pull.rebase", testCase.pullRebase)
			}
			if len(testCase.pullFastForward) > 0 {
				sandbox.Git(projectPath, "config", "pull.ff", testCase.pullFastForward)
			}

			sandbox.Git(projectPath, "checkout", "-b", "feature/links")
			featureCommit := sandbox.Commit(projectPath, "feature work")
			baseCommit := sandbox.Publish(remotePath, testBaseBranchConstant, "base one", "base two")

			manager, creationError := gitrepo.NewRepositoryManager(sandbox.Executor)
			require.NoError(testInstance, creationError)

			pullError := manager.Pull(context.Background(), projectPath, testRemoteNameConstant, testBaseBranchConstant)
			require.NoError(testInstance, pullError)

			mergeCommit := sandbox.Head(projectPath)
			require.Equal(testInstance, []string{featureCommit, baseCommit}, sandbox.Parents(projectPath, mergeCommit))
			require.Equal(testInstance, "feature/links", sandbox.Git(projectPath, "rev-parse", "--abbrev-ref", "HEAD"))
		})
	}
}

func TestRepositoryManagerPullFastForwardsWithoutLocalCommits(testInstance *testing.T) {
	sandbox := gitrepotest.NewSandbox(testInstance)
	remotePath := sandbox.CreateRemote("shared", "develop")
	submodulePath := sandbox.Clone(remotePath, "api", "shared")
	publishedCommit := sandbox.Publish(remotePath, "develop", "add retries")

	manager, creationError := gitrepo.NewRepositoryManager(sandbox.Executor)
	require.NoError(testInstance, creationError)

	require.NoError(testInstance, manager.Pull(context.Background(), submodulePath, testRemoteNameConstant, "develop"))
	require.Equal(testInstance, publishedCommit, sandbox.Head(submodulePath))
}
