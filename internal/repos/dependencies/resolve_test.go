package dependencies_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/temirov/gitcaptain/internal/gitrepo"
	"github.com/temirov/gitcaptain/internal/gitrepo/gitrepotest"
	"github.com/temirov/gitcaptain/internal/repos/dependencies"
	"github.com/temirov/gitcaptain/internal/repos/filesystem"
	"github.com/temirov/gitcaptain/internal/repos/shared"
)

func TestResolversKeepInjectedCollaborators(testInstance *testing.T) {
	executor := gitrepotest.NewScriptedGitExecutor()
	resolvedExecutor, executorError := dependencies.ResolveGitExecutor(executor, zaptest.NewLogger(testInstance))
	require.NoError(testInstance, executorError)
	require.Same(testInstance, executor, resolvedExecutor)

	manager, managerError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, managerError)
	resolvedManager, resolveError := dependencies.ResolveGitRepositoryManager(manager, executor)
	require.NoError(testInstance, resolveError)
	require.Same(testInstance, manager, resolvedManager)
}

func TestResolversBuildDefaults(testInstance *testing.T) {
	require.Equal(testInstance, filesystem.OSFileSystem{}, dependencies.ResolveFileSystem(nil))
	require.Equal(testInstance, shared.SystemClock{}, dependencies.ResolveClock(nil))

	executor, executorError := dependencies.ResolveGitExecutor(nil, zaptest.NewLogger(testInstance))
	require.NoError(testInstance, executorError)
	require.NotNil(testInstance, executor)

	manager, managerError := dependencies.ResolveGitRepositoryManager(nil, executor)
	require.NoError(testInstance, managerError)
	require.NotNil(testInstance, manager)
}
