// Package dependencies supplies default collaborators when callers do not inject their own.
package dependencies

import (
	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/execshell"
	"github.com/temirov/gitcaptain/internal/gitrepo"
	"github.com/temirov/gitcaptain/internal/repos/filesystem"
	"github.com/temirov/gitcaptain/internal/repos/shared"
)

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing shared.FileSystem) shared.FileSystem {
	if existing != nil {
		return existing
	}
	return filesystem.OSFileSystem{}
}

// ResolveGitExecutor returns the provided executor or constructs a shell-backed default.
func ResolveGitExecutor(existing shared.GitExecutor, logger *zap.Logger, options ...execshell.ShellExecutorOption) (shared.GitExecutor, error) {
	if existing != nil {
		return existing, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	shellExecutor, creationError := execshell.NewShellExecutor(logger, commandRunner, options...)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}

// ResolveGitRepositoryManager returns the provided repository manager or constructs one from the executor.
func ResolveGitRepositoryManager(existing shared.GitRepositoryManager, executor shared.GitExecutor) (shared.GitRepositoryManager, error) {
	if existing != nil {
		return existing, nil
	}
	return gitrepo.NewRepositoryManager(executor)
}

// ResolveClock returns the provided clock or the system clock.
func ResolveClock(existing shared.Clock) shared.Clock {
	if existing != nil {
		return existing
	}
	return shared.SystemClock{}
}
