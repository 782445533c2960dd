package shared

import (
	"context"
	"io/fs"
	"time"

	"github.com/temirov/gitcaptain/internal/execshell"
)

const (
	// DefaultRemoteNameConstant is the remote assumed when configuration omits one.
	DefaultRemoteNameConstant = "origin"
	// GitTerminalPromptEnvironmentNameConstant disables interactive credential prompts in git subprocesses.
	GitTerminalPromptEnvironmentNameConstant = "GIT_TERMINAL_PROMPT"
	// GitTerminalPromptDisabledValueConstant is the value that disables git terminal prompts.
	GitTerminalPromptDisabledValueConstant = "0"
)

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FileSystem exposes the filesystem operations used for project paths and configuration files.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	// WriteFile replaces path so readers never observe a partially written file.
	WriteFile(path string, data []byte, permissions fs.FileMode) error
}

// GitExecutor exposes the subset of shell execution used by repository services.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RemoteDescriptor describes one configured git remote.
type RemoteDescriptor struct {
	Name     string
	FetchURL string
	PushURL  string
}

// GitRepositoryManager exposes the repository-level git operations the link workflow relies on.
type GitRepositoryManager interface {
	LocalBranches(executionContext context.Context, repositoryPath string) ([]string, error)
	CurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
	Checkout(executionContext context.Context, repositoryPath string, reference string) error
	CreateBranch(executionContext context.Context, repositoryPath string, branchName string) error
	Pull(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error
	Push(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error
	Fetch(executionContext context.Context, repositoryPath string, remoteName string) error
	MergeFastForward(executionContext context.Context, repositoryPath string, revision string) error
	Add(executionContext context.Context, repositoryPath string, target string) error
	Commit(executionContext context.Context, repositoryPath string, message string) error
	CommitSummaries(executionContext context.Context, repositoryPath string, fromRevision string, toRevision string) ([]string, error)
	ResolveRevision(executionContext context.Context, repositoryPath string, revision string) (string, error)
	PinnedCommit(executionContext context.Context, repositoryPath string, submodulePath string) (string, error)
	CountCommitsAhead(executionContext context.Context, repositoryPath string, remoteName string, branchName string) (int, error)
	Remotes(executionContext context.Context, repositoryPath string) ([]RemoteDescriptor, error)
	SetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string, remoteURL string) error
}
