package gitrepo

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"go.uber.org/zap"
)

const (
	repositoryOpenFailedMessageConstant     = "failed to open repository"
	repositoryHeadFailedMessageConstant     = "failed to resolve repository head"
	repositoryWorktreeFailedMessageConstant = "failed to read repository worktree"
	pinnedCommitFailedMessageConstant       = "failed to read pinned submodule commit"
	submoduleEntryTemplateConstant          = "%w: %s is not a submodule entry"
	wrappedInspectorErrorTemplateConstant   = "%w: %w"
	shortHashLengthConstant                 = 7
	inspectingRepositoryLogMessageConstant  = "inspecting repository"
	repositoryPathLogFieldConstant          = "repository_path"
)

// ErrRepositoryOpenFailed indicates the path is not a readable git repository.
var ErrRepositoryOpenFailed = errors.New(repositoryOpenFailedMessageConstant)

// ErrRepositoryHeadFailed indicates HEAD could not be resolved.
var ErrRepositoryHeadFailed = errors.New(repositoryHeadFailedMessageConstant)

// ErrRepositoryWorktreeFailed indicates the worktree status could not be computed.
var ErrRepositoryWorktreeFailed = errors.New(repositoryWorktreeFailedMessageConstant)

// RepositoryStatus summarizes the state of a working tree.
type RepositoryStatus struct {
	Branch   string
	Detached bool
	Head     string
	Clean    bool
}

// ShortHead returns the abbreviated HEAD commit.
func (status RepositoryStatus) ShortHead() string {
	if len(status.Head) <= shortHashLengthConstant {
		return status.Head
	}
	return status.Head[:shortHashLengthConstant]
}

// ErrPinnedCommitFailed indicates the submodule entry could not be read from the HEAD tree.
var ErrPinnedCommitFailed = errors.New(pinnedCommitFailedMessageConstant)

// Inspector reads repository state in-process without spawning git.
type Inspector struct {
	logger *zap.Logger
}

// NewInspector constructs an Inspector.
func NewInspector(logger *zap.Logger) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{logger: logger}
}

// Inspect reports the branch, HEAD commit and cleanliness of the repository at the path.
func (inspector *Inspector) Inspect(repositoryPath string) (RepositoryStatus, error) {
	inspector.logger.Debug(inspectingRepositoryLogMessageConstant, zap.String(repositoryPathLogFieldConstant, repositoryPath))

	repository, openError := git.PlainOpen(repositoryPath)
	if openError != nil {
		return RepositoryStatus{}, fmt.Errorf(wrappedInspectorErrorTemplateConstant, ErrRepositoryOpenFailed, openError)
	}

	head, headError := repository.Head()
	if headError != nil {
		return RepositoryStatus{}, fmt.Errorf(wrappedInspectorErrorTemplateConstant, ErrRepositoryHeadFailed, headError)
	}

	status := RepositoryStatus{Head: head.Hash().String()}
	if head.Name() == plumbing.HEAD {
		status.Detached = true
	} else {
		status.Branch = head.Name().Short()
	}

	worktree, worktreeError := repository.Worktree()
	if worktreeError != nil {
		return RepositoryStatus{}, fmt.Errorf(wrappedInspectorErrorTemplateConstant, ErrRepositoryWorktreeFailed, worktreeError)
	}
	worktreeStatus, statusError := worktree.Status()
	if statusError != nil {
		return RepositoryStatus{}, fmt.Errorf(wrappedInspectorErrorTemplateConstant, ErrRepositoryWorktreeFailed, statusError)
	}
	status.Clean = worktreeStatus.IsClean()

	return status, nil
}

// PinnedCommit returns the commit the HEAD tree of the repository records for the submodule path.
func (inspector *Inspector) PinnedCommit(repositoryPath string, submodulePath string) (string, error) {
	repository, openError := git.PlainOpen(repositoryPath)
	if openError != nil {
		return "", fmt.Errorf(wrappedInspectorErrorTemplateConstant, ErrRepositoryOpenFailed, openError)
	}
	head, headError := repository.Head()
	if headError != nil {
		return "", fmt.Errorf(wrappedInspectorErrorTemplateConstant, ErrRepositoryHeadFailed, headError)
	}
	commit, commitError := repository.CommitObject(head.Hash())
	if commitError != nil {
		return "", fmt.Errorf(wrappedInspectorErrorTemplateConstant, ErrPinnedCommitFailed, commitError)
	}
	tree, treeError := commit.Tree()
	if treeError != nil {
		return "", fmt.Errorf(wrappedInspectorErrorTemplateConstant, ErrPinnedCommitFailed, treeError)
	}
	entry, entryError := tree.FindEntry(submodulePath)
	if entryError != nil {
		return "", fmt.Errorf(wrappedInspectorErrorTemplateConstant, ErrPinnedCommitFailed, entryError)
	}
	if entry.Mode != filemode.Submodule {
		return "", fmt.Errorf(submoduleEntryTemplateConstant, ErrPinnedCommitFailed, submodulePath)
	}
	return entry.Hash.String(), nil
}
