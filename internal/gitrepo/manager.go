package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/temirov/gitcaptain/internal/execshell"
	"github.com/temirov/gitcaptain/internal/repos/shared"
)

const (
	gitExecutorNotConfiguredMessageConstant = "git executor not configured"
	unexpectedOutputMessageConstant         = "unexpected git output"
	unexpectedOutputTemplateConstant        = "%w: %s: %q"
	revisionRangeTemplateConstant           = "%s..%s"
	remoteBranchTemplateConstant            = "%s/%s"
	gitCheckoutCommandConstant              = "checkout"
	gitCreateBranchFlagConstant             = "-b"
	gitPullCommandConstant                  = "pull"
	gitNoRebaseFlagConstant                 = "--no-rebase"
	gitFastForwardFlagConstant              = "--ff"
	gitPushCommandConstant                  = "push"
	gitFetchCommandConstant                 = "fetch"
	gitMergeCommandConstant                 = "merge"
	gitFastForwardOnlyFlagConstant          = "--ff-only"
	gitAddCommandConstant                   = "add"
	gitCommitCommandConstant                = "commit"
	gitMessageFlagConstant                  = "-m"
	gitLogCommandConstant                   = "log"
	gitSubjectFormatFlagConstant            = "--format=%s"
	gitReverseFlagConstant                  = "--reverse"
	gitRevParseCommandConstant              = "rev-parse"
	gitAbbrevRefFlagConstant                = "--abbrev-ref"
	gitHeadReferenceConstant                = "HEAD"
	gitLsTreeCommandConstant                = "ls-tree"
	gitRevListCommandConstant               = "rev-list"
	gitCountFlagConstant                    = "--count"
	gitBranchCommandConstant                = "branch"
	gitShortRefFormatFlagConstant           = "--format=%(refname:short)"
	gitRemoteCommandConstant                = "remote"
	gitVerboseFlagConstant                  = "-v"
	gitSetURLCommandConstant                = "set-url"
	remoteFetchRoleConstant                 = "(fetch)"
	remotePushRoleConstant                  = "(push)"
	lsTreeObjectFieldIndexConstant          = 2
	remoteListingFieldCountConstant         = 3
)

// ErrGitExecutorNotConfigured indicates the manager was constructed without an executor.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorNotConfiguredMessageConstant)

// ErrUnexpectedGitOutput indicates git produced output that could not be interpreted.
var ErrUnexpectedGitOutput = errors.New(unexpectedOutputMessageConstant)

// RepositoryManager implements shared.GitRepositoryManager on top of the git CLI.
type RepositoryManager struct {
	executor shared.GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager.
func NewRepositoryManager(executor shared.GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// LocalBranches lists the short names of local branches.
func (manager *RepositoryManager) LocalBranches(executionContext context.Context, repositoryPath string) ([]string, error) {
	output, executionError := manager.run(executionContext, repositoryPath, gitBranchCommandConstant, gitShortRefFormatFlagConstant)
	if executionError != nil {
		return nil, executionError
	}
	return splitNonEmptyLines(output), nil
}

// CurrentBranch returns the checked out branch name.
func (manager *RepositoryManager) CurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	output, executionError := manager.run(executionContext, repositoryPath, gitRevParseCommandConstant, gitAbbrevRefFlagConstant, gitHeadReferenceConstant)
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(output), nil
}

// Checkout switches the working tree to the reference.
func (manager *RepositoryManager) Checkout(executionContext context.Context, repositoryPath string, reference string) error {
	_, executionError := manager.run(executionContext, repositoryPath, gitCheckoutCommandConstant, reference)
	return executionError
}

// CreateBranch creates and checks out a branch at the current HEAD.
func (manager *RepositoryManager) CreateBranch(executionContext context.Context, repositoryPath string, branchName string) error {
	_, executionError := manager.run(executionContext, repositoryPath, gitCheckoutCommandConstant, gitCreateBranchFlagConstant, branchName)
	return executionError
}

// Pull merges the remote branch into the checked out branch, fast-forwarding when possible, regardless of
// the pull.rebase and pull.ff settings.
func (manager *RepositoryManager) Pull(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error {
	_, executionError := manager.run(executionContext, repositoryPath, gitPullCommandConstant, gitNoRebaseFlagConstant, gitFastForwardFlagConstant, remoteName, branchName)
	return executionError
}

// Push publishes the branch to the remote.
func (manager *RepositoryManager) Push(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error {
	_, executionError := manager.run(executionContext, repositoryPath, gitPushCommandConstant, remoteName, branchName)
	return executionError
}

// Fetch refreshes remote-tracking references.
func (manager *RepositoryManager) Fetch(executionContext context.Context, repositoryPath string, remoteName string) error {
	_, executionError := manager.run(executionContext, repositoryPath, gitFetchCommandConstant, remoteName)
	return executionError
}

// MergeFastForward advances the checked out branch to the revision without creating merge commits.
func (manager *RepositoryManager) MergeFastForward(executionContext context.Context, repositoryPath string, revision string) error {
	_, executionError := manager.run(executionContext, repositoryPath, gitMergeCommandConstant, gitFastForwardOnlyFlagConstant, revision)
	return executionError
}

// Add stages the target path.
func (manager *RepositoryManager) Add(executionContext context.Context, repositoryPath string, target string) error {
	_, executionError := manager.run(executionContext, repositoryPath, gitAddCommandConstant, target)
	return executionError
}

// Commit records staged changes with the message.
func (manager *RepositoryManager) Commit(executionContext context.Context, repositoryPath string, message string) error {
	_, executionError := manager.run(executionContext, repositoryPath, gitCommitCommandConstant, gitMessageFlagConstant, message)
	return executionError
}

// CommitSummaries returns commit subjects reachable from toRevision but not fromRevision, oldest first.
func (manager *RepositoryManager) CommitSummaries(executionContext context.Context, repositoryPath string, fromRevision string, toRevision string) ([]string, error) {
	revisionRange := fmt.Sprintf(revisionRangeTemplateConstant, fromRevision, toRevision)
	output, executionError := manager.run(executionContext, repositoryPath, gitLogCommandConstant, gitSubjectFormatFlagConstant, gitReverseFlagConstant, revisionRange)
	if executionError != nil {
		return nil, executionError
	}
	return splitNonEmptyLines(output), nil
}

// ResolveRevision returns the full commit hash of the revision.
func (manager *RepositoryManager) ResolveRevision(executionContext context.Context, repositoryPath string, revision string) (string, error) {
	output, executionError := manager.run(executionContext, repositoryPath, gitRevParseCommandConstant, revision)
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(output), nil
}

// PinnedCommit returns the commit the parent's HEAD tree records for the submodule path.
func (manager *RepositoryManager) PinnedCommit(executionContext context.Context, repositoryPath string, submodulePath string) (string, error) {
	output, executionError := manager.run(executionContext, repositoryPath, gitLsTreeCommandConstant, gitHeadReferenceConstant, submodulePath)
	if executionError != nil {
		return "", executionError
	}
	fields := strings.Fields(output)
	if len(fields) <= lsTreeObjectFieldIndexConstant {
		return "", fmt.Errorf(unexpectedOutputTemplateConstant, ErrUnexpectedGitOutput, gitLsTreeCommandConstant, output)
	}
	return fields[lsTreeObjectFieldIndexConstant], nil
}

// CountCommitsAhead counts local commits missing from remote/branch.
func (manager *RepositoryManager) CountCommitsAhead(executionContext context.Context, repositoryPath string, remoteName string, branchName string) (int, error) {
	remoteBranch := fmt.Sprintf(remoteBranchTemplateConstant, remoteName, branchName)
	revisionRange := fmt.Sprintf(revisionRangeTemplateConstant, remoteBranch, gitHeadReferenceConstant)
	output, executionError := manager.run(executionContext, repositoryPath, gitRevListCommandConstant, gitCountFlagConstant, revisionRange)
	if executionError != nil {
		return 0, executionError
	}
	count, parseError := strconv.Atoi(strings.TrimSpace(output))
	if parseError != nil {
		return 0, fmt.Errorf(unexpectedOutputTemplateConstant, ErrUnexpectedGitOutput, gitRevListCommandConstant, output)
	}
	return count, nil
}

// Remotes lists configured remotes with their fetch and push URLs.
func (manager *RepositoryManager) Remotes(executionContext context.Context, repositoryPath string) ([]shared.RemoteDescriptor, error) {
	output, executionError := manager.run(executionContext, repositoryPath, gitRemoteCommandConstant, gitVerboseFlagConstant)
	if executionError != nil {
		return nil, executionError
	}

	descriptors := []shared.RemoteDescriptor{}
	indexByName := map[string]int{}
	for _, line := range splitNonEmptyLines(output) {
		fields := strings.Fields(line)
		if len(fields) < remoteListingFieldCountConstant {
			continue
		}
		name := fields[0]
		index, known := indexByName[name]
		if !known {
			descriptors = append(descriptors, shared.RemoteDescriptor{Name: name})
			index = len(descriptors) - 1
			indexByName[name] = index
		}
		switch fields[2] {
		case remoteFetchRoleConstant:
			descriptors[index].FetchURL = fields[1]
		case remotePushRoleConstant:
			descriptors[index].PushURL = fields[1]
		}
	}
	return descriptors, nil
}

// SetRemoteURL updates the URL of the named remote.
func (manager *RepositoryManager) SetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string, remoteURL string) error {
	_, executionError := manager.run(executionContext, repositoryPath, gitRemoteCommandConstant, gitSetURLCommandConstant, remoteName, remoteURL)
	return executionError
}

func (manager *RepositoryManager) run(executionContext context.Context, repositoryPath string, arguments ...string) (string, error) {
	result, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
		EnvironmentVariables: map[string]string{
			shared.GitTerminalPromptEnvironmentNameConstant: shared.GitTerminalPromptDisabledValueConstant,
		},
	})
	if executionError != nil {
		return "", executionError
	}
	return result.StandardOutput, nil
}

func splitNonEmptyLines(output string) []string {
	lines := []string{}
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 0 {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
