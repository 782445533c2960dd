// Package lifecycle settles the feature branch of each project: it checks the working path and the base
// branch, then creates, selects or keeps a branch according to the chosen policy.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/decisions"
	"github.com/temirov/gitcaptain/internal/graph"
	repoerrors "github.com/temirov/gitcaptain/internal/repos/errors"
	"github.com/temirov/gitcaptain/internal/repos/shared"
)

// Policy selects how the feature branch is obtained.
type Policy string

const (
	PolicyCreate      Policy = "create"
	PolicySelect      Policy = "select"
	PolicyKeepCurrent Policy = "keep-current"
)

const (
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	fileSystemMissingMessageConstant        = "filesystem not configured"
	decisionProviderMissingMessageConstant  = "decision provider not configured"
	unknownPolicyMessageConstant            = "unknown branch policy"
	noCandidateBranchesMessageConstant      = "no local branches besides the base branch"
	detachedHeadMessageConstant             = "no branch is checked out (detached HEAD)"
	detachedHeadNameConstant                = "HEAD"
	baseBranchAbsentTemplateConstant        = "branch %q does not exist locally"
	duplicateBranchTemplateConstant         = "branch %q already exists"
	unknownPolicyTemplateConstant           = "%w: %q"
	remoteBranchTemplateConstant            = "%s/%s"
	branchNamePromptConstant                = "New feature branch name"
	existingBranchPromptConstant            = "Select the feature branch"
	branchPolicyPromptConstant              = "How should the feature branch be obtained?"
	createPolicyLabelConstant               = "Create a new branch from the remote base branch"
	selectPolicyLabelConstant               = "Select an existing local branch"
	keepCurrentPolicyLabelConstant          = "Keep the currently checked out branch"
	branchResolvedMessageConstant           = "Feature branch resolved"
	branchResolutionFailedMessageConstant   = "Feature branch resolution failed"
	branchRecoveryFailedMessageConstant     = "Could not return to the base branch after a failed branch creation"
	presetBranchRetryMessageConstant        = "Preset feature branch could not be used, asking for a new branch"
	logFieldProjectConstant                 = "project"
	logFieldBranchConstant                  = "branch"
	logFieldOriginConstant                  = "origin"
	logFieldBaseBranchConstant              = "base_branch"
)

var (
	// ErrRepositoryManagerNotConfigured indicates the manager was constructed without git access.
	ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)
	// ErrFileSystemNotConfigured indicates the manager was constructed without filesystem access.
	ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)
	// ErrDecisionProviderNotConfigured indicates the manager was constructed without a decision provider.
	ErrDecisionProviderNotConfigured = errors.New(decisionProviderMissingMessageConstant)
	// ErrUnknownPolicy indicates an unsupported policy value.
	ErrUnknownPolicy = errors.New(unknownPolicyMessageConstant)
	// ErrNoCandidateBranches indicates the select policy found nothing to choose from.
	ErrNoCandidateBranches = errors.New(noCandidateBranchesMessageConstant)
	// ErrDetachedHead indicates keep-current found no checked out branch.
	ErrDetachedHead = errors.New(detachedHeadMessageConstant)
)

// Dependencies enumerates the collaborators of the Manager.
type Dependencies struct {
	RepositoryManager shared.GitRepositoryManager
	FileSystem        shared.FileSystem
	Decisions         decisions.Provider
	Logger            *zap.Logger
}

// Request configures one resolution. BranchName is the name to create; when empty it is asked for.
type Request struct {
	Policy     Policy
	BranchName string
}

// Manager resolves feature branches and records the outcome on the project node.
type Manager struct {
	repositoryManager shared.GitRepositoryManager
	fileSystem        shared.FileSystem
	decisionProvider  decisions.Provider
	logger            *zap.Logger
}

// NewManager constructs a Manager.
func NewManager(dependencies Dependencies) (*Manager, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if dependencies.FileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if dependencies.Decisions == nil {
		return nil, ErrDecisionProviderNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		repositoryManager: dependencies.RepositoryManager,
		fileSystem:        dependencies.FileSystem,
		decisionProvider:  dependencies.Decisions,
		logger:            logger,
	}, nil
}

// Establish resolves the project's branch. A preset name is used when given; otherwise the policy is asked for.
func (manager *Manager) Establish(executionContext context.Context, project *graph.ProjectNode, presetBranchName string) (string, error) {
	if len(strings.TrimSpace(presetBranchName)) > 0 {
		return manager.ResolvePresetBranch(executionContext, project, presetBranchName)
	}
	policy, policyError := manager.DecidePolicy(executionContext, project)
	if policyError != nil {
		return "", manager.fail(project, repoerrors.New(repoerrors.KindBranchSelection, project.Name, policyError))
	}
	return manager.ResolveBranch(executionContext, project, Request{Policy: policy})
}

// DecidePolicy asks which policy applies to the project.
func (manager *Manager) DecidePolicy(executionContext context.Context, project *graph.ProjectNode) (Policy, error) {
	choice, choiceError := manager.decisionProvider.Choose(executionContext, decisions.ChoiceRequest{
		Key:     decisions.KeyBranchPolicy,
		Subject: project.Name,
		Prompt:  branchPolicyPromptConstant,
		Options: []decisions.Option{
			{Value: string(PolicyCreate), Label: createPolicyLabelConstant},
			{Value: string(PolicySelect), Label: selectPolicyLabelConstant},
			{Value: string(PolicyKeepCurrent), Label: keepCurrentPolicyLabelConstant},
		},
		Default: string(PolicyCreate),
	})
	if choiceError != nil {
		return "", choiceError
	}
	return Policy(choice), nil
}

// ResolvePresetBranch checks out the preset branch when it exists locally and creates it otherwise.
// If that fails for a reason other than a missing path or base branch, a new branch is created interactively.
func (manager *Manager) ResolvePresetBranch(executionContext context.Context, project *graph.ProjectNode, presetBranchName string) (string, error) {
	branchName := strings.TrimSpace(presetBranchName)
	branches, verifyError := manager.verifyRepository(executionContext, project)
	if verifyError != nil {
		return "", verifyError
	}

	var presetError error
	if lo.Contains(branches, branchName) {
		if checkoutError := manager.repositoryManager.Checkout(executionContext, project.Path, branchName); checkoutError != nil {
			presetError = repoerrors.New(repoerrors.KindBranchSelection, project.Name, checkoutError)
		} else {
			manager.resolve(project, branchName, graph.BranchOriginSelectedExisting)
			return branchName, nil
		}
	} else {
		resolvedName, createError := manager.create(executionContext, project, branches, branchName)
		if createError == nil {
			return resolvedName, nil
		}
		presetError = createError
	}

	manager.logger.Warn(presetBranchRetryMessageConstant,
		zap.String(logFieldProjectConstant, project.Name),
		zap.String(logFieldBranchConstant, branchName),
		zap.Error(presetError),
	)
	return manager.ResolveBranch(executionContext, project, Request{Policy: PolicyCreate})
}

// ResolveBranch runs the branch state machine for the project under the policy.
// Select and keep-current return the cached name when the project is already resolved.
func (manager *Manager) ResolveBranch(executionContext context.Context, project *graph.ProjectNode, request Request) (string, error) {
	if project.Branch.Resolved() && (request.Policy == PolicySelect || request.Policy == PolicyKeepCurrent) {
		return project.Branch.BranchName, nil
	}

	branches, verifyError := manager.verifyRepository(executionContext, project)
	if verifyError != nil {
		return "", verifyError
	}

	switch request.Policy {
	case PolicyCreate:
		return manager.create(executionContext, project, branches, request.BranchName)
	case PolicySelect:
		return manager.selectExisting(executionContext, project, branches, request.BranchName)
	case PolicyKeepCurrent:
		currentBranch, currentError := manager.repositoryManager.CurrentBranch(executionContext, project.Path)
		if currentError != nil {
			return "", manager.fail(project, repoerrors.New(repoerrors.KindBranchSelection, project.Name, currentError))
		}
		if currentBranch == detachedHeadNameConstant {
			return "", manager.fail(project, repoerrors.New(repoerrors.KindBranchSelection, project.Name, ErrDetachedHead))
		}
		manager.resolve(project, currentBranch, graph.BranchOriginKeptCurrent)
		return currentBranch, nil
	default:
		return "", manager.fail(project, repoerrors.New(repoerrors.KindBranchSelection, project.Name, fmt.Errorf(unknownPolicyTemplateConstant, ErrUnknownPolicy, request.Policy)))
	}
}

func (manager *Manager) verifyRepository(executionContext context.Context, project *graph.ProjectNode) ([]string, error) {
	if _, statError := manager.fileSystem.Stat(project.Path); statError != nil {
		return nil, manager.fail(project, repoerrors.New(repoerrors.KindPathNotFound, project.Path, statError))
	}
	project.Branch.Advance(graph.BranchStatusPathChecked)

	branches, branchesError := manager.repositoryManager.LocalBranches(executionContext, project.Path)
	if branchesError != nil {
		return nil, manager.fail(project, repoerrors.New(repoerrors.KindBaseBranchMissing, project.Name, branchesError))
	}
	if !lo.Contains(branches, project.BaseBranch) {
		return nil, manager.fail(project, repoerrors.New(repoerrors.KindBaseBranchMissing, project.Name, fmt.Errorf(baseBranchAbsentTemplateConstant, project.BaseBranch)))
	}
	project.Branch.Advance(graph.BranchStatusBaseBranchChecked)
	return branches, nil
}

func (manager *Manager) create(executionContext context.Context, project *graph.ProjectNode, branches []string, requestedName string) (string, error) {
	branchName := strings.TrimSpace(requestedName)
	if len(branchName) == 0 {
		answeredName, answerError := manager.decisionProvider.Text(executionContext, decisions.TextRequest{
			Key:      decisions.KeyBranchName,
			Subject:  project.Name,
			Prompt:   branchNamePromptConstant,
			Validate: decisions.RequireNonEmpty,
		})
		if answerError != nil {
			return "", manager.fail(project, repoerrors.New(repoerrors.KindBranchCreation, project.Name, answerError))
		}
		branchName = strings.TrimSpace(answeredName)
	}

	if lo.Contains(branches, branchName) {
		return "", manager.fail(project, repoerrors.New(repoerrors.KindDuplicateBranchName, project.Name, fmt.Errorf(duplicateBranchTemplateConstant, branchName)))
	}

	remoteBase := fmt.Sprintf(remoteBranchTemplateConstant, project.RemoteName, project.BaseBranch)
	if checkoutError := manager.repositoryManager.Checkout(executionContext, project.Path, remoteBase); checkoutError != nil {
		manager.returnToBase(executionContext, project)
		return "", manager.fail(project, repoerrors.New(repoerrors.KindBranchCreation, project.Name, checkoutError))
	}
	if createError := manager.repositoryManager.CreateBranch(executionContext, project.Path, branchName); createError != nil {
		manager.returnToBase(executionContext, project)
		return "", manager.fail(project, repoerrors.New(repoerrors.KindBranchCreation, project.Name, createError))
	}

	manager.resolve(project, branchName, graph.BranchOriginCreated)
	return branchName, nil
}

func (manager *Manager) selectExisting(executionContext context.Context, project *graph.ProjectNode, branches []string, preferredName string) (string, error) {
	candidates := lo.Without(branches, project.BaseBranch)
	if len(candidates) == 0 {
		return "", manager.fail(project, repoerrors.New(repoerrors.KindBranchSelection, project.Name, ErrNoCandidateBranches))
	}

	defaultBranch := ""
	if lo.Contains(candidates, preferredName) {
		defaultBranch = preferredName
	}
	choice, choiceError := manager.decisionProvider.Choose(executionContext, decisions.ChoiceRequest{
		Key:     decisions.KeyExistingBranch,
		Subject: project.Name,
		Prompt:  existingBranchPromptConstant,
		Options: decisions.OptionsFromValues(candidates),
		Default: defaultBranch,
	})
	if choiceError != nil {
		return "", manager.fail(project, repoerrors.New(repoerrors.KindBranchSelection, project.Name, choiceError))
	}
	if checkoutError := manager.repositoryManager.Checkout(executionContext, project.Path, choice); checkoutError != nil {
		return "", manager.fail(project, repoerrors.New(repoerrors.KindBranchSelection, project.Name, checkoutError))
	}

	manager.resolve(project, choice, graph.BranchOriginSelectedExisting)
	return choice, nil
}

func (manager *Manager) returnToBase(executionContext context.Context, project *graph.ProjectNode) {
	if recoveryError := manager.repositoryManager.Checkout(executionContext, project.Path, project.BaseBranch); recoveryError != nil {
		manager.logger.Debug(branchRecoveryFailedMessageConstant,
			zap.String(logFieldProjectConstant, project.Name),
			zap.String(logFieldBaseBranchConstant, project.BaseBranch),
			zap.Error(recoveryError),
		)
	}
}

func (manager *Manager) resolve(project *graph.ProjectNode, branchName string, origin graph.BranchOrigin) {
	project.Branch.Resolve(branchName, origin)
	manager.logger.Info(branchResolvedMessageConstant,
		zap.String(logFieldProjectConstant, project.Name),
		zap.String(logFieldBranchConstant, branchName),
		zap.String(logFieldOriginConstant, string(origin)),
	)
}

func (manager *Manager) fail(project *graph.ProjectNode, failure repoerrors.OperationError) error {
	project.Branch.Fail(failure)
	manager.logger.Warn(branchResolutionFailedMessageConstant,
		zap.String(logFieldProjectConstant, project.Name),
		zap.String(logFieldBranchConstant, project.Branch.BranchName),
		zap.Error(failure),
	)
	return failure
}
