package linking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/decisions"
	"github.com/temirov/gitcaptain/internal/gitrepo"
	"github.com/temirov/gitcaptain/internal/graph"
	"github.com/temirov/gitcaptain/internal/metrics"
	"github.com/temirov/gitcaptain/internal/pullrequests"
	repoerrors "github.com/temirov/gitcaptain/internal/repos/errors"
	"github.com/temirov/gitcaptain/internal/repos/shared"
	"github.com/temirov/gitcaptain/internal/submodules"
)

const (
	commitPromptTemplateConstant          = "Commit %s in %s?"
	pushPromptTemplateConstant            = "Push %s to %s?"
	pullRequestPromptTemplateConstant     = "Create a pull request from %s into %s?"
	providerPromptConstant                = "Pull request provider"
	nothingStagedMessageConstant          = "No submodules staged; skipping commit, push and pull request"
	commitDeclinedMessageConstant         = "Commit declined; skipping push and pull request"
	pushDeclinedMessageConstant           = "Push declined; skipping pull request"
	pullRequestDeclinedMessageConstant    = "Pull request creation declined"
	commitCreatedMessageConstant          = "Submodule links committed"
	commitFailedMessageConstant           = "Commit failed; skipping push and pull request"
	branchPushedMessageConstant           = "Feature branch pushed"
	pushFailedMessageConstant             = "Push failed; skipping pull request"
	pullRequestCreatedMessageConstant     = "Pull request created"
	pullRequestFailedMessageConstant      = "Pull request creation failed"
	pullRequestUnavailableMessageConstant = "Pull request provider unavailable"
	pullRequestWithoutURLMessageConstant  = "Pull request provider returned no link"
	noProviderMessageConstant             = "No pull request provider configured"
	pullRequestTextFailedMessageConstant  = "Pull request text could not be rendered"
	repositoryIDFallbackMessageConstant   = "Repository id derived from the remote URL"
	logFieldURLConstant                   = "url"
	logFieldProviderConstant              = "provider"
	logFieldRepositoryIDConstant          = "repository_id"
	logFieldRemoteConstant                = "remote"
)

// PullRequestCreator is the gateway capability the orchestrator depends on.
type PullRequestCreator interface {
	ProviderNames() []string
	CreatePullRequest(executionContext context.Context, providerName string, request pullrequests.Request) (string, error)
}

// FinalizeOptions carry run-wide pull request settings.
type FinalizeOptions struct {
	ProviderName        string
	TaskID              string
	TitleTemplate       string
	DescriptionTemplate string
}

// FinalizeResult records what happened to one project after staging.
type FinalizeResult struct {
	Project        string
	Committed      bool
	Pushed         bool
	PullRequestURL string
	Failure        error
}

// Orchestrator runs commit, push and pull request creation for one project, each behind a confirmation.
type Orchestrator struct {
	repositoryManager shared.GitRepositoryManager
	decisionProvider  decisions.Provider
	pullRequests      PullRequestCreator
	logger            *zap.Logger
	metrics           *metrics.Recorder
}

// NewOrchestrator constructs an Orchestrator. A nil pull request creator makes every pull request request a warning.
func NewOrchestrator(repositoryManager shared.GitRepositoryManager, decisionProvider decisions.Provider, pullRequests PullRequestCreator, logger *zap.Logger, recorder *metrics.Recorder) (*Orchestrator, error) {
	if repositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if decisionProvider == nil {
		return nil, ErrDecisionProviderNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		repositoryManager: repositoryManager,
		decisionProvider:  decisionProvider,
		pullRequests:      pullRequests,
		logger:            logger,
		metrics:           recorder,
	}, nil
}

// Finalize commits the staged links, pushes the feature branch and opens a pull request. A declined or failed
// step skips the remaining steps of this project only.
func (orchestrator *Orchestrator) Finalize(executionContext context.Context, project *graph.ProjectNode, staged submodules.StageResult, options FinalizeOptions) FinalizeResult {
	result := FinalizeResult{Project: project.Name}
	branchName := project.Branch.BranchName
	projectLogger := orchestrator.logger.With(zap.String(logFieldProjectConstant, project.Name), zap.String(logFieldBranchConstant, branchName))

	if staged.StagedCount() == 0 {
		projectLogger.Warn(nothingStagedMessageConstant, zap.String(logFieldSummaryConstant, staged.Summary()))
		return result
	}

	commitConfirmed, commitDecisionError := orchestrator.decisionProvider.Confirm(executionContext, decisions.ConfirmRequest{
		Key:     decisions.KeyCommitChanges,
		Subject: project.Name,
		Prompt:  fmt.Sprintf(commitPromptTemplateConstant, staged.Summary(), project.Name),
		Default: true,
	})
	if commitDecisionError != nil || !commitConfirmed {
		result.Failure = commitDecisionError
		projectLogger.Info(commitDeclinedMessageConstant)
		return result
	}
	commitError := orchestrator.repositoryManager.Commit(executionContext, project.Path, staged.Message)
	orchestrator.metrics.Record(metrics.OperationCommit, commitError)
	if commitError != nil {
		result.Failure = repoerrors.New(repoerrors.KindCommit, project.Name, commitError)
		projectLogger.Error(commitFailedMessageConstant, zap.Error(commitError))
		return result
	}
	result.Committed = true
	projectLogger.Info(commitCreatedMessageConstant, zap.Int(logFieldCommitCountConstant, staged.TotalCommits()))

	pushConfirmed, pushDecisionError := orchestrator.decisionProvider.Confirm(executionContext, decisions.ConfirmRequest{
		Key:     decisions.KeyPushChanges,
		Subject: project.Name,
		Prompt:  fmt.Sprintf(pushPromptTemplateConstant, branchName, project.RemoteName),
		Default: true,
	})
	if pushDecisionError != nil || !pushConfirmed {
		result.Failure = pushDecisionError
		projectLogger.Info(pushDeclinedMessageConstant)
		return result
	}
	pushError := orchestrator.repositoryManager.Push(executionContext, project.Path, project.RemoteName, branchName)
	orchestrator.metrics.Record(metrics.OperationPush, pushError)
	if pushError != nil {
		result.Failure = repoerrors.New(repoerrors.KindPush, project.Name, pushError)
		projectLogger.Error(pushFailedMessageConstant, zap.Error(pushError))
		return result
	}
	result.Pushed = true
	projectLogger.Info(branchPushedMessageConstant, zap.String(logFieldRemoteConstant, project.RemoteName))

	pullRequestConfirmed, pullRequestDecisionError := orchestrator.decisionProvider.Confirm(executionContext, decisions.ConfirmRequest{
		Key:     decisions.KeyCreatePullRequest,
		Subject: project.Name,
		Prompt:  fmt.Sprintf(pullRequestPromptTemplateConstant, branchName, project.BaseBranch),
		Default: true,
	})
	if pullRequestDecisionError != nil || !pullRequestConfirmed {
		result.Failure = pullRequestDecisionError
		projectLogger.Info(pullRequestDeclinedMessageConstant)
		return result
	}

	pullRequestURL, pullRequestError := orchestrator.createPullRequest(executionContext, project, staged, options, projectLogger)
	result.PullRequestURL = pullRequestURL
	result.Failure = pullRequestError
	return result
}

func (orchestrator *Orchestrator) createPullRequest(executionContext context.Context, project *graph.ProjectNode, staged submodules.StageResult, options FinalizeOptions, projectLogger *zap.Logger) (string, error) {
	if orchestrator.pullRequests == nil || len(orchestrator.pullRequests.ProviderNames()) == 0 {
		projectLogger.Warn(noProviderMessageConstant)
		return "", nil
	}

	providerName := strings.TrimSpace(options.ProviderName)
	if len(providerName) == 0 {
		chosenProvider, chooseError := orchestrator.decisionProvider.Choose(executionContext, decisions.ChoiceRequest{
			Key:     decisions.KeyPullRequestProvider,
			Subject: project.Name,
			Prompt:  providerPromptConstant,
			Options: decisions.OptionsFromValues(orchestrator.pullRequests.ProviderNames()),
		})
		if chooseError != nil {
			projectLogger.Warn(pullRequestUnavailableMessageConstant, zap.Error(chooseError))
			return "", nil
		}
		providerName = chosenProvider
	}

	title, description, renderError := pullrequests.RenderRequestText(options.TitleTemplate, options.DescriptionTemplate, pullrequests.TemplateValues{
		Project:       project.Name,
		TaskID:        options.TaskID,
		SourceBranch:  project.Branch.BranchName,
		TargetBranch:  project.BaseBranch,
		Submodules:    stagedNames(staged),
		CommitMessage: staged.Message,
	})
	if renderError != nil {
		projectLogger.Warn(pullRequestTextFailedMessageConstant, zap.Error(renderError))
		return "", repoerrors.New(repoerrors.KindPullRequestCreation, project.Name, renderError)
	}

	repositoryID := orchestrator.repositoryID(project, projectLogger)
	pullRequestURL, creationError := orchestrator.pullRequests.CreatePullRequest(executionContext, providerName, pullrequests.Request{
		RepositoryID: repositoryID,
		SourceBranch: project.Branch.BranchName,
		TargetBranch: project.BaseBranch,
		Title:        title,
		Description:  description,
	})

	providerLogger := projectLogger.With(zap.String(logFieldProviderConstant, providerName), zap.String(logFieldRepositoryIDConstant, repositoryID))
	if creationError != nil {
		if errors.Is(creationError, repoerrors.ErrProviderConfiguration) {
			providerLogger.Warn(pullRequestUnavailableMessageConstant, zap.Error(creationError))
			return "", nil
		}
		orchestrator.metrics.Failed(metrics.OperationPullRequest)
		providerLogger.Error(pullRequestFailedMessageConstant, zap.Error(creationError))
		return "", creationError
	}
	if len(strings.TrimSpace(pullRequestURL)) == 0 {
		providerLogger.Warn(pullRequestWithoutURLMessageConstant)
		return "", nil
	}
	orchestrator.metrics.Succeeded(metrics.OperationPullRequest)
	providerLogger.Info(pullRequestCreatedMessageConstant, zap.String(logFieldURLConstant, pullRequestURL))
	return pullRequestURL, nil
}

func (orchestrator *Orchestrator) repositoryID(project *graph.ProjectNode, projectLogger *zap.Logger) string {
	if len(strings.TrimSpace(project.RepositoryID)) > 0 {
		return project.RepositoryID
	}
	remote, parseError := gitrepo.ParseRemoteURL(project.RemoteURL)
	if parseError != nil {
		return ""
	}
	projectLogger.Debug(repositoryIDFallbackMessageConstant, zap.String(logFieldRepositoryIDConstant, remote.Slug()))
	return remote.Slug()
}

func stagedNames(staged submodules.StageResult) []string {
	names := make([]string, 0, len(staged.Staged))
	for _, delta := range staged.Staged {
		names = append(names, delta.Name)
	}
	return names
}
