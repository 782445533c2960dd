// Package linking runs the link-submodules pipeline: it settles a feature branch per project, synchronizes
// every distinct submodule once, stages the new submodule pointers and then commits, pushes and opens pull
// requests project by project.
package linking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/branches/lifecycle"
	"github.com/temirov/gitcaptain/internal/decisions"
	"github.com/temirov/gitcaptain/internal/graph"
	"github.com/temirov/gitcaptain/internal/metrics"
	"github.com/temirov/gitcaptain/internal/projects"
	repoerrors "github.com/temirov/gitcaptain/internal/repos/errors"
	"github.com/temirov/gitcaptain/internal/repos/shared"
	"github.com/temirov/gitcaptain/internal/submodules"
	"github.com/temirov/gitcaptain/internal/ui"
)

const (
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	fileSystemMissingMessageConstant        = "filesystem not configured"
	decisionProviderMissingMessageConstant  = "decision provider not configured"
	unknownProjectMessageConstant           = "unknown project"
	unknownProjectTemplateConstant          = "%w: %q"
	selectionSubjectConstant                = "project selection"
	selectProjectsPromptConstant            = "Projects to link"
	selectSubmodulesPromptTemplateConstant  = "Submodules to update in %s"
	continuePromptConstant                  = "Continue with this configuration?"
	taskIdentifierPromptConstant            = "Task id for pull request titles (optional)"
	updateBranchPromptTemplateConstant      = "Pull %s/%s into %s?"
	noProjectsSelectedMessageConstant       = "No projects selected"
	runCancelledMessageConstant             = "Link run cancelled"
	branchUpdatedMessageConstant            = "Feature branch updated from the base branch"
	branchUpdateFailedMessageConstant       = "Feature branch update failed; skipping project"
	noSubmodulesSelectedMessageConstant     = "No submodules selected; skipping project"
	projectSkippedMessageConstant           = "Project skipped"
	linkFinishedMessageConstant             = "Link run finished"
	summaryLabelProjectsConstant            = "Projects"
	summaryLabelBranchConstant              = "Feature branch"
	summaryLabelUpdateConstant              = "Update from base"
	summaryLabelCommitConstant              = "Commit"
	summaryLabelPushConstant                = "Push"
	summaryLabelPullRequestConstant         = "Pull request"
	summaryLabelProviderConstant            = "Provider"
	summaryLabelTaskConstant                = "Task"
	summaryAskValueConstant                 = "ask"
	logFieldProjectConstant                 = "project"
	logFieldBranchConstant                  = "branch"
	logFieldSummaryConstant                 = "summary"
	logFieldCommitCountConstant             = "commits"
	logFieldPullRequestsConstant            = "pull_requests"
	logFieldFailedProjectsConstant          = "failed_projects"
)

var (
	// ErrRepositoryManagerNotConfigured indicates the pipeline was constructed without git access.
	ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)
	// ErrFileSystemNotConfigured indicates the pipeline was constructed without filesystem access.
	ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)
	// ErrDecisionProviderNotConfigured indicates the pipeline was constructed without a decision provider.
	ErrDecisionProviderNotConfigured = errors.New(decisionProviderMissingMessageConstant)
	// ErrUnknownProject indicates a requested project is not configured.
	ErrUnknownProject = errors.New(unknownProjectMessageConstant)
)

// Presets fix answers for the whole run. Nil toggles are asked per project.
type Presets struct {
	BranchName          string
	UpdateFeatureBranch *bool
	Commit              *bool
	Push                *bool
	PullRequest         *bool
	ProviderName        string
	TaskID              string
	TitleTemplate       string
	DescriptionTemplate string
}

// Options configure one link run. Empty ProjectNames means the projects are asked for.
type Options struct {
	ProjectNames []string
	Presets      Presets
}

// Dependencies enumerates the collaborators of the Service.
type Dependencies struct {
	RepositoryManager shared.GitRepositoryManager
	FileSystem        shared.FileSystem
	Decisions         decisions.Provider
	PullRequests      PullRequestCreator
	Reporter          shared.Reporter
	Logger            *zap.Logger
	Metrics           *metrics.Recorder
	Parallelism       int
}

// ProjectOutcome reports one project of a run.
type ProjectOutcome struct {
	Project  string
	Branch   string
	Staged   submodules.StageResult
	Finalize FinalizeResult
	Failure  error
}

// Result reports a link run.
type Result struct {
	Cancelled    bool
	Projects     []ProjectOutcome
	PullRequests []ui.PullRequestLink
}

// FailedProjects lists the projects whose pipeline stopped on an error.
func (result Result) FailedProjects() []string {
	return lo.FilterMap(result.Projects, func(outcome ProjectOutcome, _ int) (string, bool) {
		return outcome.Project, outcome.Failure != nil || outcome.Finalize.Failure != nil
	})
}

// Service runs link-submodules.
type Service struct {
	dependencies Dependencies
	logger       *zap.Logger
}

// NewService constructs a Service.
func NewService(dependencies Dependencies) (*Service, error) {
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
	dependencies.Logger = logger
	return &Service{dependencies: dependencies, logger: logger}, nil
}

// Link runs the pipeline over the snapshot. Only an unknown project name is returned as an error; failures of
// individual projects and submodules are reported in the Result.
func (service *Service) Link(executionContext context.Context, snapshot projects.Snapshot, options Options) (Result, error) {
	repositoryGraph := graph.Build(snapshot.Configuration())

	selectedNames, selectionError := service.selectProjects(executionContext, repositoryGraph, options.ProjectNames)
	if selectionError != nil {
		return Result{}, selectionError
	}
	if len(selectedNames) == 0 {
		service.logger.Info(noProjectsSelectedMessageConstant)
		return Result{}, nil
	}
	selectedGraph := repositoryGraph.Select(selectedNames)

	ui.RenderConfigurationSummary(service.dependencies.Reporter, summaryEntries(selectedNames, options.Presets))
	continueConfirmed, continueError := service.dependencies.Decisions.Confirm(executionContext, decisions.ConfirmRequest{
		Key:     decisions.KeyContinue,
		Prompt:  continuePromptConstant,
		Default: true,
	})
	if continueError != nil || !continueConfirmed {
		service.logger.Info(runCancelledMessageConstant)
		return Result{Cancelled: true}, continueError
	}

	taskID, taskError := service.resolveTaskID(executionContext, options.Presets)
	if taskError != nil {
		return Result{}, taskError
	}

	decisionProvider := presetDecisions(service.dependencies.Decisions, options.Presets)
	stages, stagesError := service.buildStages(decisionProvider)
	if stagesError != nil {
		return Result{}, stagesError
	}

	outcomes := make(map[string]*ProjectOutcome, len(selectedGraph.Projects))
	for _, project := range selectedGraph.Projects {
		outcome := &ProjectOutcome{Project: project.Name}
		outcomes[project.Name] = outcome
		outcome.Failure = service.prepareProject(executionContext, stages, decisionProvider, project, options.Presets.BranchName)
		outcome.Branch = project.Branch.BranchName
	}

	report := stages.coordinator.Synchronize(executionContext, selectedGraph.SelectedReferences())

	result := Result{}
	finalizeOptions := FinalizeOptions{
		ProviderName:        options.Presets.ProviderName,
		TaskID:              taskID,
		TitleTemplate:       options.Presets.TitleTemplate,
		DescriptionTemplate: options.Presets.DescriptionTemplate,
	}
	for _, project := range selectedGraph.Projects {
		outcome := outcomes[project.Name]
		if outcome.Failure == nil && len(project.SelectedSubmodules) > 0 {
			outcome.Staged = stages.stager.Stage(executionContext, project, report)
			outcome.Finalize = stages.orchestrator.Finalize(executionContext, project, outcome.Staged, finalizeOptions)
			if len(outcome.Finalize.PullRequestURL) > 0 {
				result.PullRequests = append(result.PullRequests, ui.PullRequestLink{Project: project.Name, URL: outcome.Finalize.PullRequestURL})
			}
		}
		result.Projects = append(result.Projects, *outcome)
	}

	ui.RenderPullRequestSummary(service.dependencies.Reporter, result.PullRequests)
	service.logger.Info(linkFinishedMessageConstant,
		zap.Int(logFieldPullRequestsConstant, len(result.PullRequests)),
		zap.Strings(logFieldFailedProjectsConstant, result.FailedProjects()),
	)
	return result, nil
}

type pipelineStages struct {
	branches     *lifecycle.Manager
	coordinator  *submodules.Coordinator
	stager       *submodules.Stager
	orchestrator *Orchestrator
}

func (service *Service) buildStages(decisionProvider decisions.Provider) (pipelineStages, error) {
	branchManager, branchError := lifecycle.NewManager(lifecycle.Dependencies{
		RepositoryManager: service.dependencies.RepositoryManager,
		FileSystem:        service.dependencies.FileSystem,
		Decisions:         decisionProvider,
		Logger:            service.logger,
	})
	if branchError != nil {
		return pipelineStages{}, branchError
	}
	submoduleDependencies := submodules.Dependencies{
		RepositoryManager: service.dependencies.RepositoryManager,
		Decisions:         decisionProvider,
		Logger:            service.logger,
		Metrics:           service.dependencies.Metrics,
	}
	coordinator, coordinatorError := submodules.NewCoordinator(submoduleDependencies, service.dependencies.Parallelism)
	if coordinatorError != nil {
		return pipelineStages{}, coordinatorError
	}
	stager, stagerError := submodules.NewStager(submoduleDependencies)
	if stagerError != nil {
		return pipelineStages{}, stagerError
	}
	orchestrator, orchestratorError := NewOrchestrator(service.dependencies.RepositoryManager, decisionProvider, service.dependencies.PullRequests, service.logger, service.dependencies.Metrics)
	if orchestratorError != nil {
		return pipelineStages{}, orchestratorError
	}
	return pipelineStages{branches: branchManager, coordinator: coordinator, stager: stager, orchestrator: orchestrator}, nil
}

func (service *Service) selectProjects(executionContext context.Context, repositoryGraph *graph.Graph, requestedNames []string) ([]string, error) {
	configuredNames := repositoryGraph.ProjectNames()
	if len(requestedNames) > 0 {
		for _, requestedName := range requestedNames {
			if !lo.Contains(configuredNames, requestedName) {
				return nil, repoerrors.New(repoerrors.KindConfiguration, selectionSubjectConstant, fmt.Errorf(unknownProjectTemplateConstant, ErrUnknownProject, requestedName))
			}
		}
		return lo.Uniq(requestedNames), nil
	}
	if len(configuredNames) == 0 {
		return nil, nil
	}
	return service.dependencies.Decisions.ChooseMany(executionContext, decisions.MultiChoiceRequest{
		Key:      decisions.KeySelectProjects,
		Prompt:   selectProjectsPromptConstant,
		Options:  decisions.OptionsFromValues(configuredNames),
		Defaults: configuredNames,
	})
}

// prepareProject settles the branch, optionally updates it from the base branch and selects submodules.
func (service *Service) prepareProject(executionContext context.Context, stages pipelineStages, decisionProvider decisions.Provider, project *graph.ProjectNode, presetBranchName string) error {
	projectLogger := service.logger.With(zap.String(logFieldProjectConstant, project.Name))

	branchName, branchError := stages.branches.Establish(executionContext, project, presetBranchName)
	service.dependencies.Metrics.Record(metrics.OperationBranchResolution, branchError)
	if branchError != nil {
		projectLogger.Warn(projectSkippedMessageConstant, zap.Error(branchError))
		return branchError
	}
	projectLogger = projectLogger.With(zap.String(logFieldBranchConstant, branchName))

	updateConfirmed, updateDecisionError := decisionProvider.Confirm(executionContext, decisions.ConfirmRequest{
		Key:     decisions.KeyUpdateFeatureBranch,
		Subject: project.Name,
		Prompt:  fmt.Sprintf(updateBranchPromptTemplateConstant, project.RemoteName, project.BaseBranch, branchName),
	})
	if updateDecisionError != nil {
		project.Branch.Fail(updateDecisionError)
		return updateDecisionError
	}
	if updateConfirmed {
		if pullError := service.dependencies.RepositoryManager.Pull(executionContext, project.Path, project.RemoteName, project.BaseBranch); pullError != nil {
			failure := repoerrors.New(repoerrors.KindBranchUpdate, project.Name, pullError)
			project.Branch.Fail(failure)
			projectLogger.Warn(branchUpdateFailedMessageConstant, zap.Error(pullError))
			return failure
		}
		projectLogger.Info(branchUpdatedMessageConstant)
	}

	declaredNames := project.SubmoduleNames()
	if len(declaredNames) == 0 {
		projectLogger.Info(noSubmodulesSelectedMessageConstant)
		return nil
	}
	selectedNames, selectionError := decisionProvider.ChooseMany(executionContext, decisions.MultiChoiceRequest{
		Key:      decisions.KeySelectSubmodules,
		Subject:  project.Name,
		Prompt:   fmt.Sprintf(selectSubmodulesPromptTemplateConstant, project.Name),
		Options:  decisions.OptionsFromValues(declaredNames),
		Defaults: declaredNames,
	})
	if selectionError != nil {
		project.Branch.Fail(selectionError)
		return selectionError
	}
	project.SelectSubmodules(selectedNames)
	if len(project.SelectedSubmodules) == 0 {
		projectLogger.Info(noSubmodulesSelectedMessageConstant)
	}
	return nil
}

// resolveTaskID asks once per run for an optional task id when pull requests may be opened without one.
func (service *Service) resolveTaskID(executionContext context.Context, presets Presets) (string, error) {
	taskID := strings.TrimSpace(presets.TaskID)
	if len(taskID) > 0 || (presets.PullRequest != nil && !*presets.PullRequest) {
		return taskID, nil
	}
	if service.dependencies.PullRequests == nil || len(service.dependencies.PullRequests.ProviderNames()) == 0 {
		return "", nil
	}
	answer, answerError := service.dependencies.Decisions.Text(executionContext, decisions.TextRequest{
		Key:    decisions.KeyTaskIdentifier,
		Prompt: taskIdentifierPromptConstant,
	})
	if answerError != nil {
		return "", answerError
	}
	return strings.TrimSpace(answer), nil
}

func presetDecisions(fallback decisions.Provider, presets Presets) decisions.Provider {
	presetProvider := decisions.NewPresets(fallback)
	toggles := map[decisions.Key]*bool{
		decisions.KeyUpdateFeatureBranch: presets.UpdateFeatureBranch,
		decisions.KeyCommitChanges:       presets.Commit,
		decisions.KeyPushChanges:         presets.Push,
		decisions.KeyCreatePullRequest:   presets.PullRequest,
	}
	for key, toggle := range toggles {
		if toggle != nil {
			presetProvider.SetConfirm(key, *toggle)
		}
	}
	return presetProvider
}

func summaryEntries(projectNames []string, presets Presets) []ui.SummaryEntry {
	return []ui.SummaryEntry{
		{Label: summaryLabelProjectsConstant, Value: ui.ListValue(projectNames)},
		{Label: summaryLabelBranchConstant, Value: lo.Ternary(len(strings.TrimSpace(presets.BranchName)) > 0, presets.BranchName, summaryAskValueConstant)},
		{Label: summaryLabelUpdateConstant, Value: toggleValue(presets.UpdateFeatureBranch)},
		{Label: summaryLabelCommitConstant, Value: toggleValue(presets.Commit)},
		{Label: summaryLabelPushConstant, Value: toggleValue(presets.Push)},
		{Label: summaryLabelPullRequestConstant, Value: toggleValue(presets.PullRequest)},
		{Label: summaryLabelProviderConstant, Value: lo.Ternary(len(strings.TrimSpace(presets.ProviderName)) > 0, presets.ProviderName, summaryAskValueConstant)},
		{Label: summaryLabelTaskConstant, Value: presets.TaskID},
	}
}

func toggleValue(toggle *bool) string {
	if toggle == nil {
		return summaryAskValueConstant
	}
	return strconv.FormatBool(*toggle)
}
