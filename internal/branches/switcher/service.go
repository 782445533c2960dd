// Package switcher moves projects and their submodules onto one branch. Distinct submodules are switched
// first, then the projects, then every per-project submodule reference is switched and pulled.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/decisions"
	"github.com/temirov/gitcaptain/internal/graph"
	"github.com/temirov/gitcaptain/internal/metrics"
	"github.com/temirov/gitcaptain/internal/projects"
	repoerrors "github.com/temirov/gitcaptain/internal/repos/errors"
	"github.com/temirov/gitcaptain/internal/repos/shared"
	"github.com/temirov/gitcaptain/internal/ui"
)

const (
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	decisionProviderMissingMessageConstant  = "decision provider not configured"
	unknownProjectMessageConstant           = "unknown project"
	unknownProjectTemplateConstant          = "%w: %q"
	selectionSubjectConstant                = "project selection"
	referenceNameTemplateConstant           = "%s/%s"
	branchPromptConstant                    = "Branch to switch to"
	updateProjectsPromptConstant            = "Pull the base branch into each project?"
	updateSubmodulesPromptConstant          = "Pull the base branch into each submodule?"
	selectProjectsPromptConstant            = "Projects to switch"
	selectSubmodulesPromptTemplateConstant  = "Submodules of %s to switch"
	continuePromptConstant                  = "Switch these repositories?"
	summaryLabelBranchConstant              = "Branch"
	summaryLabelProjectsConstant            = "Projects"
	summaryLabelSubmodulesConstant          = "Submodules"
	summaryLabelUpdateProjectsConstant      = "Update projects"
	summaryLabelUpdateSubmodulesConstant    = "Update submodules"
	switchCancelledMessageConstant          = "Branch switch cancelled"
	repositorySwitchedMessageConstant       = "Repository switched"
	repositoryUpdatedMessageConstant        = "Repository updated from the base branch"
	switchFailedMessageConstant             = "Branch switch failed"
	updateFailedMessageConstant             = "Update from the base branch failed"
	referenceSkippedMessageConstant         = "Submodule reference skipped because its project could not be switched"
	dryRunMessageConstant                   = "Dry run; no git commands executed"
	logFieldRepositoryConstant              = "repository"
	logFieldPathConstant                    = "path"
	logFieldBranchConstant                  = "branch"
	logFieldBaseBranchConstant              = "base_branch"
)

var (
	// ErrRepositoryManagerNotConfigured indicates the service was constructed without git access.
	ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)
	// ErrDecisionProviderNotConfigured indicates the service was constructed without a decision provider.
	ErrDecisionProviderNotConfigured = errors.New(decisionProviderMissingMessageConstant)
	// ErrUnknownProject indicates a requested project is not configured.
	ErrUnknownProject = errors.New(unknownProjectMessageConstant)
)

// Dependencies enumerates the collaborators of the Service.
type Dependencies struct {
	RepositoryManager shared.GitRepositoryManager
	Decisions         decisions.Provider
	Reporter          shared.Reporter
	Logger            *zap.Logger
	Metrics           *metrics.Recorder
}

// Options configure a switch. Empty values are asked for.
type Options struct {
	ProjectNames     []string
	BranchName       string
	UpdateProjects   *bool
	UpdateSubmodules *bool
	DryRun           bool
}

// StepKind tells which phase produced a step.
type StepKind string

const (
	StepDistinctSubmodule  StepKind = "submodule"
	StepProject            StepKind = "project"
	StepSubmoduleReference StepKind = "reference"
)

// Step records the switch of one working tree.
type Step struct {
	Kind       StepKind
	Repository string
	Path       string
	Updated    bool
	Failure    error
}

// Result reports a switch run.
type Result struct {
	BranchName string
	Cancelled  bool
	DryRun     bool
	Steps      []Step
}

// Failures lists the steps that did not complete.
func (result Result) Failures() []Step {
	return lo.Filter(result.Steps, func(step Step, _ int) bool {
		return step.Failure != nil
	})
}

// Service switches branches across the project graph.
type Service struct {
	repositoryManager shared.GitRepositoryManager
	decisionProvider  decisions.Provider
	reporter          shared.Reporter
	logger            *zap.Logger
	metrics           *metrics.Recorder
}

// NewService constructs a Service.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if dependencies.Decisions == nil {
		return nil, ErrDecisionProviderNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repositoryManager: dependencies.RepositoryManager,
		decisionProvider:  dependencies.Decisions,
		reporter:          dependencies.Reporter,
		logger:            logger,
		metrics:           dependencies.Metrics,
	}, nil
}

type switchPlan struct {
	branchName       string
	updateProjects   bool
	updateSubmodules bool
	projects         []*graph.ProjectNode
}

// Switch asks for whatever the options leave open, confirms the plan and switches the repositories.
// Individual checkout and pull failures are recorded in the Result; only an unknown project is returned as an error.
func (service *Service) Switch(executionContext context.Context, snapshot projects.Snapshot, options Options) (Result, error) {
	plan, planError := service.plan(executionContext, graph.Build(snapshot.Configuration()), options)
	if planError != nil {
		return Result{}, planError
	}
	result := Result{BranchName: plan.branchName, DryRun: options.DryRun}

	references := lo.FlatMap(plan.projects, func(project *graph.ProjectNode, _ int) []*graph.SubmoduleRef {
		return project.SelectedSubmodules
	})
	ui.RenderConfigurationSummary(service.reporter, []ui.SummaryEntry{
		{Label: summaryLabelBranchConstant, Value: plan.branchName},
		{Label: summaryLabelProjectsConstant, Value: ui.ListValue(lo.Map(plan.projects, func(project *graph.ProjectNode, _ int) string { return project.Name }))},
		{Label: summaryLabelSubmodulesConstant, Value: ui.ListValue(lo.Map(references, func(reference *graph.SubmoduleRef, _ int) string { return referenceName(reference) }))},
		{Label: summaryLabelUpdateProjectsConstant, Value: strconv.FormatBool(plan.updateProjects)},
		{Label: summaryLabelUpdateSubmodulesConstant, Value: strconv.FormatBool(plan.updateSubmodules)},
	})
	confirmed, confirmError := service.decisionProvider.Confirm(executionContext, decisions.ConfirmRequest{
		Key:     decisions.KeyContinue,
		Prompt:  continuePromptConstant,
		Default: true,
	})
	if confirmError != nil || !confirmed {
		service.logger.Info(switchCancelledMessageConstant)
		result.Cancelled = true
		return result, confirmError
	}
	if options.DryRun {
		service.logger.Info(dryRunMessageConstant, zap.String(logFieldBranchConstant, plan.branchName))
		return result, nil
	}

	distinctNames, grouped := graph.GroupByName(references)
	for _, name := range distinctNames {
		primary := grouped[name][0]
		result.Steps = append(result.Steps, service.switchRepository(executionContext, StepDistinctSubmodule, name, primary.RepositoryRef, plan.branchName, plan.updateSubmodules, primary.BaseBranch, repoerrors.KindSubmoduleUpdate))
	}

	failedProjects := map[string]bool{}
	for _, project := range plan.projects {
		step := service.switchRepository(executionContext, StepProject, project.Name, project.RepositoryRef, plan.branchName, plan.updateProjects, project.BaseBranch, repoerrors.KindBranchUpdate)
		failedProjects[project.Name] = isSwitchFailure(step.Failure)
		result.Steps = append(result.Steps, step)
	}

	for _, reference := range references {
		if failedProjects[reference.Project.Name] {
			service.logger.Warn(referenceSkippedMessageConstant, zap.String(logFieldRepositoryConstant, referenceName(reference)))
			continue
		}
		result.Steps = append(result.Steps, service.switchRepository(executionContext, StepSubmoduleReference, referenceName(reference), reference.RepositoryRef, plan.branchName, true, plan.branchName, repoerrors.KindSubmoduleUpdate))
	}
	return result, nil
}

func (service *Service) plan(executionContext context.Context, repositoryGraph *graph.Graph, options Options) (switchPlan, error) {
	plan := switchPlan{branchName: strings.TrimSpace(options.BranchName)}
	if len(plan.branchName) == 0 {
		branchName, branchError := service.decisionProvider.Text(executionContext, decisions.TextRequest{
			Key:      decisions.KeySwitchBranch,
			Prompt:   branchPromptConstant,
			Validate: decisions.RequireNonEmpty,
		})
		if branchError != nil {
			return switchPlan{}, branchError
		}
		plan.branchName = strings.TrimSpace(branchName)
	}

	var toggleError error
	if plan.updateProjects, toggleError = service.toggle(executionContext, options.UpdateProjects, decisions.KeyUpdateProjects, updateProjectsPromptConstant); toggleError != nil {
		return switchPlan{}, toggleError
	}
	if plan.updateSubmodules, toggleError = service.toggle(executionContext, options.UpdateSubmodules, decisions.KeyUpdateSubmodules, updateSubmodulesPromptConstant); toggleError != nil {
		return switchPlan{}, toggleError
	}

	projectNames, selectionError := service.selectProjects(executionContext, repositoryGraph, options.ProjectNames)
	if selectionError != nil {
		return switchPlan{}, selectionError
	}
	plan.projects = repositoryGraph.Select(projectNames).Projects

	for _, project := range plan.projects {
		declaredNames := project.SubmoduleNames()
		if len(declaredNames) == 0 {
			continue
		}
		selectedNames, submoduleError := service.decisionProvider.ChooseMany(executionContext, decisions.MultiChoiceRequest{
			Key:      decisions.KeySelectSubmodules,
			Subject:  project.Name,
			Prompt:   fmt.Sprintf(selectSubmodulesPromptTemplateConstant, project.Name),
			Options:  decisions.OptionsFromValues(declaredNames),
			Defaults: declaredNames,
		})
		if submoduleError != nil {
			return switchPlan{}, submoduleError
		}
		project.SelectSubmodules(selectedNames)
	}
	return plan, nil
}

func (service *Service) toggle(executionContext context.Context, preset *bool, key decisions.Key, prompt string) (bool, error) {
	if preset != nil {
		return *preset, nil
	}
	return service.decisionProvider.Confirm(executionContext, decisions.ConfirmRequest{Key: key, Prompt: prompt})
}

func (service *Service) selectProjects(executionContext context.Context, repositoryGraph *graph.Graph, requestedNames []string) ([]string, error) {
	configuredNames := repositoryGraph.ProjectNames()
	if len(requestedNames) > 0 {
		for _, requestedName := range requestedNames {
			if !lo.Contains(configuredNames, requestedName) {
				return nil, repoerrors.New(repoerrors.KindConfiguration, selectionSubjectConstant, fmt.Errorf(unknownProjectTemplateConstant, ErrUnknownProject, requestedName))
			}
		}
		return requestedNames, nil
	}
	if len(configuredNames) == 0 {
		return nil, nil
	}
	return service.decisionProvider.ChooseMany(executionContext, decisions.MultiChoiceRequest{
		Key:      decisions.KeySelectProjects,
		Prompt:   selectProjectsPromptConstant,
		Options:  decisions.OptionsFromValues(configuredNames),
		Defaults: configuredNames,
	})
}

// switchRepository checks out the branch and, when requested, pulls pullBranch from the repository's remote.
func (service *Service) switchRepository(executionContext context.Context, kind StepKind, name string, repository graph.RepositoryRef, branchName string, update bool, pullBranch string, updateKind repoerrors.Kind) Step {
	step := Step{Kind: kind, Repository: name, Path: repository.Path}
	repositoryLogger := service.logger.With(
		zap.String(logFieldRepositoryConstant, name),
		zap.String(logFieldPathConstant, repository.Path),
		zap.String(logFieldBranchConstant, branchName),
	)

	checkoutError := service.repositoryManager.Checkout(executionContext, repository.Path, branchName)
	service.metrics.Record(metrics.OperationBranchSwitch, checkoutError)
	if checkoutError != nil {
		step.Failure = repoerrors.New(repoerrors.KindBranchSelection, name, checkoutError)
		repositoryLogger.Error(switchFailedMessageConstant, zap.Error(checkoutError))
		return step
	}
	repositoryLogger.Info(repositorySwitchedMessageConstant)
	if !update {
		return step
	}

	if pullError := service.repositoryManager.Pull(executionContext, repository.Path, repository.RemoteName, pullBranch); pullError != nil {
		step.Failure = repoerrors.New(updateKind, name, pullError)
		repositoryLogger.Error(updateFailedMessageConstant, zap.String(logFieldBaseBranchConstant, pullBranch), zap.Error(pullError))
		return step
	}
	step.Updated = true
	repositoryLogger.Info(repositoryUpdatedMessageConstant, zap.String(logFieldBaseBranchConstant, pullBranch))
	return step
}

func isSwitchFailure(failure error) bool {
	return errors.Is(failure, repoerrors.ErrBranchSelection)
}

func referenceName(reference *graph.SubmoduleRef) string {
	if reference.Project == nil {
		return reference.Name
	}
	return fmt.Sprintf(referenceNameTemplateConstant, reference.Project.Name, reference.Name)
}
