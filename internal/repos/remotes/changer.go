// Package remotes repoints projects and their submodules at new git remotes and records the change in a new
// configuration snapshot.
package remotes

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/decisions"
	"github.com/temirov/gitcaptain/internal/metrics"
	"github.com/temirov/gitcaptain/internal/projects"
	repoerrors "github.com/temirov/gitcaptain/internal/repos/errors"
	"github.com/temirov/gitcaptain/internal/repos/shared"
)

const (
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	decisionProviderMissingMessageConstant  = "decision provider not configured"
	unknownProjectMessageConstant           = "unknown project"
	unknownProjectTemplateConstant          = "%w: %q"
	selectionSubjectConstant                = "project selection"
	submoduleSubjectTemplateConstant        = "%s/%s"
	currentRemotesTemplateConstant          = "Current remotes for %s:\n"
	currentRemoteEntryTemplateConstant      = "- %s -> %s\n"
	noRemotesMessageConstant                = "- none\n"
	plannedChangeTemplateConstant           = "PLAN-UPDATE-REMOTE: %s %s -> %s\n"
	appliedChangeTemplateConstant           = "UPDATE-REMOTE-DONE: %s %s now %s\n"
	failedChangeTemplateConstant            = "UPDATE-REMOTE-SKIP: %s (error: failed to set %s URL)\n"
	selectProjectsPromptConstant            = "Projects whose remotes change"
	remoteNamePromptTemplateConstant        = "Remote name for %s"
	remoteURLPromptTemplateConstant         = "New remote URL for %s"
	listRemotesFailedMessageConstant        = "Could not list current remotes"
	remoteUpdateFailedMessageConstant       = "Remote update failed"
	remoteUpdatedMessageConstant            = "Remote updated"
	noProjectsSelectedMessageConstant       = "No projects selected; remotes unchanged"
	logFieldRepositoryConstant              = "repository"
	logFieldRemoteConstant                  = "remote"
	logFieldURLConstant                     = "url"
)

var (
	// ErrRepositoryManagerNotConfigured indicates the changer was constructed without git access.
	ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)
	// ErrDecisionProviderNotConfigured indicates the changer was constructed without a decision provider.
	ErrDecisionProviderNotConfigured = errors.New(decisionProviderMissingMessageConstant)
	// ErrUnknownProject indicates a requested project is not configured.
	ErrUnknownProject = errors.New(unknownProjectMessageConstant)
)

// Dependencies captures collaborators required to change remotes.
type Dependencies struct {
	RepositoryManager shared.GitRepositoryManager
	Decisions         decisions.Provider
	Reporter          shared.Reporter
	Logger            *zap.Logger
	Metrics           *metrics.Recorder
}

// Options configure one run. Empty ProjectNames means the projects are asked for.
type Options struct {
	ProjectNames []string
	DryRun       bool
}

// Change is one requested remote update. Submodule is empty for a project.
type Change struct {
	Project    string
	Submodule  string
	Path       string
	RemoteName string
	RemoteURL  string
	Applied    bool
	Failure    error
}

// Subject names the repository the change applies to.
func (change Change) Subject() string {
	if len(change.Submodule) == 0 {
		return change.Project
	}
	return fmt.Sprintf(submoduleSubjectTemplateConstant, change.Project, change.Submodule)
}

// Result carries the snapshot reflecting every applied change.
type Result struct {
	Snapshot projects.Snapshot
	Changes  []Change
}

// Changed reports whether any remote was updated.
func (result Result) Changed() bool {
	return lo.SomeBy(result.Changes, func(change Change) bool {
		return change.Applied
	})
}

// Changer asks for new remotes and applies them with git remote set-url.
type Changer struct {
	dependencies Dependencies
	logger       *zap.Logger
}

// NewChanger constructs a Changer.
func NewChanger(dependencies Dependencies) (*Changer, error) {
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
	return &Changer{dependencies: dependencies, logger: logger}, nil
}

// Change collects remote names and URLs for the selected projects and their submodules, then applies them.
// The returned snapshot only reflects changes git accepted; the input snapshot is never modified.
func (changer *Changer) Change(executionContext context.Context, snapshot projects.Snapshot, options Options) (Result, error) {
	result := Result{Snapshot: snapshot}
	selectedNames, selectionError := changer.selectProjects(executionContext, snapshot, options.ProjectNames)
	if selectionError != nil {
		return result, selectionError
	}
	if len(selectedNames) == 0 {
		changer.logger.Info(noProjectsSelectedMessageConstant)
		return result, nil
	}

	planned := []Change{}
	for _, projectName := range selectedNames {
		project, _ := snapshot.Project(projectName)
		projectChange, projectError := changer.ask(executionContext, Change{Project: project.Name, Path: project.Path}, project.RemoteName)
		if projectError != nil {
			return result, projectError
		}
		planned = append(planned, projectChange)

		for _, submodule := range project.Submodules {
			submoduleChange, submoduleError := changer.ask(executionContext, Change{
				Project:   project.Name,
				Submodule: submodule.Name,
				Path:      filepath.Join(project.Path, submodule.RelativePath()),
			}, submodule.RemoteName)
			if submoduleError != nil {
				return result, submoduleError
			}
			planned = append(planned, submoduleChange)
		}
	}

	for _, change := range planned {
		if options.DryRun {
			changer.printf(plannedChangeTemplateConstant, change.Subject(), change.RemoteName, change.RemoteURL)
			result.Changes = append(result.Changes, change)
			continue
		}
		applied, updatedSnapshot := changer.apply(executionContext, result.Snapshot, change)
		result.Snapshot = updatedSnapshot
		result.Changes = append(result.Changes, applied)
	}
	return result, nil
}

func (changer *Changer) ask(executionContext context.Context, change Change, configuredRemote string) (Change, error) {
	subject := change.Subject()
	changer.showRemotes(executionContext, subject, change.Path)

	defaultRemote := strings.TrimSpace(configuredRemote)
	if len(defaultRemote) == 0 {
		defaultRemote = shared.DefaultRemoteNameConstant
	}
	remoteName, nameError := changer.dependencies.Decisions.Text(executionContext, decisions.TextRequest{
		Key:      decisions.KeyRemoteName,
		Subject:  subject,
		Prompt:   fmt.Sprintf(remoteNamePromptTemplateConstant, subject),
		Default:  defaultRemote,
		Validate: decisions.RequireNonEmpty,
	})
	if nameError != nil {
		return change, nameError
	}
	remoteURL, urlError := changer.dependencies.Decisions.Text(executionContext, decisions.TextRequest{
		Key:      decisions.KeyRemoteURL,
		Subject:  subject,
		Prompt:   fmt.Sprintf(remoteURLPromptTemplateConstant, subject),
		Validate: decisions.RequireNonEmpty,
	})
	if urlError != nil {
		return change, urlError
	}
	change.RemoteName = strings.TrimSpace(remoteName)
	change.RemoteURL = strings.TrimSpace(remoteURL)
	return change, nil
}

func (changer *Changer) showRemotes(executionContext context.Context, subject string, repositoryPath string) {
	remotes, listError := changer.dependencies.RepositoryManager.Remotes(executionContext, repositoryPath)
	if listError != nil {
		changer.logger.Warn(listRemotesFailedMessageConstant, zap.String(logFieldRepositoryConstant, subject), zap.Error(listError))
		return
	}
	changer.printf(currentRemotesTemplateConstant, subject)
	if len(remotes) == 0 {
		changer.printf(noRemotesMessageConstant)
		return
	}
	for _, remote := range remotes {
		changer.printf(currentRemoteEntryTemplateConstant, remote.Name, remote.FetchURL)
	}
}

func (changer *Changer) apply(executionContext context.Context, snapshot projects.Snapshot, change Change) (Change, projects.Snapshot) {
	subject := change.Subject()
	setError := changer.dependencies.RepositoryManager.SetRemoteURL(executionContext, change.Path, change.RemoteName, change.RemoteURL)
	changer.dependencies.Metrics.Record(metrics.OperationRemoteUpdate, setError)
	if setError != nil {
		change.Failure = repoerrors.New(repoerrors.KindRemoteUpdate, subject, setError)
		changer.logger.Error(remoteUpdateFailedMessageConstant, zap.String(logFieldRepositoryConstant, subject), zap.String(logFieldRemoteConstant, change.RemoteName), zap.Error(setError))
		changer.printf(failedChangeTemplateConstant, subject, change.RemoteName)
		return change, snapshot
	}

	var updatedSnapshot projects.Snapshot
	var snapshotError error
	if len(change.Submodule) == 0 {
		updatedSnapshot, snapshotError = snapshot.WithProjectRemote(change.Project, change.RemoteName, change.RemoteURL)
	} else {
		updatedSnapshot, snapshotError = snapshot.WithSubmoduleRemote(change.Project, change.Submodule, change.RemoteName, change.RemoteURL)
	}
	if snapshotError != nil {
		change.Failure = repoerrors.New(repoerrors.KindRemoteUpdate, subject, snapshotError)
		return change, snapshot
	}

	change.Applied = true
	changer.logger.Info(remoteUpdatedMessageConstant, zap.String(logFieldRepositoryConstant, subject), zap.String(logFieldRemoteConstant, change.RemoteName), zap.String(logFieldURLConstant, change.RemoteURL))
	changer.printf(appliedChangeTemplateConstant, subject, change.RemoteName, change.RemoteURL)
	return change, updatedSnapshot
}

func (changer *Changer) selectProjects(executionContext context.Context, snapshot projects.Snapshot, requestedNames []string) ([]string, error) {
	configuredNames := snapshot.ProjectNames()
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
	return changer.dependencies.Decisions.ChooseMany(executionContext, decisions.MultiChoiceRequest{
		Key:     decisions.KeySelectProjects,
		Prompt:  selectProjectsPromptConstant,
		Options: decisions.OptionsFromValues(configuredNames),
	})
}

func (changer *Changer) printf(format string, arguments ...any) {
	if changer.dependencies.Reporter == nil {
		return
	}
	changer.dependencies.Reporter.Printf(format, arguments...)
}
