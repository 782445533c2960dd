package ui

import (
	"path/filepath"

	"github.com/temirov/gitcaptain/internal/gitrepo"
	"github.com/temirov/gitcaptain/internal/projects"
	"github.com/temirov/gitcaptain/internal/repos/shared"
)

const (
	statusTitleConstant                  = "REPOSITORY STATUS"
	projectStatusTemplateConstant        = "%s [%s] %s %s\n"
	submoduleStatusTemplateConstant      = "  %s [%s] pinned %s, checked out %s%s\n"
	repositoryUnavailableTemplate        = "%s: unavailable (%v)\n"
	submoduleUnavailableTemplateConstant = "  %s: unavailable (%v)\n"
	detachedBranchLabelConstant          = "detached"
	cleanLabelConstant                   = "clean"
	dirtyLabelConstant                   = "modified"
	pinDriftSuffixConstant               = " (differs)"
	shortCommitLengthConstant            = 7
)

// RepositoryInspector reads repository state without changing it.
type RepositoryInspector interface {
	Inspect(repositoryPath string) (gitrepo.RepositoryStatus, error)
	PinnedCommit(repositoryPath string, submodulePath string) (string, error)
}

// SubmoduleStatus pairs the commit a project pins with the submodule's checked out HEAD.
type SubmoduleStatus struct {
	Name         string
	Status       gitrepo.RepositoryStatus
	PinnedCommit string
	Failure      error
}

// Drifted reports whether the submodule HEAD differs from the pinned commit.
func (status SubmoduleStatus) Drifted() bool {
	return status.Failure == nil && len(status.PinnedCommit) > 0 && status.PinnedCommit != status.Status.Head
}

// ProjectStatus describes one project and its submodules.
type ProjectStatus struct {
	Name       string
	Status     gitrepo.RepositoryStatus
	Failure    error
	Submodules []SubmoduleStatus
}

// CollectStatus inspects the named projects, or every project when names is empty.
func CollectStatus(inspector RepositoryInspector, snapshot projects.Snapshot, names []string) []ProjectStatus {
	if len(names) == 0 {
		names = snapshot.ProjectNames()
	}
	statuses := make([]ProjectStatus, 0, len(names))
	for _, name := range names {
		project, found := snapshot.Project(name)
		if !found {
			continue
		}
		projectStatus := ProjectStatus{Name: project.Name}
		projectStatus.Status, projectStatus.Failure = inspector.Inspect(project.Path)
		for _, submodule := range project.Submodules {
			submoduleStatus := SubmoduleStatus{Name: submodule.Name}
			submoduleStatus.Status, submoduleStatus.Failure = inspector.Inspect(filepath.Join(project.Path, submodule.RelativePath()))
			if submoduleStatus.Failure == nil {
				submoduleStatus.PinnedCommit, submoduleStatus.Failure = inspector.PinnedCommit(project.Path, filepath.ToSlash(submodule.RelativePath()))
			}
			projectStatus.Submodules = append(projectStatus.Submodules, submoduleStatus)
		}
		statuses = append(statuses, projectStatus)
	}
	return statuses
}

// RenderStatus prints one line per project followed by one line per submodule.
func RenderStatus(reporter shared.Reporter, statuses []ProjectStatus) {
	if reporter == nil {
		return
	}
	renderTitle(reporter, statusTitleConstant)
	for _, projectStatus := range statuses {
		if projectStatus.Failure != nil {
			reporter.Printf(repositoryUnavailableTemplate, projectStatus.Name, projectStatus.Failure)
		} else {
			reporter.Printf(projectStatusTemplateConstant, projectStatus.Name, branchLabel(projectStatus.Status), projectStatus.Status.ShortHead(), cleanliness(projectStatus.Status))
		}
		for _, submoduleStatus := range projectStatus.Submodules {
			if submoduleStatus.Failure != nil {
				reporter.Printf(submoduleUnavailableTemplateConstant, submoduleStatus.Name, submoduleStatus.Failure)
				continue
			}
			suffix := ""
			if submoduleStatus.Drifted() {
				suffix = pinDriftSuffixConstant
			}
			reporter.Printf(submoduleStatusTemplateConstant, submoduleStatus.Name, branchLabel(submoduleStatus.Status), shortCommit(submoduleStatus.PinnedCommit), submoduleStatus.Status.ShortHead(), suffix)
		}
	}
}

func branchLabel(status gitrepo.RepositoryStatus) string {
	if status.Detached {
		return detachedBranchLabelConstant
	}
	return status.Branch
}

func cleanliness(status gitrepo.RepositoryStatus) string {
	if status.Clean {
		return cleanLabelConstant
	}
	return dirtyLabelConstant
}

func shortCommit(commit string) string {
	if len(commit) <= shortCommitLengthConstant {
		return commit
	}
	return commit[:shortCommitLengthConstant]
}
