// Package graph resolves project and submodule configuration into the working graph of repository handles
// that every link stage reads and annotates.
package graph

import (
	"path/filepath"

	"github.com/samber/lo"

	"github.com/temirov/gitcaptain/internal/projects"
)

// RepositoryRef identifies one git working tree.
type RepositoryRef struct {
	Name         string
	Path         string
	RemoteName   string
	RemoteURL    string
	BaseBranch   string
	RepositoryID string
}

// SubmoduleRef is one project's reference to a submodule. The same Name may be referenced by several projects.
type SubmoduleRef struct {
	RepositoryRef
	RelativePath string
	Project      *ProjectNode
}

// ProjectNode is a project together with its declared submodules and its feature branch state.
type ProjectNode struct {
	RepositoryRef
	Submodules         []*SubmoduleRef
	SelectedSubmodules []*SubmoduleRef
	Branch             FeatureBranchState
}

// Graph owns the nodes for a single run.
type Graph struct {
	Projects []*ProjectNode
}

// Build creates one node per project and one reference per declared submodule, preserving declaration order.
// Paths are not checked here.
func Build(configuration projects.Configuration) *Graph {
	built := &Graph{Projects: make([]*ProjectNode, 0, len(configuration.Projects))}
	for _, projectConfiguration := range configuration.Projects {
		project := &ProjectNode{
			RepositoryRef: RepositoryRef{
				Name:         projectConfiguration.Name,
				Path:         projectConfiguration.Path,
				RemoteName:   projectConfiguration.RemoteName,
				RemoteURL:    projectConfiguration.RemoteURL,
				BaseBranch:   projectConfiguration.BaseBranch,
				RepositoryID: projectConfiguration.RepositoryID,
			},
			Branch: FeatureBranchState{Status: BranchStatusUnresolved},
		}
		for _, submoduleConfiguration := range projectConfiguration.Submodules {
			relativePath := submoduleConfiguration.RelativePath()
			project.Submodules = append(project.Submodules, &SubmoduleRef{
				RepositoryRef: RepositoryRef{
					Name:         submoduleConfiguration.Name,
					Path:         filepath.Join(projectConfiguration.Path, relativePath),
					RemoteName:   submoduleConfiguration.RemoteName,
					RemoteURL:    submoduleConfiguration.RemoteURL,
					BaseBranch:   submoduleConfiguration.BaseBranch,
					RepositoryID: submoduleConfiguration.RepositoryID,
				},
				RelativePath: relativePath,
				Project:      project,
			})
		}
		built.Projects = append(built.Projects, project)
	}
	return built
}

// Project finds a node by name.
func (repositoryGraph *Graph) Project(name string) (*ProjectNode, bool) {
	return lo.Find(repositoryGraph.Projects, func(project *ProjectNode) bool {
		return project.Name == name
	})
}

// ProjectNames lists project names in declaration order.
func (repositoryGraph *Graph) ProjectNames() []string {
	return lo.Map(repositoryGraph.Projects, func(project *ProjectNode, _ int) string {
		return project.Name
	})
}

// Select returns a graph holding only the named projects, in declaration order. Nodes are shared, not copied.
func (repositoryGraph *Graph) Select(names []string) *Graph {
	return &Graph{Projects: lo.Filter(repositoryGraph.Projects, func(project *ProjectNode, _ int) bool {
		return lo.Contains(names, project.Name)
	})}
}

// Active returns the projects whose branch resolution has not failed.
func (repositoryGraph *Graph) Active() []*ProjectNode {
	return lo.Filter(repositoryGraph.Projects, func(project *ProjectNode, _ int) bool {
		return !project.Branch.Failed()
	})
}

// SubmoduleReferences lists every per-project submodule reference.
func (repositoryGraph *Graph) SubmoduleReferences() []*SubmoduleRef {
	return lo.FlatMap(repositoryGraph.Projects, func(project *ProjectNode, _ int) []*SubmoduleRef {
		return project.Submodules
	})
}

// UniqueSubmodules lists distinct submodule names in first-reference order.
func (repositoryGraph *Graph) UniqueSubmodules() []string {
	return uniqueNames(repositoryGraph.SubmoduleReferences())
}

// SelectedReferences lists the submodule references selected on active projects.
func (repositoryGraph *Graph) SelectedReferences() []*SubmoduleRef {
	return lo.FlatMap(repositoryGraph.Active(), func(project *ProjectNode, _ int) []*SubmoduleRef {
		return project.SelectedSubmodules
	})
}

// Submodule finds a declared submodule by name.
func (project *ProjectNode) Submodule(name string) (*SubmoduleRef, bool) {
	return lo.Find(project.Submodules, func(submodule *SubmoduleRef) bool {
		return submodule.Name == name
	})
}

// SubmoduleNames lists declared submodule names in declaration order.
func (project *ProjectNode) SubmoduleNames() []string {
	return uniqueNames(project.Submodules)
}

// SelectSubmodules records which declared submodules take part in the run, keeping declaration order.
func (project *ProjectNode) SelectSubmodules(names []string) {
	project.SelectedSubmodules = lo.Filter(project.Submodules, func(submodule *SubmoduleRef, _ int) bool {
		return lo.Contains(names, submodule.Name)
	})
}

// GroupByName groups references by submodule name and returns the distinct names in first-reference order.
func GroupByName(references []*SubmoduleRef) ([]string, map[string][]*SubmoduleRef) {
	grouped := lo.GroupBy(references, func(reference *SubmoduleRef) string {
		return reference.Name
	})
	return uniqueNames(references), grouped
}

func uniqueNames(references []*SubmoduleRef) []string {
	return lo.Uniq(lo.Map(references, func(reference *SubmoduleRef, _ int) string {
		return reference.Name
	}))
}
