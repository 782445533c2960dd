package projects

import (
	"errors"
	"fmt"
	"strings"
)

const (
	unknownProjectMessageConstant    = "unknown project"
	unknownSubmoduleMessageConstant  = "unknown submodule"
	unknownEntryTemplateConstant     = "%w: %s"
	submoduleSubjectTemplateConstant = "%s/%s"
)

// ErrUnknownProject indicates a snapshot lookup for a project that is not configured.
var ErrUnknownProject = errors.New(unknownProjectMessageConstant)

// ErrUnknownSubmodule indicates a snapshot lookup for a submodule the project does not declare.
var ErrUnknownSubmodule = errors.New(unknownSubmoduleMessageConstant)

// Snapshot is an immutable view of the configuration. Updates return new snapshots.
type Snapshot struct {
	configuration Configuration
}

// NewSnapshot captures a deep copy of the configuration.
func NewSnapshot(configuration Configuration) Snapshot {
	return Snapshot{configuration: configuration.clone()}
}

// Configuration returns a deep copy of the captured configuration.
func (snapshot Snapshot) Configuration() Configuration {
	return snapshot.configuration.clone()
}

// Projects returns a deep copy of the project list in declaration order.
func (snapshot Snapshot) Projects() []ProjectConfiguration {
	return snapshot.configuration.clone().Projects
}

// ProjectNames lists configured project names in declaration order.
func (snapshot Snapshot) ProjectNames() []string {
	names := make([]string, 0, len(snapshot.configuration.Projects))
	for _, project := range snapshot.configuration.Projects {
		names = append(names, project.Name)
	}
	return names
}

// Project returns a copy of the named project.
func (snapshot Snapshot) Project(name string) (ProjectConfiguration, bool) {
	for _, project := range snapshot.Projects() {
		if project.Name == name {
			return project, true
		}
	}
	return ProjectConfiguration{}, false
}

// Provider returns the named provider configuration.
func (snapshot Snapshot) Provider(name string) (PullRequestProviderConfiguration, bool) {
	return snapshot.configuration.Provider(name)
}

// ProviderNames lists configured provider names in declaration order.
func (snapshot Snapshot) ProviderNames() []string {
	names := make([]string, 0, len(snapshot.configuration.PullRequestProviders))
	for _, provider := range snapshot.configuration.PullRequestProviders {
		names = append(names, provider.Provider)
	}
	return names
}

// WithProjectRemote returns a snapshot where the project points at the remote.
func (snapshot Snapshot) WithProjectRemote(projectName string, remoteName string, remoteURL string) (Snapshot, error) {
	updated := snapshot.configuration.clone()
	for projectIndex := range updated.Projects {
		if updated.Projects[projectIndex].Name != projectName {
			continue
		}
		updated.Projects[projectIndex].RemoteName = strings.TrimSpace(remoteName)
		updated.Projects[projectIndex].RemoteURL = strings.TrimSpace(remoteURL)
		return Snapshot{configuration: updated}, nil
	}
	return snapshot, fmt.Errorf(unknownEntryTemplateConstant, ErrUnknownProject, projectName)
}

// WithSubmoduleRemote returns a snapshot where the project's submodule points at the remote.
func (snapshot Snapshot) WithSubmoduleRemote(projectName string, submoduleName string, remoteName string, remoteURL string) (Snapshot, error) {
	updated := snapshot.configuration.clone()
	for projectIndex := range updated.Projects {
		project := &updated.Projects[projectIndex]
		if project.Name != projectName {
			continue
		}
		for submoduleIndex := range project.Submodules {
			if project.Submodules[submoduleIndex].Name != submoduleName {
				continue
			}
			project.Submodules[submoduleIndex].RemoteName = strings.TrimSpace(remoteName)
			project.Submodules[submoduleIndex].RemoteURL = strings.TrimSpace(remoteURL)
			return Snapshot{configuration: updated}, nil
		}
		return snapshot, fmt.Errorf(unknownEntryTemplateConstant, ErrUnknownSubmodule, fmt.Sprintf(submoduleSubjectTemplateConstant, projectName, submoduleName))
	}
	return snapshot, fmt.Errorf(unknownEntryTemplateConstant, ErrUnknownProject, projectName)
}

// Equal reports whether both snapshots describe the same projects and providers.
func (snapshot Snapshot) Equal(other Snapshot) bool {
	left := snapshot.configuration
	right := other.configuration
	if len(left.PullRequestProviders) != len(right.PullRequestProviders) || len(left.Projects) != len(right.Projects) {
		return false
	}
	for providerIndex := range left.PullRequestProviders {
		if left.PullRequestProviders[providerIndex] != right.PullRequestProviders[providerIndex] {
			return false
		}
	}
	for projectIndex := range left.Projects {
		if !projectsEqual(left.Projects[projectIndex], right.Projects[projectIndex]) {
			return false
		}
	}
	return true
}

func projectsEqual(left ProjectConfiguration, right ProjectConfiguration) bool {
	if left.Name != right.Name || left.RepositoryID != right.RepositoryID || left.Path != right.Path ||
		left.BaseBranch != right.BaseBranch || left.RemoteName != right.RemoteName || left.RemoteURL != right.RemoteURL {
		return false
	}
	if len(left.Submodules) != len(right.Submodules) {
		return false
	}
	for submoduleIndex := range left.Submodules {
		if left.Submodules[submoduleIndex] != right.Submodules[submoduleIndex] {
			return false
		}
	}
	return true
}
