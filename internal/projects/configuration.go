// Package projects models the project and submodule configuration and the immutable snapshots
// passed between workflow tasks.
package projects

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	repoerrors "github.com/temirov/gitcaptain/internal/repos/errors"
	"github.com/temirov/gitcaptain/internal/repos/shared"
	pathutils "github.com/temirov/gitcaptain/internal/utils/path"
)

const (
	configurationSubjectConstant           = "projects configuration"
	duplicateProjectNameTemplateConstant   = "duplicate project name %q"
	duplicateSubmoduleNameTemplateConstant = "project %q declares submodule %q more than once"
	duplicateProviderTemplateConstant      = "duplicate pull request provider %q"
	fieldValidationTemplateConstant        = "%s failed %q validation"
	validationJoinSeparatorConstant        = "; "
)

// PullRequestProviderConfiguration describes one pull request hosting service.
type PullRequestProviderConfiguration struct {
	Provider     string `mapstructure:"provider" yaml:"provider" json:"provider" validate:"required,oneof=gitlab azure-devops github"`
	Project      string `mapstructure:"project" yaml:"project,omitempty" json:"project,omitempty"`
	Organization string `mapstructure:"organization" yaml:"organization,omitempty" json:"organization,omitempty"`
	Host         string `mapstructure:"host" yaml:"host,omitempty" json:"host,omitempty" validate:"omitempty,url"`
}

// SubmoduleConfiguration describes a submodule checked out inside a project.
// Path is relative to the project and defaults to Name.
type SubmoduleConfiguration struct {
	Name         string `mapstructure:"name" yaml:"name" json:"name" validate:"required"`
	Path         string `mapstructure:"path" yaml:"path,omitempty" json:"path,omitempty"`
	BaseBranch   string `mapstructure:"base_branch" yaml:"base_branch" json:"base_branch" validate:"required"`
	RemoteName   string `mapstructure:"remote_name" yaml:"remote_name" json:"remote_name" validate:"required"`
	RemoteURL    string `mapstructure:"remote_url" yaml:"remote_url,omitempty" json:"remote_url,omitempty"`
	RepositoryID string `mapstructure:"repository_id" yaml:"repository_id,omitempty" json:"repository_id,omitempty"`
}

// RelativePath returns the submodule location inside its project.
func (submodule SubmoduleConfiguration) RelativePath() string {
	if len(strings.TrimSpace(submodule.Path)) > 0 {
		return submodule.Path
	}
	return submodule.Name
}

// ProjectConfiguration describes a top-level repository.
type ProjectConfiguration struct {
	Name         string                   `mapstructure:"name" yaml:"name" json:"name" validate:"required"`
	RepositoryID string                   `mapstructure:"repository_id" yaml:"repository_id,omitempty" json:"repository_id,omitempty"`
	Path         string                   `mapstructure:"path" yaml:"path" json:"path" validate:"required"`
	BaseBranch   string                   `mapstructure:"base_branch" yaml:"base_branch" json:"base_branch" validate:"required"`
	RemoteName   string                   `mapstructure:"remote_name" yaml:"remote_name" json:"remote_name" validate:"required"`
	RemoteURL    string                   `mapstructure:"remote_url" yaml:"remote_url,omitempty" json:"remote_url,omitempty"`
	Submodules   []SubmoduleConfiguration `mapstructure:"submodules" yaml:"submodules,omitempty" json:"submodules,omitempty" validate:"dive"`
}

// Configuration is the validated project inventory.
type Configuration struct {
	PullRequestProviders []PullRequestProviderConfiguration `mapstructure:"pr_providers" yaml:"pr_providers,omitempty" json:"pr_providers,omitempty" validate:"dive"`
	Projects             []ProjectConfiguration             `mapstructure:"projects" yaml:"projects" json:"projects" validate:"dive"`
}

var configurationValidator = validator.New(validator.WithRequiredStructEnabled())

// Normalize trims values, defaults remote names and expands home-relative project paths.
func (configuration Configuration) Normalize(expander *pathutils.HomeExpander) Configuration {
	normalized := configuration.clone()
	for providerIndex := range normalized.PullRequestProviders {
		provider := &normalized.PullRequestProviders[providerIndex]
		provider.Provider = strings.ToLower(strings.TrimSpace(provider.Provider))
		provider.Project = strings.TrimSpace(provider.Project)
		provider.Organization = strings.TrimSpace(provider.Organization)
		provider.Host = strings.TrimRight(strings.TrimSpace(provider.Host), "/")
	}
	for projectIndex := range normalized.Projects {
		project := &normalized.Projects[projectIndex]
		project.Name = strings.TrimSpace(project.Name)
		project.RepositoryID = strings.TrimSpace(project.RepositoryID)
		project.Path = expander.Expand(project.Path)
		project.BaseBranch = strings.TrimSpace(project.BaseBranch)
		project.RemoteName = defaultRemoteName(project.RemoteName)
		project.RemoteURL = strings.TrimSpace(project.RemoteURL)
		for submoduleIndex := range project.Submodules {
			submodule := &project.Submodules[submoduleIndex]
			submodule.Name = strings.TrimSpace(submodule.Name)
			submodule.Path = strings.TrimSpace(submodule.Path)
			submodule.BaseBranch = strings.TrimSpace(submodule.BaseBranch)
			submodule.RemoteName = defaultRemoteName(submodule.RemoteName)
			submodule.RemoteURL = strings.TrimSpace(submodule.RemoteURL)
			submodule.RepositoryID = strings.TrimSpace(submodule.RepositoryID)
		}
	}
	return normalized
}

// Validate checks structural shape and name uniqueness. Failures are configuration errors and fatal to a run.
func (configuration Configuration) Validate() error {
	problems := []string{}

	if validationError := configurationValidator.Struct(configuration); validationError != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(validationError, &fieldErrors) {
			return repoerrors.New(repoerrors.KindConfiguration, configurationSubjectConstant, validationError)
		}
		for _, fieldError := range fieldErrors {
			problems = append(problems, fmt.Sprintf(fieldValidationTemplateConstant, fieldError.Namespace(), fieldError.Tag()))
		}
	}

	seenProviders := map[string]struct{}{}
	for _, provider := range configuration.PullRequestProviders {
		if _, duplicate := seenProviders[provider.Provider]; duplicate {
			problems = append(problems, fmt.Sprintf(duplicateProviderTemplateConstant, provider.Provider))
		}
		seenProviders[provider.Provider] = struct{}{}
	}

	seenProjects := map[string]struct{}{}
	for _, project := range configuration.Projects {
		if _, duplicate := seenProjects[project.Name]; duplicate {
			problems = append(problems, fmt.Sprintf(duplicateProjectNameTemplateConstant, project.Name))
		}
		seenProjects[project.Name] = struct{}{}

		seenSubmodules := map[string]struct{}{}
		for _, submodule := range project.Submodules {
			if _, duplicate := seenSubmodules[submodule.Name]; duplicate {
				problems = append(problems, fmt.Sprintf(duplicateSubmoduleNameTemplateConstant, project.Name, submodule.Name))
			}
			seenSubmodules[submodule.Name] = struct{}{}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return repoerrors.New(repoerrors.KindConfiguration, configurationSubjectConstant, errors.New(strings.Join(problems, validationJoinSeparatorConstant)))
}

// Provider returns the provider configuration registered under the name.
func (configuration Configuration) Provider(name string) (PullRequestProviderConfiguration, bool) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))
	for _, provider := range configuration.PullRequestProviders {
		if provider.Provider == normalizedName {
			return provider, true
		}
	}
	return PullRequestProviderConfiguration{}, false
}

func (configuration Configuration) clone() Configuration {
	cloned := Configuration{
		PullRequestProviders: append([]PullRequestProviderConfiguration{}, configuration.PullRequestProviders...),
		Projects:             make([]ProjectConfiguration, len(configuration.Projects)),
	}
	for projectIndex, project := range configuration.Projects {
		project.Submodules = append([]SubmoduleConfiguration{}, project.Submodules...)
		cloned.Projects[projectIndex] = project
	}
	return cloned
}

func defaultRemoteName(remoteName string) string {
	trimmed := strings.TrimSpace(remoteName)
	if len(trimmed) == 0 {
		return shared.DefaultRemoteNameConstant
	}
	return trimmed
}
