package workflow

import (
	"time"

	"github.com/temirov/gitcaptain/internal/projects"
	"github.com/temirov/gitcaptain/internal/workflow"
)

const (
	defaultGitTimeoutConstant      = 5 * time.Minute
	defaultProviderTimeoutConstant = 30 * time.Second
	defaultParallelismConstant     = 4
)

// CommandConfiguration captures the configuration values shared by the task commands.
type CommandConfiguration struct {
	Projects        projects.Configuration
	Link            workflow.LinkTaskOptions
	Switch          workflow.SwitchTaskOptions
	Remote          workflow.RemoteTaskOptions
	Workflow        workflow.Configuration
	AssumeYes       bool
	DryRun          bool
	Parallelism     int
	GitTimeout      time.Duration
	ProviderTimeout time.Duration
	MetricsTextfile string
}

// DefaultCommandConfiguration provides default settings for the task commands.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Parallelism:     defaultParallelismConstant,
		GitTimeout:      defaultGitTimeoutConstant,
		ProviderTimeout: defaultProviderTimeoutConstant,
	}
}

func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	sanitized := configuration
	if sanitized.Parallelism <= 0 {
		sanitized.Parallelism = defaultParallelismConstant
	}
	if sanitized.GitTimeout <= 0 {
		sanitized.GitTimeout = defaultGitTimeoutConstant
	}
	if sanitized.ProviderTimeout <= 0 {
		sanitized.ProviderTimeout = defaultProviderTimeoutConstant
	}
	return sanitized
}

func (configuration CommandConfiguration) taskDefaults() workflow.TaskDefaults {
	return workflow.TaskDefaults{Link: configuration.Link, Switch: configuration.Switch, Remote: configuration.Remote}
}
