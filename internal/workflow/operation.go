package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/branches/switcher"
	"github.com/temirov/gitcaptain/internal/linking"
	"github.com/temirov/gitcaptain/internal/projects"
	"github.com/temirov/gitcaptain/internal/repos/remotes"
	"github.com/temirov/gitcaptain/internal/repos/shared"
)

// Task is one step of a workflow run.
type Task interface {
	Type() TaskType
	Execute(executionContext context.Context, environment *Environment, state *State) error
}

// SubmoduleLinker runs the link-submodules pipeline.
type SubmoduleLinker interface {
	Link(executionContext context.Context, snapshot projects.Snapshot, options linking.Options) (linking.Result, error)
}

// BranchSwitcher moves projects and submodules to a branch.
type BranchSwitcher interface {
	Switch(executionContext context.Context, snapshot projects.Snapshot, options switcher.Options) (switcher.Result, error)
}

// RemoteChanger repoints repositories at new remotes.
type RemoteChanger interface {
	Change(executionContext context.Context, snapshot projects.Snapshot, options remotes.Options) (remotes.Result, error)
}

// ConfigurationPersister stores a snapshot that differs from the loaded one.
type ConfigurationPersister interface {
	Update(executionContext context.Context, configurationPath string, original projects.Snapshot, updated projects.Snapshot) (projects.UpdateOutcome, error)
}

// Environment exposes shared collaborators for workflow tasks.
type Environment struct {
	Linker               SubmoduleLinker
	Switcher             BranchSwitcher
	RemoteChanger        RemoteChanger
	ConfigurationUpdater ConfigurationPersister
	ConfigurationPath    string
	Reporter             shared.Reporter
	Logger               *zap.Logger
	DryRun               bool
}

// TaskOutcome summarizes one executed task.
type TaskOutcome struct {
	Task      TaskType
	Cancelled bool
	Failures  int
}

// State carries the configuration snapshot shared by tasks. A task replaces Snapshot to hand a new configuration to
// the tasks after it.
type State struct {
	Snapshot projects.Snapshot
	Outcomes []TaskOutcome
}

// Failures totals the failures reported by every executed task.
func (state *State) Failures() int {
	total := 0
	for _, outcome := range state.Outcomes {
		total += outcome.Failures
	}
	return total
}

func (state *State) record(outcome TaskOutcome) {
	state.Outcomes = append(state.Outcomes, outcome)
}
