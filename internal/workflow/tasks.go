package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	linkerMissingMessageConstant        = "link-submodules task requires a submodule linker"
	switcherMissingMessageConstant      = "switch-branch task requires a branch switcher"
	remoteChangerMissingMessageConstant = "change-remote task requires a remote changer"
	buildTaskErrorTemplateConstant      = "workflow step %d (%s): %w"
	configurationNotPersistedMessage    = "Remote changes applied but configuration path unknown; configuration not saved"
	logFieldTaskConstant                = "task"
	logFieldFailuresConstant            = "failures"
)

// TaskDefaults seeds step options with values from flags and the configuration file.
type TaskDefaults struct {
	Link   LinkTaskOptions
	Switch SwitchTaskOptions
	Remote RemoteTaskOptions
}

// BuildTasks converts the declarative configuration into executable tasks.
func BuildTasks(configuration Configuration, defaults TaskDefaults) ([]Task, error) {
	tasks := make([]Task, 0, len(configuration.Steps))
	for stepIndex, step := range configuration.Steps {
		task, buildError := BuildTask(step, defaults)
		if buildError != nil {
			return nil, fmt.Errorf(buildTaskErrorTemplateConstant, stepIndex+1, step.Task, buildError)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// BuildTask converts a single step into a task.
func BuildTask(step StepConfiguration, defaults TaskDefaults) (Task, error) {
	taskType, parseError := ParseTaskType(string(step.Task))
	if parseError != nil {
		return nil, parseError
	}
	switch taskType {
	case TaskTypeLinkSubmodules:
		options, decodeError := DecodeLinkOptions(step.Options, defaults.Link)
		if decodeError != nil {
			return nil, decodeError
		}
		return &LinkSubmodulesTask{Options: options}, nil
	case TaskTypeSwitchBranch:
		options, decodeError := DecodeSwitchOptions(step.Options, defaults.Switch)
		if decodeError != nil {
			return nil, decodeError
		}
		return &SwitchBranchTask{Options: options}, nil
	case TaskTypeChangeRemote:
		options, decodeError := DecodeRemoteOptions(step.Options, defaults.Remote)
		if decodeError != nil {
			return nil, decodeError
		}
		return &ChangeRemoteTask{Options: options}, nil
	default:
		return nil, fmt.Errorf(unsupportedTaskTemplateConstant, ErrUnsupportedTask, taskType)
	}
}

// LinkSubmodulesTask links the selected submodules to a common feature branch.
type LinkSubmodulesTask struct {
	Options LinkTaskOptions
}

// Type identifies the task.
func (task *LinkSubmodulesTask) Type() TaskType {
	return TaskTypeLinkSubmodules
}

// Execute runs the link pipeline against the current snapshot.
func (task *LinkSubmodulesTask) Execute(executionContext context.Context, environment *Environment, state *State) error {
	if environment.Linker == nil {
		return errors.New(linkerMissingMessageConstant)
	}
	result, linkError := environment.Linker.Link(executionContext, state.Snapshot, task.Options.LinkOptions())
	state.record(TaskOutcome{Task: task.Type(), Cancelled: result.Cancelled, Failures: len(result.FailedProjects())})
	return linkError
}

// SwitchBranchTask checks out a branch across projects and submodules.
type SwitchBranchTask struct {
	Options SwitchTaskOptions
}

// Type identifies the task.
func (task *SwitchBranchTask) Type() TaskType {
	return TaskTypeSwitchBranch
}

// Execute runs the switcher against the current snapshot.
func (task *SwitchBranchTask) Execute(executionContext context.Context, environment *Environment, state *State) error {
	if environment.Switcher == nil {
		return errors.New(switcherMissingMessageConstant)
	}
	result, switchError := environment.Switcher.Switch(executionContext, state.Snapshot, task.Options.SwitchOptions(environment.DryRun))
	state.record(TaskOutcome{Task: task.Type(), Cancelled: result.Cancelled, Failures: len(result.Failures())})
	return switchError
}

// ChangeRemoteTask updates remotes and hands the resulting snapshot to later tasks.
type ChangeRemoteTask struct {
	Options RemoteTaskOptions
}

// Type identifies the task.
func (task *ChangeRemoteTask) Type() TaskType {
	return TaskTypeChangeRemote
}

// Execute runs the remote changer, replaces the shared snapshot and persists the change when possible.
func (task *ChangeRemoteTask) Execute(executionContext context.Context, environment *Environment, state *State) error {
	if environment.RemoteChanger == nil {
		return errors.New(remoteChangerMissingMessageConstant)
	}
	original := state.Snapshot
	result, changeError := environment.RemoteChanger.Change(executionContext, original, task.Options.ChangeOptions(environment.DryRun))
	failures := 0
	for _, change := range result.Changes {
		if change.Failure != nil {
			failures++
		}
	}
	state.record(TaskOutcome{Task: task.Type(), Failures: failures})
	if changeError != nil {
		return changeError
	}

	state.Snapshot = result.Snapshot
	if !result.Changed() || environment.ConfigurationUpdater == nil {
		return nil
	}
	if len(environment.ConfigurationPath) == 0 {
		environment.logger().Warn(configurationNotPersistedMessage, zap.String(logFieldTaskConstant, string(task.Type())))
		return nil
	}
	_, updateError := environment.ConfigurationUpdater.Update(executionContext, environment.ConfigurationPath, original, result.Snapshot)
	return updateError
}

func (environment *Environment) logger() *zap.Logger {
	if environment.Logger == nil {
		return zap.NewNop()
	}
	return environment.Logger
}
