package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/decisions"
	"github.com/temirov/gitcaptain/internal/projects"
)

const (
	workflowExecutionErrorTemplateConstant = "workflow task %s failed: %w"
	workflowEnvironmentMissingMessage      = "workflow executor requires an environment"
	taskSelectionPromptConstant            = "Which task would you like to execute?"
	taskStartedMessageConstant             = "Executing task"
	taskFinishedMessageConstant            = "Task finished"
	taskTitleFieldConstant                 = "title"
)

// ErrEnvironmentNotConfigured indicates the executor was constructed without an environment.
var ErrEnvironmentNotConfigured = errors.New(workflowEnvironmentMissingMessage)

// Executor runs tasks in order against a shared state.
type Executor struct {
	tasks       []Task
	environment *Environment
}

// NewExecutor constructs an Executor instance.
func NewExecutor(tasks []Task, environment *Environment) *Executor {
	return &Executor{tasks: append([]Task{}, tasks...), environment: environment}
}

// Execute runs every task, stopping at the first task that returns an error. Tasks report per-repository failures
// through their outcomes and only return errors that make continuing pointless.
func (executor *Executor) Execute(executionContext context.Context, snapshot projects.Snapshot) (*State, error) {
	state := &State{Snapshot: snapshot}
	if executor.environment == nil {
		return state, ErrEnvironmentNotConfigured
	}
	logger := executor.environment.logger()

	for _, task := range executor.tasks {
		if task == nil {
			continue
		}
		if contextError := executionContext.Err(); contextError != nil {
			return state, contextError
		}
		logger.Info(taskStartedMessageConstant, zap.String(logFieldTaskConstant, string(task.Type())), zap.String(taskTitleFieldConstant, task.Type().Title()))
		if executeError := task.Execute(executionContext, executor.environment, state); executeError != nil {
			return state, fmt.Errorf(workflowExecutionErrorTemplateConstant, task.Type(), executeError)
		}
		logger.Info(taskFinishedMessageConstant, zap.String(logFieldTaskConstant, string(task.Type())), zap.Int(logFieldFailuresConstant, lastFailures(state)))
	}
	return state, nil
}

// ChooseTask asks which catalogue task to run when no sequence is configured.
func ChooseTask(executionContext context.Context, decisionProvider decisions.Provider) (TaskType, error) {
	options := make([]decisions.Option, 0, len(TaskTypes()))
	for _, taskType := range TaskTypes() {
		options = append(options, decisions.Option{Value: string(taskType), Label: taskType.Title()})
	}
	selected, choiceError := decisionProvider.Choose(executionContext, decisions.ChoiceRequest{
		Key:     decisions.KeySelectTask,
		Prompt:  taskSelectionPromptConstant,
		Options: options,
	})
	if choiceError != nil {
		return "", choiceError
	}
	return ParseTaskType(selected)
}

func lastFailures(state *State) int {
	if len(state.Outcomes) == 0 {
		return 0
	}
	return state.Outcomes[len(state.Outcomes)-1].Failures
}
