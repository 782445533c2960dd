// Package gitrepotest provides a scripted git executor for exercising git-driven services without repositories.
package gitrepotest

import (
	"context"
	"strings"
	"sync"

	"github.com/temirov/gitcaptain/internal/execshell"
)

const (
	scriptedFailureExitCodeConstant = 1
)

// ExecutedCommand records one git invocation.
type ExecutedCommand struct {
	WorkingDirectory     string
	Arguments            []string
	EnvironmentVariables map[string]string
}

type scriptedResponse struct {
	workingDirectory string
	arguments        []string
	output           string
	failure          error
}

// ScriptedGitExecutor answers git invocations from registered responses and records every call.
// Responses match on working directory (empty matches any) and an argument prefix; the most recently
// registered match wins. Unmatched invocations succeed with empty output.
type ScriptedGitExecutor struct {
	mutex     sync.Mutex
	responses []scriptedResponse
	executed  []ExecutedCommand
}

// NewScriptedGitExecutor constructs an empty executor.
func NewScriptedGitExecutor() *ScriptedGitExecutor {
	return &ScriptedGitExecutor{}
}

// Respond registers standard output for matching invocations.
func (executor *ScriptedGitExecutor) Respond(workingDirectory string, output string, arguments ...string) *ScriptedGitExecutor {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	executor.responses = append(executor.responses, scriptedResponse{workingDirectory: workingDirectory, arguments: arguments, output: output})
	return executor
}

// Fail registers a failure for matching invocations. A nil failure produces a CommandFailedError.
func (executor *ScriptedGitExecutor) Fail(workingDirectory string, failure error, arguments ...string) *ScriptedGitExecutor {
	if failure == nil {
		failure = FailedCommand(workingDirectory, arguments...)
	}
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	executor.responses = append(executor.responses, scriptedResponse{workingDirectory: workingDirectory, arguments: arguments, failure: failure})
	return executor
}

// ExecuteGit implements shared.GitExecutor.
func (executor *ScriptedGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()

	executor.executed = append(executor.executed, ExecutedCommand{
		WorkingDirectory:     details.WorkingDirectory,
		Arguments:            append([]string{}, details.Arguments...),
		EnvironmentVariables: details.EnvironmentVariables,
	})

	for index := len(executor.responses) - 1; index >= 0; index-- {
		response := executor.responses[index]
		if !response.matches(details) {
			continue
		}
		if response.failure != nil {
			return execshell.ExecutionResult{}, response.failure
		}
		return execshell.ExecutionResult{StandardOutput: response.output}, nil
	}
	return execshell.ExecutionResult{}, nil
}

// Executed returns a copy of every recorded invocation in call order.
func (executor *ScriptedGitExecutor) Executed() []ExecutedCommand {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	return append([]ExecutedCommand{}, executor.executed...)
}

// Count returns how many recorded invocations match the working directory (empty matches any) and argument prefix.
func (executor *ScriptedGitExecutor) Count(workingDirectory string, arguments ...string) int {
	matcher := scriptedResponse{workingDirectory: workingDirectory, arguments: arguments}
	count := 0
	for _, command := range executor.Executed() {
		if matcher.matches(execshell.CommandDetails{WorkingDirectory: command.WorkingDirectory, Arguments: command.Arguments}) {
			count++
		}
	}
	return count
}

// Arguments returns the argument lists recorded for the working directory, in call order.
func (executor *ScriptedGitExecutor) Arguments(workingDirectory string) [][]string {
	recorded := [][]string{}
	for _, command := range executor.Executed() {
		if command.WorkingDirectory == workingDirectory {
			recorded = append(recorded, command.Arguments)
		}
	}
	return recorded
}

// FailedCommand builds the error a git process exiting with status 1 would produce.
func FailedCommand(workingDirectory string, arguments ...string) error {
	return execshell.CommandFailedError{
		Command: execshell.ShellCommand{
			Name:    execshell.CommandGit,
			Details: execshell.CommandDetails{Arguments: arguments, WorkingDirectory: workingDirectory},
		},
		Result: execshell.ExecutionResult{ExitCode: scriptedFailureExitCodeConstant, StandardError: "scripted failure"},
	}
}

func (response scriptedResponse) matches(details execshell.CommandDetails) bool {
	if len(response.workingDirectory) > 0 && response.workingDirectory != details.WorkingDirectory {
		return false
	}
	if len(response.arguments) > len(details.Arguments) {
		return false
	}
	for index, argument := range response.arguments {
		if details.Arguments[index] != argument {
			return false
		}
	}
	return true
}

// JoinLines renders git-style newline separated output.
func JoinLines(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}
