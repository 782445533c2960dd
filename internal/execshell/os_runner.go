package execshell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"

	"github.com/samber/lo"
)

const environmentAssignmentSeparatorConstant = "="

// nonInteractiveGitEnvironment keeps git from opening editors or credential prompts and pins the
// message locale so parsed output stays stable.
var nonInteractiveGitEnvironment = map[string]string{
	"GIT_TERMINAL_PROMPT": "0",
	"GIT_MERGE_AUTOEDIT":  "no",
	"GIT_EDITOR":          "true",
	"LC_ALL":              "C",
}

// OSCommandRunner executes commands with os/exec.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs a runner backed by os/exec.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// Run executes the command and captures its output. A non-zero exit is reported in the result, not as an error.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executable := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	executable.Dir = command.Details.WorkingDirectory
	executable.Env = commandEnvironment(command)

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	executable.Stdout = &standardOutputBuffer
	executable.Stderr = &standardErrorBuffer
	if len(command.Details.StandardInput) > 0 {
		executable.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	result := ExecutionResult{}
	if runError := executable.Run(); runError != nil {
		var exitError *exec.ExitError
		if !errors.As(runError, &exitError) {
			return ExecutionResult{}, runError
		}
		result.ExitCode = exitError.ExitCode()
	}
	result.StandardOutput = standardOutputBuffer.String()
	result.StandardError = standardErrorBuffer.String()
	return result, nil
}

// commandEnvironment layers the process environment, the git defaults and the command's own variables, later entries winning.
func commandEnvironment(command ShellCommand) []string {
	overrides := map[string]string{}
	if command.Name == CommandGit {
		overrides = lo.Assign(overrides, nonInteractiveGitEnvironment)
	}
	overrides = lo.Assign(overrides, command.Details.EnvironmentVariables)
	if len(overrides) == 0 {
		return nil
	}

	assignments := lo.MapToSlice(overrides, func(key string, value string) string {
		return key + environmentAssignmentSeparatorConstant + value
	})
	sort.Strings(assignments)
	return append(os.Environ(), assignments...)
}
