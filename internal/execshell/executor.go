package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CommandName identifies an executable invoked through the shell executor.
type CommandName string

const (
	// CommandGit invokes the git executable.
	CommandGit CommandName = "git"
)

const (
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell executor command runner not configured"
	commandFailedErrorTemplateConstant        = "%s exited with code %d%s"
	commandExecutionErrorTemplateConstant     = "%s could not be executed: %v"
	commandStartedLogMessageConstant          = "command started"
	commandSucceededLogMessageConstant        = "command completed"
	commandFailedLogMessageConstant           = "command exited with failure"
	commandExecutionFailedLogMessageConstant  = "command execution failed"
	commandLogFieldNameConstant               = "command"
	workingDirectoryLogFieldNameConstant      = "working_directory"
	exitCodeLogFieldNameConstant              = "exit_code"
	standardErrorLogFieldNameConstant         = "stderr"
	durationLogFieldNameConstant              = "duration"
	argumentSeparatorConstant                 = " "
)

// ErrLoggerNotConfigured indicates that the executor was constructed without a logger.
var ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)

// ErrCommandRunnerNotConfigured indicates that the executor was constructed without a runner.
var ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)

// CommandDetails describes arguments and environment for a single invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand couples an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable outcome of a finished process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner runs shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandFailedError reports a process that finished with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command.
func (failure CommandFailedError) Error() string {
	return fmt.Sprintf(commandFailedErrorTemplateConstant, formatCommandLabel(failure.Command), failure.Result.ExitCode, formatStandardErrorSuffix(failure.Result.StandardError))
}

// CommandExecutionError reports a process that could not be started or was interrupted.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (failure CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, formatCommandLabel(failure.Command), failure.Cause)
}

// Unwrap exposes the underlying cause.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}

// ShellExecutorOption customizes a ShellExecutor.
type ShellExecutorOption func(executor *ShellExecutor)

// WithCommandEventObserver attaches an observer notified about every command.
func WithCommandEventObserver(observer CommandEventObserver) ShellExecutorOption {
	return func(executor *ShellExecutor) {
		if observer != nil {
			executor.observer = observer
		}
	}
}

// WithCommandTimeout bounds every command by the provided duration. Non-positive values disable the bound.
func WithCommandTimeout(timeout time.Duration) ShellExecutorOption {
	return func(executor *ShellExecutor) {
		executor.commandTimeout = timeout
	}
}

// ShellExecutor runs commands through a CommandRunner and logs their lifecycle.
type ShellExecutor struct {
	logger         *zap.Logger
	runner         CommandRunner
	observer       CommandEventObserver
	commandTimeout time.Duration
}

// NewShellExecutor validates collaborators and constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, options ...ShellExecutorOption) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	executor := &ShellExecutor{
		logger:   logger,
		runner:   runner,
		observer: noopCommandEventObserver{},
	}
	for _, option := range options {
		option(executor)
	}
	return executor, nil
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// Execute runs the command. A non-zero exit yields CommandFailedError and an empty result.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	commandContext := executionContext
	if executor.commandTimeout > 0 {
		var cancel context.CancelFunc
		commandContext, cancel = context.WithTimeout(executionContext, executor.commandTimeout)
		defer cancel()
	}

	commandLabel := formatCommandLabel(command)
	executor.logger.Debug(commandStartedLogMessageConstant,
		zap.String(commandLogFieldNameConstant, commandLabel),
		zap.String(workingDirectoryLogFieldNameConstant, command.Details.WorkingDirectory),
	)
	executor.observer.CommandStarted(command)

	startedAt := time.Now()
	executionResult, runError := executor.runner.Run(commandContext, command)
	if runError == nil && commandContext.Err() != nil {
		runError = commandContext.Err()
	}
	elapsed := time.Since(startedAt)

	if runError != nil {
		executor.logger.Error(commandExecutionFailedLogMessageConstant,
			zap.String(commandLogFieldNameConstant, commandLabel),
			zap.String(workingDirectoryLogFieldNameConstant, command.Details.WorkingDirectory),
			zap.Duration(durationLogFieldNameConstant, elapsed),
			zap.Error(runError),
		)
		executor.observer.CommandExecutionFailed(command, runError)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.observer.CommandCompleted(command, executionResult)
	if executionResult.ExitCode != 0 {
		executor.logger.Warn(commandFailedLogMessageConstant,
			zap.String(commandLogFieldNameConstant, commandLabel),
			zap.String(workingDirectoryLogFieldNameConstant, command.Details.WorkingDirectory),
			zap.Int(exitCodeLogFieldNameConstant, executionResult.ExitCode),
			zap.String(standardErrorLogFieldNameConstant, strings.TrimSpace(executionResult.StandardError)),
		)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logger.Debug(commandSucceededLogMessageConstant,
		zap.String(commandLogFieldNameConstant, commandLabel),
		zap.String(workingDirectoryLogFieldNameConstant, command.Details.WorkingDirectory),
		zap.Duration(durationLogFieldNameConstant, elapsed),
	)
	return executionResult, nil
}

func formatCommandLabel(command ShellCommand) string {
	parts := append([]string{string(command.Name)}, command.Details.Arguments...)
	return strings.TrimSpace(strings.Join(parts, argumentSeparatorConstant))
}
