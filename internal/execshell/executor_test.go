package execshell_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gitcaptain/internal/execshell"
)

const (
	testExecutionSuccessCaseNameConstant         = "success"
	testExecutionFailureCaseNameConstant         = "failure_exit_code"
	testExecutionRunnerErrorCaseNameConstant     = "runner_error"
	testCommandArgumentConstant                  = "--version"
	testWorkingDirectoryConstant                 = "."
	testStandardErrorOutputConstant              = "failure"
	testLoggerInitializationCaseNameConstant     = "logger_validation"
	testRunnerInitializationCaseNameConstant     = "runner_validation"
	testSuccessfulInitializationCaseNameConstant = "successful_initialization"
	testCommandTimeoutConstant                   = 20 * time.Millisecond
)

type recordingCommandRunner struct {
	executionResult  execshell.ExecutionResult
	executionError   error
	recordedCommands []execshell.ShellCommand
}

func (runner *recordingCommandRunner) Run(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	runner.recordedCommands = append(runner.recordedCommands, command)
	return runner.executionResult, runner.executionError
}

type blockingCommandRunner struct{}

func (blockingCommandRunner) Run(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	<-executionContext.Done()
	return execshell.ExecutionResult{}, executionContext.Err()
}

type recordingObserver struct {
	started   int
	completed int
	failed    int
}

func (observer *recordingObserver) CommandStarted(execshell.ShellCommand) { observer.started++ }

func (observer *recordingObserver) CommandCompleted(execshell.ShellCommand, execshell.ExecutionResult) {
	observer.completed++
}

func (observer *recordingObserver) CommandExecutionFailed(execshell.ShellCommand, error) {
	observer.failed++
}

func TestShellExecutorInitializationValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		logger        *zap.Logger
		runner        execshell.CommandRunner
		expectError   error
		expectSuccess bool
	}{
		{
			name:        testLoggerInitializationCaseNameConstant,
			logger:      nil,
			runner:      &recordingCommandRunner{},
			expectError: execshell.ErrLoggerNotConfigured,
		},
		{
			name:        testRunnerInitializationCaseNameConstant,
			logger:      zap.NewNop(),
			runner:      nil,
			expectError: execshell.ErrCommandRunnerNotConfigured,
		},
		{
			name:          testSuccessfulInitializationCaseNameConstant,
			logger:        zap.NewNop(),
			runner:        &recordingCommandRunner{},
			expectSuccess: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor, creationError := execshell.NewShellExecutor(testCase.logger, testCase.runner)
			if testCase.expectSuccess {
				require.NoError(testInstance, creationError)
				require.NotNil(testInstance, executor)
			} else {
				require.Error(testInstance, creationError)
				require.ErrorIs(testInstance, creationError, testCase.expectError)
			}
		})
	}
}

func TestShellExecutorExecuteBehavior(testInstance *testing.T) {
	testCases := []struct {
		name             string
		runnerResult     execshell.ExecutionResult
		runnerError      error
		expectErrorType  any
		expectedLogCount int
		expectedObserver recordingObserver
	}{
		{
			name: testExecutionSuccessCaseNameConstant,
			runnerResult: execshell.ExecutionResult{
				StandardOutput: "ok",
				ExitCode:       0,
			},
			expectedLogCount: 2,
			expectedObserver: recordingObserver{started: 1, completed: 1},
		},
		{
			name: testExecutionFailureCaseNameConstant,
			runnerResult: execshell.ExecutionResult{
				StandardError: testStandardErrorOutputConstant,
				ExitCode:      1,
			},
			expectErrorType:  execshell.CommandFailedError{},
			expectedLogCount: 2,
			expectedObserver: recordingObserver{started: 1, completed: 1},
		},
		{
			name:             testExecutionRunnerErrorCaseNameConstant,
			runnerError:      errors.New("runner failure"),
			expectErrorType:  execshell.CommandExecutionError{},
			expectedLogCount: 2,
			expectedObserver: recordingObserver{started: 1, failed: 1},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observerLogs := observer.New(zap.DebugLevel)
			logger := zap.New(observerCore)

			recordingRunner := &recordingCommandRunner{
				executionResult: testCase.runnerResult,
				executionError:  testCase.runnerError,
			}
			eventObserver := &recordingObserver{}

			shellExecutor, creationError := execshell.NewShellExecutor(logger, recordingRunner, execshell.WithCommandEventObserver(eventObserver))
			require.NoError(testInstance, creationError)

			commandDetails := execshell.CommandDetails{Arguments: []string{testCommandArgumentConstant}, WorkingDirectory: testWorkingDirectoryConstant}
			executionResult, executionError := shellExecutor.ExecuteGit(context.Background(), commandDetails)

			if testCase.expectErrorType != nil {
				require.Error(testInstance, executionError)
				require.IsType(testInstance, testCase.expectErrorType, executionError)
				require.Empty(testInstance, executionResult.StandardOutput)
			} else {
				require.NoError(testInstance, executionError)
				require.Equal(testInstance, testCase.runnerResult.StandardOutput, executionResult.StandardOutput)
			}

			require.Len(testInstance, observerLogs.All(), testCase.expectedLogCount)
			require.Equal(testInstance, testCase.expectedObserver, *eventObserver)
			require.Len(testInstance, recordingRunner.recordedCommands, 1)
			require.Equal(testInstance, execshell.CommandGit, recordingRunner.recordedCommands[0].Name)
		})
	}
}

func TestShellExecutorAppliesCommandTimeout(testInstance *testing.T) {
	shellExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), blockingCommandRunner{}, execshell.WithCommandTimeout(testCommandTimeoutConstant))
	require.NoError(testInstance, creationError)

	_, executionError := shellExecutor.ExecuteGit(context.Background(), execshell.CommandDetails{Arguments: []string{"pull", "origin", "main"}})

	require.Error(testInstance, executionError)
	require.IsType(testInstance, execshell.CommandExecutionError{}, executionError)
	require.ErrorIs(testInstance, executionError, context.DeadlineExceeded)
}

func TestCommandFailedErrorIncludesStandardError(testInstance *testing.T) {
	failure := execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{Arguments: []string{"push", "origin", "main"}}},
		Result:  execshell.ExecutionResult{ExitCode: 128, StandardError: "rejected\n"},
	}

	require.Equal(testInstance, "git push origin main exited with code 128: rejected", failure.Error())
}
