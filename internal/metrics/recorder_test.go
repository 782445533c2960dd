package metrics_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/temirov/gitcaptain/internal/execshell"
	"github.com/temirov/gitcaptain/internal/metrics"
)

func TestRecorderCountsOperations(testInstance *testing.T) {
	recorder, creationError := metrics.NewRecorder()
	require.NoError(testInstance, creationError)

	recorder.Succeeded(metrics.OperationSubmodulePull)
	recorder.Record(metrics.OperationCommit, nil)
	recorder.Record(metrics.OperationPush, errors.New("rejected"))

	textfilePath := filepath.Join(testInstance.TempDir(), "gitcaptain.prom")
	require.NoError(testInstance, recorder.WriteTextfile(textfilePath))

	contents, readError := os.ReadFile(textfilePath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(contents), `gitcaptain_operations_total{operation="submodule_pull"} 1`)
	require.Contains(testInstance, string(contents), `gitcaptain_operations_total{operation="commit"} 1`)
	require.Contains(testInstance, string(contents), `gitcaptain_failures_total{operation="push"} 1`)

	count, countError := testutil.GatherAndCount(recorder.Registry(), "gitcaptain_operations_total")
	require.NoError(testInstance, countError)
	require.Equal(testInstance, 2, count)
}

func TestNilRecorderIgnoresCalls(testInstance *testing.T) {
	var recorder *metrics.Recorder

	recorder.Succeeded(metrics.OperationCommit)
	recorder.Record(metrics.OperationPush, errors.New("rejected"))

	require.Nil(testInstance, recorder.Registry())
	require.NoError(testInstance, recorder.WriteTextfile(filepath.Join(testInstance.TempDir(), "unused.prom")))
}

func TestCommandObserverCountsGitCommands(testInstance *testing.T) {
	recorder, creationError := metrics.NewRecorder()
	require.NoError(testInstance, creationError)

	observer := recorder.CommandObserver()
	command := execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{Arguments: []string{"pull", "origin", "main"}}}
	observer.CommandStarted(command)
	observer.CommandCompleted(command, execshell.ExecutionResult{})
	observer.CommandCompleted(command, execshell.ExecutionResult{ExitCode: 1})
	observer.CommandExecutionFailed(command, errors.New("deadline exceeded"))

	textfilePath := filepath.Join(testInstance.TempDir(), "commands.prom")
	require.NoError(testInstance, recorder.WriteTextfile(textfilePath))
	contents, readError := os.ReadFile(textfilePath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(contents), `gitcaptain_operations_total{operation="git_command"} 1`)
	require.Contains(testInstance, string(contents), `gitcaptain_failures_total{operation="git_command"} 2`)
}
