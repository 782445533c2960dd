package metrics

import "github.com/temirov/gitcaptain/internal/execshell"

type commandObserver struct {
	recorder *Recorder
}

// CommandObserver counts every finished git subprocess under OperationGitCommand.
// Non-zero exits and commands that could not run count as failures.
func (recorder *Recorder) CommandObserver() execshell.CommandEventObserver {
	return commandObserver{recorder: recorder}
}

func (observer commandObserver) CommandStarted(execshell.ShellCommand) {}

func (observer commandObserver) CommandCompleted(_ execshell.ShellCommand, result execshell.ExecutionResult) {
	if result.ExitCode != 0 {
		observer.recorder.Failed(OperationGitCommand)
		return
	}
	observer.recorder.Succeeded(OperationGitCommand)
}

func (observer commandObserver) CommandExecutionFailed(execshell.ShellCommand, error) {
	observer.recorder.Failed(OperationGitCommand)
}
