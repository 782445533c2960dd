package execshell

// CommandEventObserver receives lifecycle notifications for every git subprocess.
type CommandEventObserver interface {
	CommandStarted(command ShellCommand)
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports failures that produced no result, including timeouts.
	CommandExecutionFailed(command ShellCommand, failure error)
}

type noopCommandEventObserver struct{}

func (noopCommandEventObserver) CommandStarted(ShellCommand) {}

func (noopCommandEventObserver) CommandCompleted(ShellCommand, ExecutionResult) {}

func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}

type commandEventObservers []CommandEventObserver

// CombineCommandEventObservers fans every event out to the given observers in order. Nil observers are dropped.
func CombineCommandEventObservers(observers ...CommandEventObserver) CommandEventObserver {
	combined := make(commandEventObservers, 0, len(observers))
	for _, observer := range observers {
		if observer != nil {
			combined = append(combined, observer)
		}
	}
	switch len(combined) {
	case 0:
		return noopCommandEventObserver{}
	case 1:
		return combined[0]
	default:
		return combined
	}
}

func (observers commandEventObservers) CommandStarted(command ShellCommand) {
	for _, observer := range observers {
		observer.CommandStarted(command)
	}
}

func (observers commandEventObservers) CommandCompleted(command ShellCommand, result ExecutionResult) {
	for _, observer := range observers {
		observer.CommandCompleted(command, result)
	}
}

func (observers commandEventObservers) CommandExecutionFailed(command ShellCommand, failure error) {
	for _, observer := range observers {
		observer.CommandExecutionFailed(command, failure)
	}
}
