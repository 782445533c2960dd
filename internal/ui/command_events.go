package ui

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/gitcaptain/internal/execshell"
)

const (
	gitRemoteSubcommandConstant = "remote"
	gitVerboseFlagConstant      = "-v"
)

// queryGitSubcommands only read repository state; their progress lines are logged at debug level.
var queryGitSubcommands = map[string]struct{}{
	"branch":    {},
	"log":       {},
	"ls-tree":   {},
	"rev-list":  {},
	"rev-parse": {},
	"status":    {},
}

// ConsoleCommandEventLogger renders git lifecycle events as sentences for the console log format.
// Commands that change a repository are logged at info; read-only queries at debug.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter execshell.CommandMessageFormatter
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: execshell.CommandMessageFormatter{}}
}

func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Log(progressLevel(command), eventLogger.formatter.BuildStartedMessage(command))
}

// CommandCompleted logs non-zero exits as warnings regardless of the command kind.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if result.ExitCode == 0 {
		eventLogger.logger.Log(progressLevel(command), eventLogger.formatter.BuildSuccessMessage(command))
		return
	}
	eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(command, result))
}

func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure))
}

func progressLevel(command execshell.ShellCommand) zapcore.Level {
	arguments := command.Details.Arguments
	if command.Name != execshell.CommandGit || len(arguments) == 0 {
		return zapcore.InfoLevel
	}
	if _, query := queryGitSubcommands[arguments[0]]; query {
		return zapcore.DebugLevel
	}
	if arguments[0] == gitRemoteSubcommandConstant && len(arguments) > 1 && arguments[1] == gitVerboseFlagConstant {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
