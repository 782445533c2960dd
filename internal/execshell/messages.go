package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	allRemotesLabelConstant                 = "all remotes"
	referenceJoinSeparatorConstant          = ", "
	flagPrefixConstant                      = "-"
)

const (
	gitCheckoutSubcommandNameConstant = "checkout"
	gitPullSubcommandNameConstant     = "pull"
	gitPushSubcommandNameConstant     = "push"
	gitFetchSubcommandNameConstant    = "fetch"
	gitMergeSubcommandNameConstant    = "merge"
	gitAddSubcommandNameConstant      = "add"
	gitCommitSubcommandNameConstant   = "commit"
	gitLogSubcommandNameConstant      = "log"
	gitLsTreeSubcommandNameConstant   = "ls-tree"
	gitRevParseSubcommandNameConstant = "rev-parse"
	gitRevListSubcommandNameConstant  = "rev-list"
	gitBranchSubcommandNameConstant   = "branch"
	gitRemoteSubcommandNameConstant   = "remote"
	gitRemoteSetURLArgumentConstant   = "set-url"
	gitCreateBranchFlagConstant       = "-b"
	gitMessageFlagConstant            = "-m"
	gitAbbrevRefFlagConstant          = "--abbrev-ref"
	gitHeadReferenceConstant          = "HEAD"
)

// messageTemplates holds the sentences used for one kind of git invocation.
// Failure templates receive the subject values followed by the exit code and the stderr suffix;
// execution failure templates receive the subject values followed by the failure description.
type messageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var (
	checkoutTemplates = messageTemplates{
		start:            "Switching %s to %s",
		success:          "%s is now on %s",
		failure:          "Failed to switch %s to %s (exit code %d%s)",
		executionFailure: "Unable to switch %s to %s: %s",
	}
	createBranchTemplates = messageTemplates{
		start:            "Creating branch %s in %s",
		success:          "Created branch %s in %s",
		failure:          "Failed to create branch %s in %s (exit code %d%s)",
		executionFailure: "Unable to create branch %s in %s: %s",
	}
	pullTemplates = messageTemplates{
		start:            "Pulling %s from %s in %s",
		success:          "Pulled %s from %s in %s",
		failure:          "Failed to pull %s from %s in %s (exit code %d%s)",
		executionFailure: "Unable to pull %s from %s in %s: %s",
	}
	pushTemplates = messageTemplates{
		start:            "Pushing %s to %s from %s",
		success:          "Pushed %s to %s from %s",
		failure:          "Failed to push %s to %s from %s (exit code %d%s)",
		executionFailure: "Unable to push %s to %s from %s: %s",
	}
	fetchReferencesTemplates = messageTemplates{
		start:            "Fetching %s from %s in %s",
		success:          "Fetched %s from %s in %s",
		failure:          "Failed to fetch %s from %s in %s (exit code %d%s)",
		executionFailure: "Unable to fetch %s from %s in %s: %s",
	}
	fetchRemoteTemplates = messageTemplates{
		start:            "Fetching from %s in %s",
		success:          "Fetched from %s in %s",
		failure:          "Failed to fetch from %s in %s (exit code %d%s)",
		executionFailure: "Unable to fetch from %s in %s: %s",
	}
	mergeTemplates = messageTemplates{
		start:            "Fast-forwarding %s to %s",
		success:          "Fast-forwarded %s to %s",
		failure:          "Failed to fast-forward %s to %s (exit code %d%s)",
		executionFailure: "Unable to fast-forward %s to %s: %s",
	}
	addTemplates = messageTemplates{
		start:            "Staging %s in %s",
		success:          "Staged %s in %s",
		failure:          "Failed to stage %s in %s (exit code %d%s)",
		executionFailure: "Unable to stage %s in %s: %s",
	}
	commitTemplates = messageTemplates{
		start:            "Creating commit in %s with message %q",
		success:          "Created commit in %s with message %q",
		failure:          "Failed to create commit in %s with message %q (exit code %d%s)",
		executionFailure: "Unable to create commit in %s with message %q: %s",
	}
	logTemplates = messageTemplates{
		start:            "Reading commit history %s in %s",
		success:          "Read commit history %s in %s",
		failure:          "Failed to read commit history %s in %s (exit code %d%s)",
		executionFailure: "Unable to read commit history %s in %s: %s",
	}
	lsTreeTemplates = messageTemplates{
		start:            "Reading pinned commit of %s in %s",
		success:          "Read pinned commit of %s in %s",
		failure:          "Failed to read pinned commit of %s in %s (exit code %d%s)",
		executionFailure: "Unable to read pinned commit of %s in %s: %s",
	}
	revParseTemplates = messageTemplates{
		start:            "Resolving %s in %s",
		success:          "Resolved %s in %s",
		failure:          "Failed to resolve %s in %s (exit code %d%s)",
		executionFailure: "Unable to resolve %s in %s: %s",
	}
	currentBranchTemplates = messageTemplates{
		start:            "Identifying current branch in %s",
		success:          "Identified current branch in %s",
		failure:          "Failed to identify current branch in %s (exit code %d%s)",
		executionFailure: "Unable to identify current branch in %s: %s",
	}
	revListTemplates = messageTemplates{
		start:            "Counting commits %s in %s",
		success:          "Counted commits %s in %s",
		failure:          "Failed to count commits %s in %s (exit code %d%s)",
		executionFailure: "Unable to count commits %s in %s: %s",
	}
	branchListTemplates = messageTemplates{
		start:            "Listing local branches in %s",
		success:          "Listed local branches in %s",
		failure:          "Failed to list local branches in %s (exit code %d%s)",
		executionFailure: "Unable to list local branches in %s: %s",
	}
	remoteListTemplates = messageTemplates{
		start:            "Listing remotes in %s",
		success:          "Listed remotes in %s",
		failure:          "Failed to list remotes in %s (exit code %d%s)",
		executionFailure: "Unable to list remotes in %s: %s",
	}
	remoteUpdateTemplates = messageTemplates{
		start:            "Updating %s remote for %s to %s",
		success:          "%s remote for %s now points to %s",
		failure:          "Failed to update %s remote for %s to %s (exit code %d%s)",
		executionFailure: "Unable to update %s remote for %s to %s: %s",
	}
)

// CommandMessageFormatter renders human-readable sentences describing command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command that is about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage describes a command that exited successfully.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage describes a command that exited with a non-zero code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage describes a command that could not run.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name == CommandGit {
		templates, subject, described := formatter.describeGitCommand(command)
		if described {
			return renderMessage(templates, subject, result, failure, stage)
		}
	}
	return formatter.buildGenericMessage(command, result, failure, stage)
}

// describeGitCommand selects templates and subject values for known git subcommands.
func (formatter CommandMessageFormatter) describeGitCommand(command ShellCommand) (messageTemplates, []any, bool) {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return messageTemplates{}, nil, false
	}
	workingDirectory := describeWorkingDirectory(command)
	subcommandArguments := arguments[1:]

	switch arguments[0] {
	case gitCheckoutSubcommandNameConstant:
		if containsArgument(subcommandArguments, gitCreateBranchFlagConstant) {
			branchName := ensureValue(findFlagValue(subcommandArguments, gitCreateBranchFlagConstant))
			return createBranchTemplates, []any{branchName, workingDirectory}, true
		}
		return checkoutTemplates, []any{workingDirectory, ensureValue(extractFirstNonFlagArgument(subcommandArguments))}, true
	case gitPullSubcommandNameConstant:
		remoteName, references := extractRemoteAndReferences(subcommandArguments)
		return pullTemplates, []any{ensureValue(joinReferences(references)), ensureValue(remoteName), workingDirectory}, true
	case gitPushSubcommandNameConstant:
		remoteName, references := extractRemoteAndReferences(subcommandArguments)
		return pushTemplates, []any{ensureValue(joinReferences(references)), ensureValue(remoteName), workingDirectory}, true
	case gitFetchSubcommandNameConstant:
		remoteName, references := extractRemoteAndReferences(subcommandArguments)
		if len(remoteName) == 0 {
			return fetchRemoteTemplates, []any{allRemotesLabelConstant, workingDirectory}, true
		}
		if len(references) == 0 {
			return fetchRemoteTemplates, []any{remoteName, workingDirectory}, true
		}
		return fetchReferencesTemplates, []any{joinReferences(references), remoteName, workingDirectory}, true
	case gitMergeSubcommandNameConstant:
		return mergeTemplates, []any{workingDirectory, ensureValue(extractFirstNonFlagArgument(subcommandArguments))}, true
	case gitAddSubcommandNameConstant:
		return addTemplates, []any{ensureValue(extractFirstNonFlagArgument(subcommandArguments)), workingDirectory}, true
	case gitCommitSubcommandNameConstant:
		return commitTemplates, []any{workingDirectory, extractCommitSubject(subcommandArguments)}, true
	case gitLogSubcommandNameConstant:
		return logTemplates, []any{ensureValue(extractFirstNonFlagArgument(subcommandArguments)), workingDirectory}, true
	case gitLsTreeSubcommandNameConstant:
		return lsTreeTemplates, []any{ensureValue(argumentAtIndex(subcommandArguments, 1)), workingDirectory}, true
	case gitRevParseSubcommandNameConstant:
		if containsArgument(subcommandArguments, gitAbbrevRefFlagConstant) {
			return currentBranchTemplates, []any{workingDirectory}, true
		}
		reference := extractFirstNonFlagArgument(subcommandArguments)
		if len(reference) == 0 {
			reference = gitHeadReferenceConstant
		}
		return revParseTemplates, []any{reference, workingDirectory}, true
	case gitRevListSubcommandNameConstant:
		return revListTemplates, []any{ensureValue(extractFirstNonFlagArgument(subcommandArguments)), workingDirectory}, true
	case gitBranchSubcommandNameConstant:
		if len(extractFirstNonFlagArgument(subcommandArguments)) > 0 {
			return messageTemplates{}, nil, false
		}
		return branchListTemplates, []any{workingDirectory}, true
	case gitRemoteSubcommandNameConstant:
		if argumentAtIndex(subcommandArguments, 0) == gitRemoteSetURLArgumentConstant {
			remoteName := ensureValue(argumentAtIndex(subcommandArguments, 1))
			remoteURL := ensureValue(argumentAtIndex(subcommandArguments, 2))
			return remoteUpdateTemplates, []any{remoteName, workingDirectory, remoteURL}, true
		}
		return remoteListTemplates, []any{workingDirectory}, true
	default:
		return messageTemplates{}, nil, false
	}
}

func renderMessage(templates messageTemplates, subject []any, result ExecutionResult, failure error, stage messageStage) string {
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, subject...)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, subject...)
	case messageStageFailure:
		values := append(append([]any{}, subject...), result.ExitCode, formatStandardErrorSuffix(result.StandardError))
		return fmt.Sprintf(templates.failure, values...)
	default:
		values := append(append([]any{}, subject...), describeFailure(failure))
		return fmt.Sprintf(templates.executionFailure, values...)
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	label := fmt.Sprintf(commandLabelTemplateConstant, formatCommandLabel(command), formatWorkingDirectorySuffix(command))
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, label)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, label)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, label, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, label, describeFailure(failure))
	}
}

func formatWorkingDirectorySuffix(command ShellCommand) string {
	if len(strings.TrimSpace(command.Details.WorkingDirectory)) == 0 {
		return ""
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, command.Details.WorkingDirectory)
}

func formatStandardErrorSuffix(standardError string) string {
	trimmed := strings.TrimSpace(standardError)
	if len(trimmed) == 0 {
		return ""
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmed)
}

func describeWorkingDirectory(command ShellCommand) string {
	trimmed := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmed) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmed
}

func describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if argument == value {
			return true
		}
	}
	return false
}

func argumentAtIndex(arguments []string, index int) string {
	if index < 0 || index >= len(arguments) {
		return ""
	}
	return arguments[index]
}

func ensureValue(value string) string {
	if len(strings.TrimSpace(value)) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return value
}

func findFlagValue(arguments []string, flag string) string {
	for index, argument := range arguments {
		if argument == flag {
			return argumentAtIndex(arguments, index+1)
		}
	}
	return ""
}

// extractFirstNonFlagArgument skips flags and the values of flags known to take one.
func extractFirstNonFlagArgument(arguments []string) string {
	skipNext := false
	for _, argument := range arguments {
		if skipNext {
			skipNext = false
			continue
		}
		if argument == gitMessageFlagConstant || argument == gitCreateBranchFlagConstant {
			skipNext = true
			continue
		}
		if strings.HasPrefix(argument, flagPrefixConstant) {
			continue
		}
		return argument
	}
	return ""
}

func extractRemoteAndReferences(arguments []string) (string, []string) {
	remoteName := ""
	references := []string{}
	for _, argument := range arguments {
		if strings.HasPrefix(argument, flagPrefixConstant) {
			continue
		}
		if len(remoteName) == 0 {
			remoteName = argument
			continue
		}
		references = append(references, argument)
	}
	return remoteName, references
}

func joinReferences(references []string) string {
	return strings.Join(references, referenceJoinSeparatorConstant)
}

// extractCommitSubject returns the first line of the -m value.
func extractCommitSubject(arguments []string) string {
	message := findFlagValue(arguments, gitMessageFlagConstant)
	subject, _, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(subject)
}
