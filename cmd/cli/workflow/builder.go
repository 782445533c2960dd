package workflow

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/gitcaptain/internal/gitrepo"
	"github.com/temirov/gitcaptain/internal/pullrequests"
	"github.com/temirov/gitcaptain/internal/repos/shared"
	"github.com/temirov/gitcaptain/internal/ui"
	flagutils "github.com/temirov/gitcaptain/internal/utils/flags"
	"github.com/temirov/gitcaptain/internal/workflow"
)

const (
	linkCommandUseConstant                 = "link"
	linkCommandShortDescriptionConstant    = "Link submodules to a common feature branch"
	linkCommandLongDescriptionConstant     = "link moves the selected projects and their submodules onto one feature branch, syncs every distinct submodule once, stages the new pointers, and optionally commits, pushes and opens pull requests."
	switchCommandUseConstant               = "switch"
	switchCommandShortDescriptionConstant  = "Switch projects and submodules to a branch"
	switchCommandLongDescriptionConstant   = "switch checks out one branch in every distinct submodule, then in the selected projects, then in each project's submodule references."
	remoteCommandUseConstant               = "remote"
	remoteCommandShortDescriptionConstant  = "Change project and submodule remotes"
	remoteCommandLongDescriptionConstant   = "remote shows the current remotes, asks for new URLs and applies them with git remote set-url, then saves or displays the updated configuration."
	runCommandUseConstant                  = "run [workflow]"
	runCommandShortDescriptionConstant     = "Run a task sequence"
	runCommandLongDescriptionConstant      = "run executes the tasks of a workflow file, the configured workflow steps, or one interactively chosen task."
	statusCommandUseConstant               = "status"
	statusCommandShortDescriptionConstant  = "Show project and submodule branches"
	statusCommandLongDescriptionConstant   = "status reads every project and submodule without changing them and reports the checked out branch and the pinned submodule commits."
	branchFlagNameConstant                 = "branch"
	branchFlagUsageConstant                = "Branch name; prompts when omitted"
	updateFeatureBranchFlagNameConstant    = "update-feature-branch"
	updateFeatureBranchFlagUsageConstant   = "Pull the base branch into the feature branch"
	commitFlagNameConstant                 = "commit"
	commitFlagUsageConstant                = "Commit staged submodule pointers"
	pushFlagNameConstant                   = "push"
	pushFlagUsageConstant                  = "Push the feature branch"
	pullRequestFlagNameConstant            = "pull-request"
	pullRequestFlagUsageConstant           = "Open a pull or merge request"
	providerFlagNameConstant               = "provider"
	providerFlagUsageConstant              = "Pull request provider"
	taskIDFlagNameConstant                 = "task-id"
	taskIDFlagUsageConstant                = "Task identifier used in commit messages and pull request titles"
	updateProjectsFlagNameConstant         = "update-projects"
	updateProjectsFlagUsageConstant        = "Pull each project's base branch after switching"
	updateSubmodulesFlagNameConstant       = "update-submodules"
	updateSubmodulesFlagUsageConstant      = "Pull each submodule's base branch after switching"
	dryRunFlagNameConstant                 = "dry-run"
	dryRunFlagUsageConstant                = "Print planned git changes without running them"
	loadConfigurationErrorTemplateConstant = "unable to load workflow configuration: %w"
	buildTasksErrorTemplateConstant        = "unable to build workflow tasks: %w"
	commandNotConfiguredMessageConstant    = "command not configured"
)

// ErrCommandNotConfigured indicates a builder method was called on a nil builder.
var ErrCommandNotConfigured = errors.New(commandNotConfiguredMessageConstant)

var providerChoices = []string{
	string(pullrequests.ProviderGitLab),
	string(pullrequests.ProviderAzureDevOps),
	string(pullrequests.ProviderGitHub),
}

// CommandBuilder assembles the task commands and the status command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	GitExecutor                  shared.GitExecutor
	FileSystem                   shared.FileSystem
	Clock                        shared.Clock
	Environment                  pullrequests.EnvironmentLookup
	HTTPClient                   *http.Client
	DecisionProviderFactory      DecisionProviderFactory
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
}

// BuildLinkCommand constructs the link command.
func (builder *CommandBuilder) BuildLinkCommand() (*cobra.Command, error) {
	if builder == nil {
		return nil, ErrCommandNotConfigured
	}
	command := &cobra.Command{
		Use:   linkCommandUseConstant,
		Short: linkCommandShortDescriptionConstant,
		Long:  linkCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runLink,
	}
	flagutils.BindProjectFlag(command, nil)
	flagutils.BindExecutionFlags(command, flagutils.ExecutionDefaults{})
	command.Flags().String(branchFlagNameConstant, "", branchFlagUsageConstant)
	command.Flags().String(providerFlagNameConstant, "", flagutils.FormatChoiceUsage("", providerChoices, providerFlagUsageConstant))
	command.Flags().String(taskIDFlagNameConstant, "", taskIDFlagUsageConstant)
	flagutils.AddOptionalToggleFlag(command.Flags(), updateFeatureBranchFlagNameConstant, updateFeatureBranchFlagUsageConstant)
	flagutils.AddOptionalToggleFlag(command.Flags(), commitFlagNameConstant, commitFlagUsageConstant)
	flagutils.AddOptionalToggleFlag(command.Flags(), pushFlagNameConstant, pushFlagUsageConstant)
	flagutils.AddOptionalToggleFlag(command.Flags(), pullRequestFlagNameConstant, pullRequestFlagUsageConstant)
	return command, nil
}

// BuildSwitchCommand constructs the switch command.
func (builder *CommandBuilder) BuildSwitchCommand() (*cobra.Command, error) {
	if builder == nil {
		return nil, ErrCommandNotConfigured
	}
	command := &cobra.Command{
		Use:   switchCommandUseConstant,
		Short: switchCommandShortDescriptionConstant,
		Long:  switchCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runSwitch,
	}
	flagutils.BindProjectFlag(command, nil)
	flagutils.BindExecutionFlags(command, flagutils.ExecutionDefaults{})
	command.Flags().String(branchFlagNameConstant, "", branchFlagUsageConstant)
	command.Flags().Bool(dryRunFlagNameConstant, false, dryRunFlagUsageConstant)
	flagutils.AddOptionalToggleFlag(command.Flags(), updateProjectsFlagNameConstant, updateProjectsFlagUsageConstant)
	flagutils.AddOptionalToggleFlag(command.Flags(), updateSubmodulesFlagNameConstant, updateSubmodulesFlagUsageConstant)
	return command, nil
}

// BuildRemoteCommand constructs the remote command.
func (builder *CommandBuilder) BuildRemoteCommand() (*cobra.Command, error) {
	if builder == nil {
		return nil, ErrCommandNotConfigured
	}
	command := &cobra.Command{
		Use:   remoteCommandUseConstant,
		Short: remoteCommandShortDescriptionConstant,
		Long:  remoteCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runRemote,
	}
	flagutils.BindProjectFlag(command, nil)
	command.Flags().Bool(dryRunFlagNameConstant, false, dryRunFlagUsageConstant)
	return command, nil
}

// BuildRunCommand constructs the run command.
func (builder *CommandBuilder) BuildRunCommand() (*cobra.Command, error) {
	if builder == nil {
		return nil, ErrCommandNotConfigured
	}
	command := &cobra.Command{
		Use:   runCommandUseConstant,
		Short: runCommandShortDescriptionConstant,
		Long:  runCommandLongDescriptionConstant,
		Args:  cobra.MaximumNArgs(1),
		RunE:  builder.runWorkflow,
	}
	flagutils.BindExecutionFlags(command, flagutils.ExecutionDefaults{})
	command.Flags().Bool(dryRunFlagNameConstant, false, dryRunFlagUsageConstant)
	return command, nil
}

// BuildStatusCommand constructs the status command.
func (builder *CommandBuilder) BuildStatusCommand() (*cobra.Command, error) {
	if builder == nil {
		return nil, ErrCommandNotConfigured
	}
	command := &cobra.Command{
		Use:   statusCommandUseConstant,
		Short: statusCommandShortDescriptionConstant,
		Long:  statusCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runStatus,
	}
	flagutils.BindProjectFlag(command, nil)
	return command, nil
}

func (builder *CommandBuilder) runLink(command *cobra.Command, _ []string) error {
	configuration := builder.resolveConfiguration()
	options := configuration.Link
	options.Projects = projectNames(command, options.Projects)
	options.BranchName = strings.TrimSpace(stringFlag(command, branchFlagNameConstant, options.BranchName))
	options.Provider = strings.TrimSpace(stringFlag(command, providerFlagNameConstant, options.Provider))
	if len(options.Provider) > 0 {
		provider, providerError := flagutils.ParseChoice(options.Provider, providerChoices)
		if providerError != nil {
			return providerError
		}
		options.Provider = provider
	}
	options.TaskID = strings.TrimSpace(stringFlag(command, taskIDFlagNameConstant, options.TaskID))
	options.UpdateFeatureBranch = togglePointer(command, updateFeatureBranchFlagNameConstant, options.UpdateFeatureBranch)
	options.Commit = togglePointer(command, commitFlagNameConstant, options.Commit)
	options.Push = togglePointer(command, pushFlagNameConstant, options.Push)
	options.PullRequest = togglePointer(command, pullRequestFlagNameConstant, options.PullRequest)

	return builder.executeTasks(command, []workflow.Task{&workflow.LinkSubmodulesTask{Options: options}})
}

func (builder *CommandBuilder) runSwitch(command *cobra.Command, _ []string) error {
	configuration := builder.resolveConfiguration()
	options := configuration.Switch
	options.Projects = projectNames(command, options.Projects)
	options.BranchName = strings.TrimSpace(stringFlag(command, branchFlagNameConstant, options.BranchName))
	options.UpdateProjects = togglePointer(command, updateProjectsFlagNameConstant, options.UpdateProjects)
	options.UpdateSubmodules = togglePointer(command, updateSubmodulesFlagNameConstant, options.UpdateSubmodules)

	return builder.executeTasks(command, []workflow.Task{&workflow.SwitchBranchTask{Options: options}})
}

func (builder *CommandBuilder) runRemote(command *cobra.Command, _ []string) error {
	configuration := builder.resolveConfiguration()
	options := configuration.Remote
	options.Projects = projectNames(command, options.Projects)

	return builder.executeTasks(command, []workflow.Task{&workflow.ChangeRemoteTask{Options: options}})
}

func (builder *CommandBuilder) runWorkflow(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	workflowConfiguration := configuration.Workflow
	if len(arguments) > 0 {
		loadedConfiguration, loadError := workflow.LoadConfiguration(arguments[0])
		if loadError != nil {
			return fmt.Errorf(loadConfigurationErrorTemplateConstant, loadError)
		}
		workflowConfiguration = loadedConfiguration
	}

	if len(workflowConfiguration.Steps) == 0 {
		taskType, chooseError := workflow.ChooseTask(command.Context(), resolveDecisionProvider(builder.DecisionProviderFactory, command))
		if chooseError != nil {
			return chooseError
		}
		workflowConfiguration = workflow.Configuration{Steps: []workflow.StepConfiguration{{Task: taskType}}}
	} else if validationError := workflowConfiguration.Validate(); validationError != nil {
		return fmt.Errorf(loadConfigurationErrorTemplateConstant, validationError)
	}

	tasks, buildError := workflow.BuildTasks(workflowConfiguration, configuration.taskDefaults())
	if buildError != nil {
		return fmt.Errorf(buildTasksErrorTemplateConstant, buildError)
	}
	return builder.executeTasks(command, tasks)
}

func (builder *CommandBuilder) runStatus(command *cobra.Command, _ []string) error {
	configuration := builder.resolveConfiguration()
	snapshot, snapshotError := loadSnapshot(configuration.Projects)
	if snapshotError != nil {
		return snapshotError
	}
	inspector := gitrepo.NewInspector(resolveLogger(builder.LoggerProvider))
	statuses := ui.CollectStatus(inspector, snapshot, projectNames(command, nil))
	ui.RenderStatus(shared.NewWriterReporter(command.OutOrStdout()), statuses)
	return nil
}

func (builder *CommandBuilder) executeTasks(command *cobra.Command, tasks []workflow.Task) error {
	configuration := builder.resolveConfiguration()
	options := runtimeOptions{DryRun: configuration.DryRun, AssumeYes: configuration.AssumeYes}
	if command.Flags().Lookup(dryRunFlagNameConstant) != nil && command.Flags().Changed(dryRunFlagNameConstant) {
		options.DryRun, _ = command.Flags().GetBool(dryRunFlagNameConstant)
	}
	if executionFlags, found := flagutils.ResolveExecutionFlags(command); found && executionFlags.AssumeYesSet {
		options.AssumeYes = executionFlags.AssumeYes
	}

	runtime, runtimeError := builder.prepareRuntime(command, options)
	if runtimeError != nil {
		return runtimeError
	}
	return runtime.execute(command.Context(), tasks)
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration().sanitize()
	}
	return builder.ConfigurationProvider().sanitize()
}

func (builder *CommandBuilder) humanReadableLogging() bool {
	if builder.HumanReadableLoggingProvider == nil {
		return false
	}
	return builder.HumanReadableLoggingProvider()
}
