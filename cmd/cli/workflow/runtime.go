package workflow

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/branches/switcher"
	"github.com/temirov/gitcaptain/internal/decisions"
	"github.com/temirov/gitcaptain/internal/execshell"
	"github.com/temirov/gitcaptain/internal/linking"
	"github.com/temirov/gitcaptain/internal/metrics"
	"github.com/temirov/gitcaptain/internal/projects"
	"github.com/temirov/gitcaptain/internal/pullrequests"
	"github.com/temirov/gitcaptain/internal/repos/dependencies"
	"github.com/temirov/gitcaptain/internal/repos/remotes"
	"github.com/temirov/gitcaptain/internal/repos/shared"
	"github.com/temirov/gitcaptain/internal/ui"
	"github.com/temirov/gitcaptain/internal/utils"
	pathutils "github.com/temirov/gitcaptain/internal/utils/path"
	"github.com/temirov/gitcaptain/internal/workflow"
)

const (
	gitRepositoryManagerErrorTemplateConstant = "unable to construct repository manager: %w"
	metricsRecorderErrorTemplateConstant      = "unable to construct metrics recorder: %w"
	serviceConstructionErrorTemplateConstant  = "unable to construct %s: %w"
	linkServiceNameConstant                   = "link service"
	switchServiceNameConstant                 = "branch switcher"
	remoteChangerNameConstant                 = "remote changer"
	configurationStoreNameConstant            = "configuration store"
	configurationUpdaterNameConstant          = "configuration updater"
	metricsWriteFailedMessageConstant         = "Unable to write metrics textfile"
	runFinishedMessageConstant                = "Run finished"
	logFieldMetricsPathConstant               = "metrics_textfile"
	logFieldFailuresConstant                  = "failures"
	logFieldTasksConstant                     = "tasks"
)

type runtime struct {
	configuration CommandConfiguration
	logger        *zap.Logger
	snapshot      projects.Snapshot
	metrics       *metrics.Recorder
	environment   *workflow.Environment
}

type runtimeOptions struct {
	DryRun    bool
	AssumeYes bool
}

// loadSnapshot normalizes and validates the project inventory. Failures are fatal configuration errors.
func loadSnapshot(configuration projects.Configuration) (projects.Snapshot, error) {
	normalized := configuration.Normalize(pathutils.NewHomeExpander())
	if validationError := normalized.Validate(); validationError != nil {
		return projects.Snapshot{}, validationError
	}
	return projects.NewSnapshot(normalized), nil
}

func (builder *CommandBuilder) prepareRuntime(command *cobra.Command, options runtimeOptions) (*runtime, error) {
	configuration := builder.resolveConfiguration()
	snapshot, snapshotError := loadSnapshot(configuration.Projects)
	if snapshotError != nil {
		return nil, snapshotError
	}

	logger := resolveLogger(builder.LoggerProvider)
	recorder, recorderError := metrics.NewRecorder()
	if recorderError != nil {
		return nil, fmt.Errorf(metricsRecorderErrorTemplateConstant, recorderError)
	}

	commandObservers := []execshell.CommandEventObserver{recorder.CommandObserver()}
	if builder.humanReadableLogging() {
		commandObservers = append(commandObservers, ui.NewConsoleCommandEventLogger(logger))
	}
	executorOptions := []execshell.ShellExecutorOption{
		execshell.WithCommandTimeout(configuration.GitTimeout),
		execshell.WithCommandEventObserver(execshell.CombineCommandEventObservers(commandObservers...)),
	}
	gitExecutor, executorError := dependencies.ResolveGitExecutor(builder.GitExecutor, logger, executorOptions...)
	if executorError != nil {
		return nil, executorError
	}
	repositoryManager, managerError := dependencies.ResolveGitRepositoryManager(nil, gitExecutor)
	if managerError != nil {
		return nil, fmt.Errorf(gitRepositoryManagerErrorTemplateConstant, managerError)
	}
	fileSystem := dependencies.ResolveFileSystem(builder.FileSystem)

	var decisionProvider decisions.Provider = resolveDecisionProvider(builder.DecisionProviderFactory, command)
	if shared.ConfirmationPolicyFromBool(options.AssumeYes).ShouldAssumeYes() {
		decisionProvider = decisions.NewPresets(decisionProvider).SetConfirm(decisions.KeyContinue, true)
	}
	reporter := shared.NewWriterReporter(command.OutOrStdout())

	gateway := pullrequests.NewGateway(snapshot.Configuration().PullRequestProviders, pullrequests.GatewayOptions{
		Environment: builder.Environment,
		HTTPClient:  builder.HTTPClient,
		Timeout:     configuration.ProviderTimeout,
	})

	linker, linkerError := linking.NewService(linking.Dependencies{
		RepositoryManager: repositoryManager,
		FileSystem:        fileSystem,
		Decisions:         decisionProvider,
		PullRequests:      gateway,
		Reporter:          reporter,
		Logger:            logger,
		Metrics:           recorder,
		Parallelism:       configuration.Parallelism,
	})
	if linkerError != nil {
		return nil, fmt.Errorf(serviceConstructionErrorTemplateConstant, linkServiceNameConstant, linkerError)
	}

	branchSwitcher, switcherError := switcher.NewService(switcher.Dependencies{
		RepositoryManager: repositoryManager,
		Decisions:         decisionProvider,
		Reporter:          reporter,
		Logger:            logger,
		Metrics:           recorder,
	})
	if switcherError != nil {
		return nil, fmt.Errorf(serviceConstructionErrorTemplateConstant, switchServiceNameConstant, switcherError)
	}

	remoteChanger, changerError := remotes.NewChanger(remotes.Dependencies{
		RepositoryManager: repositoryManager,
		Decisions:         decisionProvider,
		Reporter:          reporter,
		Logger:            logger,
		Metrics:           recorder,
	})
	if changerError != nil {
		return nil, fmt.Errorf(serviceConstructionErrorTemplateConstant, remoteChangerNameConstant, changerError)
	}

	store, storeError := projects.NewStore(fileSystem, dependencies.ResolveClock(builder.Clock))
	if storeError != nil {
		return nil, fmt.Errorf(serviceConstructionErrorTemplateConstant, configurationStoreNameConstant, storeError)
	}
	updater, updaterError := projects.NewConfigurationUpdater(store, decisionProvider, reporter, logger)
	if updaterError != nil {
		return nil, fmt.Errorf(serviceConstructionErrorTemplateConstant, configurationUpdaterNameConstant, updaterError)
	}

	configurationPath, _ := utils.NewCommandContextAccessor().ConfigurationFilePath(command.Context())

	return &runtime{
		configuration: configuration,
		logger:        logger,
		snapshot:      snapshot,
		metrics:       recorder,
		environment: &workflow.Environment{
			Linker:               linker,
			Switcher:             branchSwitcher,
			RemoteChanger:        remoteChanger,
			ConfigurationUpdater: updater,
			ConfigurationPath:    configurationPath,
			Reporter:             reporter,
			Logger:               logger,
			DryRun:               options.DryRun,
		},
	}, nil
}

func (runtime *runtime) execute(executionContext context.Context, tasks []workflow.Task) error {
	state, executeError := workflow.NewExecutor(tasks, runtime.environment).Execute(executionContext, runtime.snapshot)
	runtime.logger.Info(runFinishedMessageConstant, zap.Int(logFieldTasksConstant, len(state.Outcomes)), zap.Int(logFieldFailuresConstant, state.Failures()))
	runtime.flushMetrics()
	return executeError
}

func (runtime *runtime) flushMetrics() {
	if len(runtime.configuration.MetricsTextfile) == 0 {
		return
	}
	if writeError := runtime.metrics.WriteTextfile(runtime.configuration.MetricsTextfile); writeError != nil {
		runtime.logger.Warn(metricsWriteFailedMessageConstant, zap.String(logFieldMetricsPathConstant, runtime.configuration.MetricsTextfile), zap.Error(writeError))
	}
}
