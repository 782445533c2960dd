package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	workflowcmd "github.com/temirov/gitcaptain/cmd/cli/workflow"
	"github.com/temirov/gitcaptain/internal/projects"
	"github.com/temirov/gitcaptain/internal/utils"
	flagutils "github.com/temirov/gitcaptain/internal/utils/flags"
	"github.com/temirov/gitcaptain/internal/workflow"
)

const (
	applicationNameConstant                 = "gitcaptain"
	applicationShortDescriptionConstant     = "Keep projects and their shared submodules on one feature branch"
	applicationLongDescriptionConstant      = "gitcaptain links git submodules shared by several projects to a common feature branch, switches branches across them, repoints remotes, and opens pull or merge requests."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant               = "GITCAPTAIN"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	runIdentifierFieldConstant              = "run_id"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	rootCommandInfoMessageConstant          = "gitcaptain CLI executed"
	rootCommandDebugMessageConstant         = "gitcaptain CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	unknownCommandTemplateConstant          = "unknown command %q"
	defaultConfigurationSearchPathConstant  = "."
	userConfigurationDirectoryNameConstant  = ".gitcaptain"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common               ApplicationCommonConfiguration              `mapstructure:"common"`
	PullRequestProviders []projects.PullRequestProviderConfiguration `mapstructure:"pr_providers"`
	Projects             []projects.ProjectConfiguration             `mapstructure:"projects"`
	Link                 workflow.LinkTaskOptions                    `mapstructure:"link"`
	Switch               workflow.SwitchTaskOptions                  `mapstructure:"switch"`
	Remote               workflow.RemoteTaskOptions                  `mapstructure:"remote"`
	Workflow             workflow.Configuration                      `mapstructure:"workflow"`
}

// ApplicationCommonConfiguration stores settings shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	AssumeYes       bool          `mapstructure:"assume_yes"`
	DryRun          bool          `mapstructure:"dry_run"`
	Parallelism     int           `mapstructure:"parallelism"`
	GitTimeout      time.Duration `mapstructure:"git_timeout"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	MetricsTextfile string        `mapstructure:"metrics_textfile"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(),
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	taskCommandBuilder := workflowcmd.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider:        application.taskCommandConfiguration,
	}
	for _, build := range []func() (*cobra.Command, error){
		taskCommandBuilder.BuildLinkCommand,
		taskCommandBuilder.BuildSwitchCommand,
		taskCommandBuilder.BuildRemoteCommand,
		taskCommandBuilder.BuildRunCommand,
		taskCommandBuilder.BuildStatusCommand,
	} {
		if subcommand, buildError := build(); buildError == nil {
			cobraCommand.AddCommand(subcommand)
		}
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	application.rootCommand.SetArgs(flagutils.NormalizeToggleArguments(os.Args[1:]))
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

// InitializeForCommand loads configuration as if the named subcommand were about to run.
func (application *Application) InitializeForCommand(commandUse string) error {
	command, _, findError := application.rootCommand.Find([]string{commandUse})
	if findError != nil || command == nil || command == application.rootCommand {
		return fmt.Errorf(unknownCommandTemplateConstant, commandUse)
	}
	if command.Context() == nil {
		command.SetContext(application.rootCommand.Context())
	}
	return application.initializeConfiguration(command)
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	runIdentifier := uuid.NewString()
	application.logger = logger.With(zap.String(runIdentifierFieldConstant, runIdentifier))

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		parentContext := command.Context()
		if parentContext == nil {
			parentContext = context.Background()
		}
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(parentContext, application.configurationMetadata.ConfigFileUsed)
		updatedContext = application.commandContextAccessor.WithRunIdentifier(updatedContext, runIdentifier)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func (application *Application) taskCommandConfiguration() workflowcmd.CommandConfiguration {
	common := application.configuration.Common
	return workflowcmd.CommandConfiguration{
		Projects: projects.Configuration{
			PullRequestProviders: application.configuration.PullRequestProviders,
			Projects:             application.configuration.Projects,
		},
		Link:            application.configuration.Link,
		Switch:          application.configuration.Switch,
		Remote:          application.configuration.Remote,
		Workflow:        application.configuration.Workflow,
		AssumeYes:       common.AssumeYes,
		DryRun:          common.DryRun,
		Parallelism:     common.Parallelism,
		GitTimeout:      common.GitTimeout,
		ProviderTimeout: common.ProviderTimeout,
		MetricsTextfile: strings.TrimSpace(common.MetricsTextfile),
	}
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	return command.Help()
}

func (application *Application) flushLogger() error {
	return application.syncLoggerInstance(application.logger)
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

func configurationSearchPaths() []string {
	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil && len(homeDirectory) > 0 {
		searchPaths = append(searchPaths, filepath.Join(homeDirectory, userConfigurationDirectoryNameConstant))
	}
	return searchPaths
}
