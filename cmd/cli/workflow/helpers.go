package workflow

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/decisions"
	flagutils "github.com/temirov/gitcaptain/internal/utils/flags"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// DecisionProviderFactory constructs the interactive decision provider scoped to a command.
type DecisionProviderFactory func(*cobra.Command) decisions.Provider

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveDecisionProvider(factory DecisionProviderFactory, command *cobra.Command) decisions.Provider {
	if factory != nil {
		provider := factory(command)
		if provider != nil {
			return provider
		}
	}
	return decisions.NewTerminal(command.InOrStdin(), command.OutOrStdout())
}

func togglePointer(command *cobra.Command, flagName string, configured *bool) *bool {
	if command == nil {
		return configured
	}
	if value := flagutils.OptionalToggle(command.Flags(), flagName); value != nil {
		return value
	}
	return configured
}

func stringFlag(command *cobra.Command, flagName string, configured string) string {
	if command == nil || !command.Flags().Changed(flagName) {
		return configured
	}
	value, _ := command.Flags().GetString(flagName)
	return value
}

func projectNames(command *cobra.Command, configured []string) []string {
	if command == nil || !command.Flags().Changed(flagutils.ProjectFlagName) {
		return flagutils.NormalizeNames(configured)
	}
	values, _ := command.Flags().GetStringSlice(flagutils.ProjectFlagName)
	return flagutils.NormalizeNames(values)
}
