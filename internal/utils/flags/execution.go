// Package flags provides helpers for binding standardized flags to Cobra commands.
package flags

import (
	"strings"

	"github.com/spf13/cobra"
)

const (
	// AssumeYesFlagName exposes the shared assume-yes flag name.
	AssumeYesFlagName = "yes"
	// AssumeYesFlagShorthand provides the shorthand for the assume-yes flag.
	AssumeYesFlagShorthand = "y"
	// AssumeYesFlagUsage describes the shared assume-yes flag purpose.
	AssumeYesFlagUsage = "Continue past the configuration summary without asking"
	// ProjectFlagName exposes the shared project selection flag name.
	ProjectFlagName = "project"
	// ProjectFlagUsage describes the shared project selection flag purpose.
	ProjectFlagUsage = "Project to process (repeatable); prompts when omitted"
)

// ExecutionDefaults describes default flag values shared across commands.
type ExecutionDefaults struct {
	AssumeYes bool
}

// ExecutionFlags reports the parsed execution flags and whether the user set them explicitly.
type ExecutionFlags struct {
	AssumeYes    bool
	AssumeYesSet bool
}

// BindExecutionFlags attaches the assume-yes toggle to the command using persistent scope.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionDefaults) {
	if command == nil {
		return
	}
	persistentFlagSet := command.PersistentFlags()
	if persistentFlagSet.Lookup(AssumeYesFlagName) != nil {
		return
	}
	AddToggleFlag(persistentFlagSet, nil, AssumeYesFlagName, AssumeYesFlagShorthand, defaults.AssumeYes, AssumeYesFlagUsage)
}

// ResolveExecutionFlags reads the execution flags bound to the command or any of its parents.
func ResolveExecutionFlags(command *cobra.Command) (ExecutionFlags, bool) {
	assumeYes, assumeYesSet, found := ResolveToggle(command, AssumeYesFlagName)
	if !found {
		return ExecutionFlags{}, false
	}
	return ExecutionFlags{AssumeYes: assumeYes, AssumeYesSet: assumeYesSet}, true
}

// ResolveToggle returns the toggle value, whether the user changed it, and whether the flag exists.
func ResolveToggle(command *cobra.Command, flagName string) (bool, bool, bool) {
	if command == nil {
		return false, false, false
	}
	flag := command.Flags().Lookup(flagName)
	if flag == nil {
		flag = command.InheritedFlags().Lookup(flagName)
	}
	if flag == nil {
		return false, false, false
	}
	value, parseError := ParseToggle(flag.Value.String())
	if parseError != nil {
		return false, flag.Changed, true
	}
	return value, flag.Changed, true
}

// BindProjectFlag attaches the repeatable project selection flag.
func BindProjectFlag(command *cobra.Command, defaults []string) *[]string {
	values := append([]string{}, defaults...)
	if command == nil {
		return &values
	}
	command.Flags().StringSliceVar(&values, ProjectFlagName, values, ProjectFlagUsage)
	return &values
}

// NormalizeNames trims entries and drops empty and duplicate names while keeping order.
func NormalizeNames(names []string) []string {
	normalized := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if len(trimmed) == 0 {
			continue
		}
		if _, duplicate := seen[trimmed]; duplicate {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
