package workflow

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/temirov/gitcaptain/internal/branches/switcher"
	"github.com/temirov/gitcaptain/internal/linking"
	"github.com/temirov/gitcaptain/internal/repos/remotes"
)

const (
	optionsDecoderErrorTemplateConstant = "failed to prepare %s options decoder: %w"
	optionsDecodeErrorTemplateConstant  = "invalid %s options: %w"
)

// LinkTaskOptions configures a link-submodules step. Unset toggles are asked for.
type LinkTaskOptions struct {
	Projects            []string `mapstructure:"projects"`
	BranchName          string   `mapstructure:"branch"`
	UpdateFeatureBranch *bool    `mapstructure:"update_feature_branch"`
	Commit              *bool    `mapstructure:"commit"`
	Push                *bool    `mapstructure:"push"`
	PullRequest         *bool    `mapstructure:"create_pull_request"`
	Provider            string   `mapstructure:"provider"`
	TaskID              string   `mapstructure:"task_id"`
	TitleTemplate       string   `mapstructure:"title_template"`
	DescriptionTemplate string   `mapstructure:"description_template"`
}

// SwitchTaskOptions configures a switch-branch step.
type SwitchTaskOptions struct {
	Projects         []string `mapstructure:"projects"`
	BranchName       string   `mapstructure:"branch"`
	UpdateProjects   *bool    `mapstructure:"update_projects"`
	UpdateSubmodules *bool    `mapstructure:"update_submodules"`
}

// RemoteTaskOptions configures a change-remote step.
type RemoteTaskOptions struct {
	Projects []string `mapstructure:"projects"`
}

// DecodeLinkOptions decodes step options over the supplied defaults.
func DecodeLinkOptions(raw map[string]any, defaults LinkTaskOptions) (LinkTaskOptions, error) {
	decoded := defaults
	return decoded, decodeOptions(TaskTypeLinkSubmodules, raw, &decoded)
}

// DecodeSwitchOptions decodes step options over the supplied defaults.
func DecodeSwitchOptions(raw map[string]any, defaults SwitchTaskOptions) (SwitchTaskOptions, error) {
	decoded := defaults
	return decoded, decodeOptions(TaskTypeSwitchBranch, raw, &decoded)
}

// DecodeRemoteOptions decodes step options over the supplied defaults.
func DecodeRemoteOptions(raw map[string]any, defaults RemoteTaskOptions) (RemoteTaskOptions, error) {
	decoded := defaults
	return decoded, decodeOptions(TaskTypeChangeRemote, raw, &decoded)
}

// Presets converts the options into link presets.
func (options LinkTaskOptions) Presets() linking.Presets {
	return linking.Presets{
		BranchName:          options.BranchName,
		UpdateFeatureBranch: options.UpdateFeatureBranch,
		Commit:              options.Commit,
		Push:                options.Push,
		PullRequest:         options.PullRequest,
		ProviderName:        options.Provider,
		TaskID:              options.TaskID,
		TitleTemplate:       options.TitleTemplate,
		DescriptionTemplate: options.DescriptionTemplate,
	}
}

// LinkOptions converts the options into a link request.
func (options LinkTaskOptions) LinkOptions() linking.Options {
	return linking.Options{ProjectNames: options.Projects, Presets: options.Presets()}
}

// SwitchOptions converts the options into a switch request.
func (options SwitchTaskOptions) SwitchOptions(dryRun bool) switcher.Options {
	return switcher.Options{
		ProjectNames:     options.Projects,
		BranchName:       options.BranchName,
		UpdateProjects:   options.UpdateProjects,
		UpdateSubmodules: options.UpdateSubmodules,
		DryRun:           dryRun,
	}
}

// ChangeOptions converts the options into a remote change request.
func (options RemoteTaskOptions) ChangeOptions(dryRun bool) remotes.Options {
	return remotes.Options{ProjectNames: options.Projects, DryRun: dryRun}
}

func decodeOptions(taskType TaskType, raw map[string]any, target any) error {
	if len(raw) == 0 {
		return nil
	}
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           target,
	})
	if decoderError != nil {
		return fmt.Errorf(optionsDecoderErrorTemplateConstant, taskType, decoderError)
	}
	if decodeError := decoder.Decode(raw); decodeError != nil {
		return fmt.Errorf(optionsDecodeErrorTemplateConstant, taskType, decodeError)
	}
	return nil
}
