// Package decisions supplies the answers the link, switch and remote workflows need at their
// confirmation and selection points. Answers come from scripts, presets or a terminal.
package decisions

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Key identifies a decision point.
type Key string

const (
	KeyContinue            Key = "continue"
	KeySelectProjects      Key = "select-projects"
	KeySelectSubmodules    Key = "select-submodules"
	KeyBranchPolicy        Key = "branch-policy"
	KeyExistingBranch      Key = "existing-branch"
	KeyBranchName          Key = "branch-name"
	KeyUpdateFeatureBranch Key = "update-feature-branch"
	KeyCommitChanges       Key = "commit-changes"
	KeyPushChanges         Key = "push-changes"
	KeyCreatePullRequest   Key = "create-pull-request"
	KeyPullRequestProvider Key = "pull-request-provider"
	KeyTaskIdentifier      Key = "task-identifier"
	KeyPushSubmodule       Key = "push-submodule"
	KeyRemoteName          Key = "remote-name"
	KeyRemoteURL           Key = "remote-url"
	KeyConfigurationAction Key = "configuration-action"
	KeySwitchBranch        Key = "switch-branch"
	KeyUpdateProjects      Key = "update-projects"
	KeyUpdateSubmodules    Key = "update-submodules"
	KeySelectTask          Key = "select-task"
)

const (
	noOptionsMessageConstant       = "no options to choose from"
	unknownOptionMessageConstant   = "answer is not one of the offered options"
	invalidAnswerMessageConstant   = "invalid answer"
	decisionErrorTemplateConstant  = "%s (%s): %w"
	decisionValueTemplateConstant  = "%s (%s): %w: %q"
	defaultPromptTemplateConstant  = "%s %s"
	defaultPromptNoSubjectTemplate = "%s"
)

var (
	// ErrNoOptions indicates a choice was requested without options.
	ErrNoOptions = errors.New(noOptionsMessageConstant)
	// ErrUnknownOption indicates an answer outside the offered options.
	ErrUnknownOption = errors.New(unknownOptionMessageConstant)
	// ErrInvalidAnswer indicates an answer that could not be interpreted for the request.
	ErrInvalidAnswer = errors.New(invalidAnswerMessageConstant)
)

// Option is one selectable value.
type Option struct {
	Value string
	Label string
}

// ConfirmRequest asks a yes or no question.
type ConfirmRequest struct {
	Key     Key
	Subject string
	Prompt  string
	Default bool
}

// ChoiceRequest asks for exactly one option. An empty Default means the first option.
type ChoiceRequest struct {
	Key     Key
	Subject string
	Prompt  string
	Options []Option
	Default string
}

// MultiChoiceRequest asks for any subset of options.
type MultiChoiceRequest struct {
	Key      Key
	Subject  string
	Prompt   string
	Options  []Option
	Defaults []string
}

// TextRequest asks for free text. Validate, when set, rejects unusable answers.
type TextRequest struct {
	Key      Key
	Subject  string
	Prompt   string
	Default  string
	Validate func(value string) error
}

// Provider answers decision requests.
type Provider interface {
	Confirm(executionContext context.Context, request ConfirmRequest) (bool, error)
	Choose(executionContext context.Context, request ChoiceRequest) (string, error)
	ChooseMany(executionContext context.Context, request MultiChoiceRequest) ([]string, error)
	Text(executionContext context.Context, request TextRequest) (string, error)
}

// OptionsFromValues builds options whose label equals their value.
func OptionsFromValues(values []string) []Option {
	options := make([]Option, 0, len(values))
	for _, value := range values {
		options = append(options, Option{Value: value, Label: value})
	}
	return options
}

// RequireNonEmpty is a TextRequest validator rejecting blank answers.
func RequireNonEmpty(value string) error {
	if len(strings.TrimSpace(value)) == 0 {
		return ErrInvalidAnswer
	}
	return nil
}

func describePrompt(prompt string, key Key, subject string) string {
	if len(strings.TrimSpace(prompt)) > 0 {
		return prompt
	}
	if len(subject) == 0 {
		return fmt.Sprintf(defaultPromptNoSubjectTemplate, key)
	}
	return fmt.Sprintf(defaultPromptTemplateConstant, key, subject)
}

func defaultChoice(request ChoiceRequest) (string, error) {
	if len(request.Options) == 0 {
		return "", fmt.Errorf(decisionErrorTemplateConstant, request.Key, request.Subject, ErrNoOptions)
	}
	if len(request.Default) > 0 {
		return request.Default, nil
	}
	return request.Options[0].Value, nil
}

func ensureOption(request ChoiceRequest, value string) (string, error) {
	if !containsOption(request.Options, value) {
		return "", fmt.Errorf(decisionValueTemplateConstant, request.Key, request.Subject, ErrUnknownOption, value)
	}
	return value, nil
}

func ensureOptions(request MultiChoiceRequest, values []string) ([]string, error) {
	selected := make([]string, 0, len(values))
	for _, option := range request.Options {
		for _, value := range values {
			if option.Value == value {
				selected = append(selected, value)
				break
			}
		}
	}
	for _, value := range values {
		if !containsOption(request.Options, value) {
			return nil, fmt.Errorf(decisionValueTemplateConstant, request.Key, request.Subject, ErrUnknownOption, value)
		}
	}
	return selected, nil
}

func validateText(request TextRequest, value string) (string, error) {
	if request.Validate == nil {
		return value, nil
	}
	if validationError := request.Validate(value); validationError != nil {
		return "", fmt.Errorf(decisionErrorTemplateConstant, request.Key, request.Subject, validationError)
	}
	return value, nil
}

func containsOption(options []Option, value string) bool {
	for _, option := range options {
		if option.Value == value {
			return true
		}
	}
	return false
}
