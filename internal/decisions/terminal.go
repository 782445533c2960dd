package decisions

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

const (
	confirmPromptYesDefaultTemplate   = "%s [Y/n]: "
	confirmPromptNoDefaultTemplate    = "%s [y/N]: "
	choicePromptTemplateConstant      = "%s [%s]: "
	multiChoicePromptTemplateConstant = "%s (comma separated numbers or values, %q for every option) [%s]: "
	textPromptTemplateConstant        = "%s [%s]: "
	textPromptNoDefaultTemplate       = "%s: "
	optionLineTemplateConstant        = "  %d) %s\n"
	retryLineTemplateConstant         = "%v\n"
	allOptionsKeywordConstant         = "all"
	multiChoiceSeparatorConstant      = ","
	noDefaultsDescriptionConstant     = "none"
	answerYesShortConstant            = "y"
	answerYesLongConstant             = "yes"
	answerNoShortConstant             = "n"
	answerNoLongConstant              = "no"
	unknownOptionTemplateConstant     = "%w: %q"
)

// Terminal asks questions line by line on an input and output pair. An empty answer accepts the default,
// and a closed input answers every further question with its default.
type Terminal struct {
	mutex  sync.Mutex
	reader *bufio.Reader
	writer io.Writer
	closed bool
}

// NewTerminal constructs a Terminal.
func NewTerminal(input io.Reader, output io.Writer) *Terminal {
	if output == nil {
		output = io.Discard
	}
	var reader *bufio.Reader
	if input != nil {
		reader = bufio.NewReader(input)
	}
	return &Terminal{reader: reader, writer: output, closed: input == nil}
}

// Confirm implements Provider.
func (terminal *Terminal) Confirm(executionContext context.Context, request ConfirmRequest) (bool, error) {
	terminal.mutex.Lock()
	defer terminal.mutex.Unlock()

	template := confirmPromptNoDefaultTemplate
	if request.Default {
		template = confirmPromptYesDefaultTemplate
	}
	for {
		answer, readError := terminal.ask(executionContext, fmt.Sprintf(template, describePrompt(request.Prompt, request.Key, request.Subject)))
		if readError != nil {
			return false, readError
		}
		switch strings.ToLower(answer) {
		case "":
			return request.Default, nil
		case answerYesShortConstant, answerYesLongConstant:
			return true, nil
		case answerNoShortConstant, answerNoLongConstant:
			return false, nil
		}
		terminal.retry(fmt.Errorf(decisionValueTemplateConstant, request.Key, request.Subject, ErrInvalidAnswer, answer))
	}
}

// Choose implements Provider.
func (terminal *Terminal) Choose(executionContext context.Context, request ChoiceRequest) (string, error) {
	terminal.mutex.Lock()
	defer terminal.mutex.Unlock()

	defaultValue, defaultError := defaultChoice(request)
	if defaultError != nil {
		return "", defaultError
	}
	terminal.listOptions(request.Options)
	for {
		answer, readError := terminal.ask(executionContext, fmt.Sprintf(choicePromptTemplateConstant, describePrompt(request.Prompt, request.Key, request.Subject), defaultValue))
		if readError != nil {
			return "", readError
		}
		if len(answer) == 0 {
			return defaultValue, nil
		}
		value, resolveError := resolveOption(request.Options, answer)
		if resolveError == nil {
			return value, nil
		}
		terminal.retry(fmt.Errorf(decisionErrorTemplateConstant, request.Key, request.Subject, resolveError))
	}
}

// ChooseMany implements Provider.
func (terminal *Terminal) ChooseMany(executionContext context.Context, request MultiChoiceRequest) ([]string, error) {
	terminal.mutex.Lock()
	defer terminal.mutex.Unlock()

	if len(request.Options) == 0 {
		return nil, fmt.Errorf(decisionErrorTemplateConstant, request.Key, request.Subject, ErrNoOptions)
	}
	defaultsDescription := noDefaultsDescriptionConstant
	if len(request.Defaults) > 0 {
		defaultsDescription = strings.Join(request.Defaults, multiChoiceSeparatorConstant)
	}
	terminal.listOptions(request.Options)
	for {
		answer, readError := terminal.ask(executionContext, fmt.Sprintf(multiChoicePromptTemplateConstant, describePrompt(request.Prompt, request.Key, request.Subject), allOptionsKeywordConstant, defaultsDescription))
		if readError != nil {
			return nil, readError
		}
		if len(answer) == 0 {
			return ensureOptions(request, request.Defaults)
		}
		if strings.EqualFold(answer, allOptionsKeywordConstant) {
			values := make([]string, 0, len(request.Options))
			for _, option := range request.Options {
				values = append(values, option.Value)
			}
			return values, nil
		}

		values := []string{}
		var resolveError error
		for _, token := range strings.Split(answer, multiChoiceSeparatorConstant) {
			trimmed := strings.TrimSpace(token)
			if len(trimmed) == 0 {
				continue
			}
			value, tokenError := resolveOption(request.Options, trimmed)
			if tokenError != nil {
				resolveError = tokenError
				break
			}
			values = append(values, value)
		}
		if resolveError == nil {
			return ensureOptions(request, values)
		}
		terminal.retry(fmt.Errorf(decisionErrorTemplateConstant, request.Key, request.Subject, resolveError))
	}
}

// Text implements Provider.
func (terminal *Terminal) Text(executionContext context.Context, request TextRequest) (string, error) {
	terminal.mutex.Lock()
	defer terminal.mutex.Unlock()

	prompt := describePrompt(request.Prompt, request.Key, request.Subject)
	question := fmt.Sprintf(textPromptNoDefaultTemplate, prompt)
	if len(request.Default) > 0 {
		question = fmt.Sprintf(textPromptTemplateConstant, prompt, request.Default)
	}
	for {
		answer, readError := terminal.ask(executionContext, question)
		if readError != nil {
			return "", readError
		}
		if len(answer) == 0 {
			answer = request.Default
		}
		value, validationError := validateText(request, answer)
		if validationError == nil {
			return value, nil
		}
		if terminal.closed {
			return "", validationError
		}
		terminal.retry(validationError)
	}
}

func (terminal *Terminal) ask(executionContext context.Context, question string) (string, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return "", contextError
	}
	fmt.Fprint(terminal.writer, question)
	if terminal.closed {
		fmt.Fprintln(terminal.writer)
		return "", nil
	}
	line, readError := terminal.reader.ReadString('\n')
	if readError != nil {
		if !errors.Is(readError, io.EOF) {
			return "", readError
		}
		terminal.closed = true
	}
	return strings.TrimSpace(line), nil
}

func (terminal *Terminal) retry(problem error) {
	fmt.Fprintf(terminal.writer, retryLineTemplateConstant, problem)
}

func (terminal *Terminal) listOptions(options []Option) {
	for index, option := range options {
		label := option.Label
		if len(label) == 0 {
			label = option.Value
		}
		fmt.Fprintf(terminal.writer, optionLineTemplateConstant, index+1, label)
	}
}

func resolveOption(options []Option, answer string) (string, error) {
	if position, parseError := strconv.Atoi(answer); parseError == nil {
		if position >= 1 && position <= len(options) {
			return options[position-1].Value, nil
		}
	}
	for _, option := range options {
		if option.Value == answer {
			return option.Value, nil
		}
	}
	return "", fmt.Errorf(unknownOptionTemplateConstant, ErrUnknownOption, answer)
}
