package decisions

import (
	"context"
	"fmt"
	"sync"
)

const (
	// AnySubjectConstant matches every subject of a key in a Script.
	AnySubjectConstant       = "*"
	scriptAnswerTypeTemplate = "%s (%s): %w: scripted %T"
)

// Asked records one request served by a Script.
type Asked struct {
	Key     Key
	Subject string
}

type scriptKey struct {
	key     Key
	subject string
}

// Script answers from registered values and falls back to each request's default.
// Answers registered for a concrete subject win over AnySubjectConstant answers.
type Script struct {
	mutex   sync.Mutex
	answers map[scriptKey]any
	asked   []Asked
}

// NewScript constructs an empty Script, which answers every request with its default.
func NewScript() *Script {
	return &Script{answers: map[scriptKey]any{}}
}

// WithConfirm registers a yes or no answer.
func (script *Script) WithConfirm(key Key, subject string, value bool) *Script {
	return script.register(key, subject, value)
}

// WithChoice registers a single choice.
func (script *Script) WithChoice(key Key, subject string, value string) *Script {
	return script.register(key, subject, value)
}

// WithChoices registers a multi choice.
func (script *Script) WithChoices(key Key, subject string, values ...string) *Script {
	return script.register(key, subject, append([]string{}, values...))
}

// WithText registers a text answer.
func (script *Script) WithText(key Key, subject string, value string) *Script {
	return script.register(key, subject, value)
}

// Asked returns every served request in order.
func (script *Script) Asked() []Asked {
	script.mutex.Lock()
	defer script.mutex.Unlock()
	return append([]Asked{}, script.asked...)
}

// AskedCount counts served requests for the key.
func (script *Script) AskedCount(key Key) int {
	count := 0
	for _, asked := range script.Asked() {
		if asked.Key == key {
			count++
		}
	}
	return count
}

func (script *Script) register(key Key, subject string, value any) *Script {
	script.mutex.Lock()
	defer script.mutex.Unlock()
	if script.answers == nil {
		script.answers = map[scriptKey]any{}
	}
	if len(subject) == 0 {
		subject = AnySubjectConstant
	}
	script.answers[scriptKey{key: key, subject: subject}] = value
	return script
}

func (script *Script) lookup(key Key, subject string) (any, bool) {
	script.mutex.Lock()
	defer script.mutex.Unlock()
	script.asked = append(script.asked, Asked{Key: key, Subject: subject})
	if value, found := script.answers[scriptKey{key: key, subject: subject}]; found {
		return value, true
	}
	value, found := script.answers[scriptKey{key: key, subject: AnySubjectConstant}]
	return value, found
}

// Confirm implements Provider.
func (script *Script) Confirm(executionContext context.Context, request ConfirmRequest) (bool, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return false, contextError
	}
	value, found := script.lookup(request.Key, request.Subject)
	if !found {
		return request.Default, nil
	}
	confirmed, typed := value.(bool)
	if !typed {
		return false, fmt.Errorf(scriptAnswerTypeTemplate, request.Key, request.Subject, ErrInvalidAnswer, value)
	}
	return confirmed, nil
}

// Choose implements Provider.
func (script *Script) Choose(executionContext context.Context, request ChoiceRequest) (string, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return "", contextError
	}
	value, found := script.lookup(request.Key, request.Subject)
	if !found {
		return defaultChoice(request)
	}
	choice, typed := value.(string)
	if !typed {
		return "", fmt.Errorf(scriptAnswerTypeTemplate, request.Key, request.Subject, ErrInvalidAnswer, value)
	}
	return ensureOption(request, choice)
}

// ChooseMany implements Provider.
func (script *Script) ChooseMany(executionContext context.Context, request MultiChoiceRequest) ([]string, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return nil, contextError
	}
	value, found := script.lookup(request.Key, request.Subject)
	if !found {
		return ensureOptions(request, request.Defaults)
	}
	choices, typed := value.([]string)
	if !typed {
		return nil, fmt.Errorf(scriptAnswerTypeTemplate, request.Key, request.Subject, ErrInvalidAnswer, value)
	}
	return ensureOptions(request, choices)
}

// Text implements Provider.
func (script *Script) Text(executionContext context.Context, request TextRequest) (string, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return "", contextError
	}
	value, found := script.lookup(request.Key, request.Subject)
	if !found {
		return validateText(request, request.Default)
	}
	text, typed := value.(string)
	if !typed {
		return "", fmt.Errorf(scriptAnswerTypeTemplate, request.Key, request.Subject, ErrInvalidAnswer, value)
	}
	return validateText(request, text)
}
