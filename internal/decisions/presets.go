package decisions

import (
	"context"
)

// Presets answers keys fixed for the whole run, for example from command flags or the link section of the
// configuration, and delegates every other request to a fallback provider.
type Presets struct {
	fallback Provider
	confirms map[Key]bool
	choices  map[Key]string
	multi    map[Key][]string
	texts    map[Key]string
}

// NewPresets constructs Presets. A nil fallback answers with request defaults.
func NewPresets(fallback Provider) *Presets {
	if fallback == nil {
		fallback = NewScript()
	}
	return &Presets{
		fallback: fallback,
		confirms: map[Key]bool{},
		choices:  map[Key]string{},
		multi:    map[Key][]string{},
		texts:    map[Key]string{},
	}
}

// SetConfirm fixes the answer for a yes or no key.
func (presets *Presets) SetConfirm(key Key, value bool) *Presets {
	presets.confirms[key] = value
	return presets
}

// SetChoice fixes the answer for a single choice key.
func (presets *Presets) SetChoice(key Key, value string) *Presets {
	presets.choices[key] = value
	return presets
}

// SetChoices fixes the answer for a multi choice key.
func (presets *Presets) SetChoices(key Key, values ...string) *Presets {
	presets.multi[key] = append([]string{}, values...)
	return presets
}

// SetText fixes the answer for a text key.
func (presets *Presets) SetText(key Key, value string) *Presets {
	presets.texts[key] = value
	return presets
}

// Confirm implements Provider.
func (presets *Presets) Confirm(executionContext context.Context, request ConfirmRequest) (bool, error) {
	if value, found := presets.confirms[request.Key]; found {
		return value, nil
	}
	return presets.fallback.Confirm(executionContext, request)
}

// Choose implements Provider.
func (presets *Presets) Choose(executionContext context.Context, request ChoiceRequest) (string, error) {
	if value, found := presets.choices[request.Key]; found {
		return ensureOption(request, value)
	}
	return presets.fallback.Choose(executionContext, request)
}

// ChooseMany implements Provider.
func (presets *Presets) ChooseMany(executionContext context.Context, request MultiChoiceRequest) ([]string, error) {
	if values, found := presets.multi[request.Key]; found {
		return ensureOptions(request, values)
	}
	return presets.fallback.ChooseMany(executionContext, request)
}

// Text implements Provider.
func (presets *Presets) Text(executionContext context.Context, request TextRequest) (string, error) {
	if value, found := presets.texts[request.Key]; found {
		return validateText(request, value)
	}
	return presets.fallback.Text(executionContext, request)
}
