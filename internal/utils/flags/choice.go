package flags

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const (
	choicePlaceholderPrefix          = "<"
	choicePlaceholderSuffix          = ">"
	choiceSeparatorLiteral           = "|"
	choiceUsageEmptyTemplate         = "`%s`"
	choiceUsageFullTemplate          = "`%s` %s"
	unsupportedChoiceMessageConstant = "unsupported choice"
	unsupportedChoiceTemplate        = "%w %q (expected one of %s)"
	choiceListSeparatorConstant      = ", "
)

// ErrUnsupportedChoice indicates a flag value outside its allowed set.
var ErrUnsupportedChoice = errors.New(unsupportedChoiceMessageConstant)

// FormatChoiceUsage renders "`<a|B|c>` description" with the default choice upper-cased.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	normalizedDefault := normalizeChoice(defaultChoice)
	displayed := lo.Map(distinctChoices(choices), func(choice string, _ int) string {
		if len(normalizedDefault) > 0 && normalizeChoice(choice) == normalizedDefault {
			return strings.ToUpper(choice)
		}
		return choice
	})
	placeholder := choicePlaceholderPrefix + strings.Join(displayed, choiceSeparatorLiteral) + choicePlaceholderSuffix
	if len(strings.TrimSpace(description)) == 0 {
		return fmt.Sprintf(choiceUsageEmptyTemplate, placeholder)
	}
	return fmt.Sprintf(choiceUsageFullTemplate, placeholder, description)
}

// ParseChoice matches value case-insensitively against choices and returns the canonical spelling.
func ParseChoice(value string, choices []string) (string, error) {
	normalizedValue := normalizeChoice(value)
	canonical, found := lo.Find(distinctChoices(choices), func(choice string) bool {
		return normalizeChoice(choice) == normalizedValue
	})
	if !found {
		return "", fmt.Errorf(unsupportedChoiceTemplate, ErrUnsupportedChoice, strings.TrimSpace(value), strings.Join(distinctChoices(choices), choiceListSeparatorConstant))
	}
	return canonical, nil
}

func distinctChoices(choices []string) []string {
	trimmed := lo.FilterMap(choices, func(choice string, _ int) (string, bool) {
		trimmedChoice := strings.TrimSpace(choice)
		return trimmedChoice, len(trimmedChoice) > 0
	})
	return lo.UniqBy(trimmed, normalizeChoice)
}

func normalizeChoice(choice string) string {
	return strings.ToLower(strings.TrimSpace(choice))
}
