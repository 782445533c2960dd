package flags

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/pflag"
)

const (
	toggleTrueCanonicalValue               = "true"
	toggleFalseCanonicalValue              = "false"
	toggleUnsetValue                       = ""
	toggleTypeName                         = "bool"
	toggleParseErrorTemplate               = "invalid toggle value %q"
	toggleArgumentTruePlaceholderConstant  = "<YES|no>"
	toggleArgumentFalsePlaceholderConstant = "<yes|NO>"
	toggleArgumentAskPlaceholderConstant   = "<yes|no>"
	toggleUsageEmptyTemplate               = "`%s`"
	toggleUsageFullTemplate                = "`%s` %s"
	longFlagPrefix                         = "--"
	shortFlagPrefix                        = "-"
	flagValueSeparator                     = "="
)

var (
	toggleLiterals = map[string]bool{
		"true": true, "yes": true, "on": true, "1": true, "t": true, "y": true,
		"false": false, "no": false, "off": false, "0": false, "f": false, "n": false,
	}

	toggleFlagRegistryMutex sync.RWMutex
	toggleFlagNames         = map[string]struct{}{}
	toggleFlagShorthands    = map[string]struct{}{}
)

// AddToggleFlag registers a boolean toggle flag that accepts yes/no style values.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if target != nil {
		*target = defaultValue
	}
	placeholder := toggleArgumentFalsePlaceholderConstant
	if defaultValue {
		placeholder = toggleArgumentTruePlaceholderConstant
	}
	registerToggle(flagSet, &toggleFlagValue{value: defaultValue, target: target}, name, shorthand, placeholder, usage)
}

// AddOptionalToggleFlag registers a yes/no toggle without a default. Leaving it unset lets configuration
// or a prompt decide; read it back with OptionalToggle.
func AddOptionalToggleFlag(flagSet *pflag.FlagSet, name string, usage string) {
	registerToggle(flagSet, &toggleFlagValue{optional: true}, name, "", toggleArgumentAskPlaceholderConstant, usage)
}

// OptionalToggle returns the value given for a toggle flag, or nil when the flag is absent or was not set.
func OptionalToggle(flagSet *pflag.FlagSet, name string) *bool {
	if flagSet == nil {
		return nil
	}
	flag := flagSet.Lookup(name)
	if flag == nil || !flag.Changed {
		return nil
	}
	value, parseError := ParseToggle(flag.Value.String())
	if parseError != nil {
		return nil
	}
	return &value
}

func registerToggle(flagSet *pflag.FlagSet, value *toggleFlagValue, name string, shorthand string, placeholder string, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}
	flagSet.VarP(value, name, shorthand, usage)
	flag := flagSet.Lookup(name)
	flag.NoOptDefVal = toggleTrueCanonicalValue
	if trimmed := strings.TrimSpace(usage); len(trimmed) > 0 {
		flag.Usage = fmt.Sprintf(toggleUsageFullTemplate, placeholder, trimmed)
	} else {
		flag.Usage = fmt.Sprintf(toggleUsageEmptyTemplate, placeholder)
	}

	toggleFlagRegistryMutex.Lock()
	defer toggleFlagRegistryMutex.Unlock()
	toggleFlagNames[name] = struct{}{}
	if len(shorthand) > 0 {
		toggleFlagShorthands[shorthand] = struct{}{}
	}
}

// NormalizeToggleArguments rewrites "--flag yes" and "-f no" into "--flag=yes" for toggle flags so an explicit
// yes/no is not mistaken for a positional argument. Any other following argument is left alone.
func NormalizeToggleArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}

	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == longFlagPrefix {
			return append(normalized, arguments[index:]...)
		}
		if joinsNextArgument(current) && index+1 < len(arguments) && isToggleLiteral(arguments[index+1]) {
			normalized = append(normalized, current+flagValueSeparator+arguments[index+1])
			index++
			continue
		}
		normalized = append(normalized, current)
	}
	return normalized
}

// joinsNextArgument reports whether argument is a bare toggle flag without an inline value.
func joinsNextArgument(argument string) bool {
	if strings.Contains(argument, flagValueSeparator) {
		return false
	}
	toggleFlagRegistryMutex.RLock()
	defer toggleFlagRegistryMutex.RUnlock()
	if name, isLong := strings.CutPrefix(argument, longFlagPrefix); isLong {
		_, registered := toggleFlagNames[name]
		return len(name) > 0 && registered
	}
	if shorthand, isShort := strings.CutPrefix(argument, shortFlagPrefix); isShort && len(shorthand) == 1 {
		_, registered := toggleFlagShorthands[shorthand]
		return registered
	}
	return false
}

func isToggleLiteral(argument string) bool {
	_, known := toggleLiterals[strings.ToLower(strings.TrimSpace(argument))]
	return known
}

// ParseToggle interprets yes/no style literals the same way toggle flags do. Empty values are true.
func ParseToggle(rawValue string) (bool, error) {
	trimmedValue := strings.ToLower(strings.TrimSpace(rawValue))
	if len(trimmedValue) == 0 {
		return true, nil
	}
	value, known := toggleLiterals[trimmedValue]
	if !known {
		return false, fmt.Errorf(toggleParseErrorTemplate, rawValue)
	}
	return value, nil
}

type toggleFlagValue struct {
	value    bool
	set      bool
	optional bool
	target   *bool
}

func (toggle *toggleFlagValue) Set(rawValue string) error {
	parsedValue, parseError := ParseToggle(rawValue)
	if parseError != nil {
		return parseError
	}
	toggle.value = parsedValue
	toggle.set = true
	if toggle.target != nil {
		*toggle.target = parsedValue
	}
	return nil
}

func (toggle *toggleFlagValue) String() string {
	switch {
	case toggle == nil:
		return toggleFalseCanonicalValue
	case toggle.optional && !toggle.set:
		return toggleUnsetValue
	case toggle.value:
		return toggleTrueCanonicalValue
	default:
		return toggleFalseCanonicalValue
	}
}

func (toggle *toggleFlagValue) Type() string {
	return toggleTypeName
}
