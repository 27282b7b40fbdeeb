package flags

import (
	"fmt"
	"reflect"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
)

const (
	toggleTrueCanonicalValue               = "true"
	toggleFalseCanonicalValue              = "false"
	toggleParseErrorTemplate               = "invalid toggle value %q"
	toggleArgumentTruePlaceholderConstant  = "<YES|no>"
	toggleArgumentFalsePlaceholderConstant = "<yes|NO>"
	toggleTypeNameConstant                 = "bool"
)

var (
	trueLiteralSet  = map[string]struct{}{"true": {}, "yes": {}, "on": {}, "1": {}, "t": {}, "y": {}}
	falseLiteralSet = map[string]struct{}{"false": {}, "no": {}, "off": {}, "0": {}, "f": {}, "n": {}}
)

// AddToggleFlag registers a boolean flag that accepts yes/no style values after "=".
// A bare flag means true.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}

	toggleValue := newToggleFlagValue(defaultValue, target)
	if len(shorthand) > 0 {
		flagSet.VarP(toggleValue, name, shorthand, usage)
	} else {
		flagSet.Var(toggleValue, name, usage)
	}

	flag := flagSet.Lookup(name)
	if flag == nil {
		return
	}
	flag.NoOptDefVal = toggleTrueCanonicalValue
	flag.Usage = formatToggleUsage(usage, defaultValue)
}

// ParseToggleValue interprets yes/no, on/off, 1/0 and true/false literals case-insensitively.
// An empty value is false so that unset environment toggles stay off.
func ParseToggleValue(rawValue string) (bool, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(rawValue))
	if len(normalizedValue) == 0 {
		return false, nil
	}
	if _, isTrue := trueLiteralSet[normalizedValue]; isTrue {
		return true, nil
	}
	if _, isFalse := falseLiteralSet[normalizedValue]; isFalse {
		return false, nil
	}
	return false, fmt.Errorf(toggleParseErrorTemplate, rawValue)
}

// ToggleDecodeHook converts string configuration values into booleans using ParseToggleValue.
func ToggleDecodeHook() mapstructure.DecodeHookFuncType {
	return func(sourceType reflect.Type, targetType reflect.Type, data any) (any, error) {
		if sourceType.Kind() != reflect.String || targetType.Kind() != reflect.Bool {
			return data, nil
		}
		return ParseToggleValue(reflect.ValueOf(data).String())
	}
}

func formatToggleUsage(description string, defaultValue bool) string {
	placeholder := toggleArgumentFalsePlaceholderConstant
	if defaultValue {
		placeholder = toggleArgumentTruePlaceholderConstant
	}
	trimmed := strings.TrimSpace(description)
	if len(trimmed) == 0 {
		return fmt.Sprintf("`%s`", placeholder)
	}
	return fmt.Sprintf("`%s` %s", placeholder, trimmed)
}

type toggleFlagValue struct {
	currentValue bool
	target       *bool
}

func newToggleFlagValue(defaultValue bool, target *bool) *toggleFlagValue {
	if target != nil {
		*target = defaultValue
	}
	return &toggleFlagValue{currentValue: defaultValue, target: target}
}

func (value *toggleFlagValue) Set(rawValue string) error {
	if len(strings.TrimSpace(rawValue)) == 0 {
		rawValue = toggleTrueCanonicalValue
	}
	parsedValue, parseError := ParseToggleValue(rawValue)
	if parseError != nil {
		return parseError
	}

	value.currentValue = parsedValue
	if value.target != nil {
		*value.target = parsedValue
	}
	return nil
}

func (value *toggleFlagValue) String() string {
	if value == nil || !value.currentValue {
		return toggleFalseCanonicalValue
	}
	return toggleTrueCanonicalValue
}

func (value *toggleFlagValue) Type() string {
	return toggleTypeNameConstant
}
