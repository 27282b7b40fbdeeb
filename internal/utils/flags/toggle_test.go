package flags

import (
	"reflect"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestAddToggleFlagParsesValues(t *testing.T) {
	testCases := []struct {
		name            string
		arguments       []string
		expectedValue   bool
		expectedChanged bool
		expectedRest    []string
	}{
		{name: "DefaultFalse", arguments: []string{}, expectedValue: false, expectedChanged: false, expectedRest: []string{}},
		{name: "ImplicitTrue", arguments: []string{"--toggle"}, expectedValue: true, expectedChanged: true, expectedRest: []string{}},
		{name: "ImplicitTrueKeepsPositional", arguments: []string{"--toggle", "sales-dashboard"}, expectedValue: true, expectedChanged: true, expectedRest: []string{"sales-dashboard"}},
		{name: "ExplicitYes", arguments: []string{"--toggle=yes"}, expectedValue: true, expectedChanged: true, expectedRest: []string{}},
		{name: "ExplicitOffUppercase", arguments: []string{"--toggle=OFF"}, expectedValue: false, expectedChanged: true, expectedRest: []string{}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			command := &cobra.Command{}

			var toggleValue bool
			AddToggleFlag(command.Flags(), &toggleValue, "toggle", "", false, "Toggle flag")

			parseError := command.ParseFlags(testCase.arguments)
			require.NoError(t, parseError)
			require.Equal(t, testCase.expectedValue, toggleValue)
			require.ElementsMatch(t, testCase.expectedRest, command.Flags().Args())

			flag := command.Flags().Lookup("toggle")
			require.NotNil(t, flag)
			require.Equal(t, testCase.expectedChanged, flag.Changed)
		})
	}
}

func TestAddToggleFlagRejectsInvalidValues(t *testing.T) {
	command := &cobra.Command{}

	var toggleValue bool
	AddToggleFlag(command.Flags(), &toggleValue, "toggle", "", false, "Toggle flag")

	parseError := command.ParseFlags([]string{"--toggle=maybe"})
	require.Error(t, parseError)
	require.False(t, toggleValue)
}

func TestToggleDecodeHookConvertsStrings(t *testing.T) {
	decodeHook := ToggleDecodeHook()

	testCases := []struct {
		name     string
		input    any
		target   reflect.Type
		expected any
		wantErr  bool
	}{
		{name: "Empty", input: "", target: reflect.TypeOf(false), expected: false},
		{name: "Yes", input: "yes", target: reflect.TypeOf(false), expected: true},
		{name: "One", input: "1", target: reflect.TypeOf(false), expected: true},
		{name: "Invalid", input: "sometimes", target: reflect.TypeOf(false), wantErr: true},
		{name: "NonBoolTarget", input: "yes", target: reflect.TypeOf(""), expected: "yes"},
		{name: "NonStringSource", input: true, target: reflect.TypeOf(false), expected: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			converted, conversionError := decodeHook(reflect.TypeOf(testCase.input), testCase.target, testCase.input)
			if testCase.wantErr {
				require.Error(t, conversionError)
				return
			}
			require.NoError(t, conversionError)
			require.Equal(t, testCase.expected, converted)
		})
	}
}
