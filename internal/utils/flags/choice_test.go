package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testProviderChoices = []string{"gitlab", "azure-devops", "github"}

func TestFormatChoiceUsage(t *testing.T) {
	testCases := []struct {
		name           string
		defaultChoice  string
		choices        []string
		description    string
		expectedOutput string
	}{
		{
			name:           "NoDefault",
			choices:        testProviderChoices,
			description:    "Pull request provider",
			expectedOutput: "`<gitlab|azure-devops|github>` Pull request provider",
		},
		{
			name:           "DefaultHighlighted",
			defaultChoice:  "console",
			choices:        []string{"structured", "console"},
			description:    "Log format",
			expectedOutput: "`<structured|CONSOLE>` Log format",
		},
		{
			name:           "EmptyDescription",
			defaultChoice:  "gitlab",
			choices:        testProviderChoices,
			expectedOutput: "`<GITLAB|azure-devops|github>`",
		},
		{
			name:           "DuplicatesAndBlanksIgnored",
			defaultChoice:  "GitHub",
			choices:        []string{"github", " ", "GITHUB", "gitlab"},
			description:    "Provider",
			expectedOutput: "`<GITHUB|gitlab>` Provider",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			require.Equal(t, testCase.expectedOutput, FormatChoiceUsage(testCase.defaultChoice, testCase.choices, testCase.description))
		})
	}
}

func TestParseChoice(t *testing.T) {
	canonical, parseError := ParseChoice("  Azure-DevOps ", testProviderChoices)
	require.NoError(t, parseError)
	require.Equal(t, "azure-devops", canonical)

	_, unsupportedError := ParseChoice("bitbucket", testProviderChoices)
	require.ErrorIs(t, unsupportedError, ErrUnsupportedChoice)
	require.Contains(t, unsupportedError.Error(), "gitlab, azure-devops, github")
}
