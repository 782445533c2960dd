package shared_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitcaptain/internal/repos/shared"
)

func TestConfirmationPolicyFromBool(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name              string
		assumeYes         bool
		expectedAssumeYes bool
	}{
		{name: "prompt", assumeYes: false},
		{name: "assume_yes", assumeYes: true, expectedAssumeYes: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			policy := shared.ConfirmationPolicyFromBool(testCase.assumeYes)
			require.Equal(t, testCase.expectedAssumeYes, policy.ShouldAssumeYes())
		})
	}
}

func TestWriterReporterFormatsOutput(t *testing.T) {
	t.Parallel()

	var output bytes.Buffer
	reporter := shared.NewWriterReporter(&output)

	reporter.Printf("%s: %d\n", "staged", 2)

	require.Equal(t, "staged: 2\n", output.String())
}
