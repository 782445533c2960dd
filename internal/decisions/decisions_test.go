package decisions_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitcaptain/internal/decisions"
)

const (
	testProjectSubjectConstant = "api"
	testOtherSubjectConstant   = "web"
)

var testBranchOptions = decisions.OptionsFromValues([]string{"feature/a", "feature/b", "feature/c"})

func TestScriptPrefersSubjectAnswersOverWildcards(testInstance *testing.T) {
	script := decisions.NewScript().
		WithConfirm(decisions.KeyCommitChanges, "", true).
		WithConfirm(decisions.KeyCommitChanges, testOtherSubjectConstant, false)

	apiAnswer, apiError := script.Confirm(context.Background(), decisions.ConfirmRequest{Key: decisions.KeyCommitChanges, Subject: testProjectSubjectConstant})
	require.NoError(testInstance, apiError)
	require.True(testInstance, apiAnswer)

	webAnswer, webError := script.Confirm(context.Background(), decisions.ConfirmRequest{Key: decisions.KeyCommitChanges, Subject: testOtherSubjectConstant})
	require.NoError(testInstance, webError)
	require.False(testInstance, webAnswer)

	require.Equal(testInstance, 2, script.AskedCount(decisions.KeyCommitChanges))
	require.Equal(testInstance, []decisions.Asked{
		{Key: decisions.KeyCommitChanges, Subject: testProjectSubjectConstant},
		{Key: decisions.KeyCommitChanges, Subject: testOtherSubjectConstant},
	}, script.Asked())
}

func TestScriptFallsBackToDefaults(testInstance *testing.T) {
	script := decisions.NewScript()

	confirmed, confirmError := script.Confirm(context.Background(), decisions.ConfirmRequest{Key: decisions.KeyPushChanges, Default: true})
	require.NoError(testInstance, confirmError)
	require.True(testInstance, confirmed)

	choice, choiceError := script.Choose(context.Background(), decisions.ChoiceRequest{Key: decisions.KeyExistingBranch, Options: testBranchOptions})
	require.NoError(testInstance, choiceError)
	require.Equal(testInstance, "feature/a", choice)

	_, emptyError := script.Choose(context.Background(), decisions.ChoiceRequest{Key: decisions.KeyExistingBranch})
	require.ErrorIs(testInstance, emptyError, decisions.ErrNoOptions)

	choices, choicesError := script.ChooseMany(context.Background(), decisions.MultiChoiceRequest{
		Key:      decisions.KeySelectSubmodules,
		Options:  testBranchOptions,
		Defaults: []string{"feature/c", "feature/a"},
	})
	require.NoError(testInstance, choicesError)
	require.Equal(testInstance, []string{"feature/a", "feature/c"}, choices)

	_, textError := script.Text(context.Background(), decisions.TextRequest{Key: decisions.KeyBranchName, Validate: decisions.RequireNonEmpty})
	require.ErrorIs(testInstance, textError, decisions.ErrInvalidAnswer)
}

func TestScriptRejectsUnknownOptionsAndWrongTypes(testInstance *testing.T) {
	script := decisions.NewScript().
		WithChoice(decisions.KeyExistingBranch, "", "feature/z").
		WithText(decisions.KeyPushChanges, "", "yes")

	_, choiceError := script.Choose(context.Background(), decisions.ChoiceRequest{Key: decisions.KeyExistingBranch, Options: testBranchOptions})
	require.ErrorIs(testInstance, choiceError, decisions.ErrUnknownOption)

	_, confirmError := script.Confirm(context.Background(), decisions.ConfirmRequest{Key: decisions.KeyPushChanges})
	require.ErrorIs(testInstance, confirmError, decisions.ErrInvalidAnswer)
}

func TestPresetsOverrideFallback(testInstance *testing.T) {
	fallback := decisions.NewScript().WithConfirm(decisions.KeyCommitChanges, "", false).WithText(decisions.KeyBranchName, "", "feature/fallback")
	presets := decisions.NewPresets(fallback).
		SetConfirm(decisions.KeyCommitChanges, true).
		SetChoices(decisions.KeySelectProjects, "web")

	committed, commitError := presets.Confirm(context.Background(), decisions.ConfirmRequest{Key: decisions.KeyCommitChanges, Subject: testProjectSubjectConstant})
	require.NoError(testInstance, commitError)
	require.True(testInstance, committed)
	require.Zero(testInstance, fallback.AskedCount(decisions.KeyCommitChanges))

	branchName, branchError := presets.Text(context.Background(), decisions.TextRequest{Key: decisions.KeyBranchName})
	require.NoError(testInstance, branchError)
	require.Equal(testInstance, "feature/fallback", branchName)

	selected, selectError := presets.ChooseMany(context.Background(), decisions.MultiChoiceRequest{
		Key:     decisions.KeySelectProjects,
		Options: decisions.OptionsFromValues([]string{"api", "web"}),
	})
	require.NoError(testInstance, selectError)
	require.Equal(testInstance, []string{"web"}, selected)
}

func TestTerminalReadsAnswers(testInstance *testing.T) {
	input := strings.NewReader(strings.Join([]string{
		"maybe",
		"n",
		"",
		"7",
		"2",
		"3, feature/a",
		"",
		"feature/new",
	}, "\n") + "\n")
	output := &bytes.Buffer{}
	terminal := decisions.NewTerminal(input, output)

	confirmed, confirmError := terminal.Confirm(context.Background(), decisions.ConfirmRequest{Key: decisions.KeyCommitChanges, Prompt: "Commit changes?", Default: true})
	require.NoError(testInstance, confirmError)
	require.False(testInstance, confirmed)

	defaulted, defaultError := terminal.Confirm(context.Background(), decisions.ConfirmRequest{Key: decisions.KeyPushChanges, Prompt: "Push?", Default: true})
	require.NoError(testInstance, defaultError)
	require.True(testInstance, defaulted)

	choice, choiceError := terminal.Choose(context.Background(), decisions.ChoiceRequest{Key: decisions.KeyExistingBranch, Prompt: "Branch", Options: testBranchOptions})
	require.NoError(testInstance, choiceError)
	require.Equal(testInstance, "feature/b", choice)

	choices, choicesError := terminal.ChooseMany(context.Background(), decisions.MultiChoiceRequest{Key: decisions.KeySelectSubmodules, Prompt: "Submodules", Options: testBranchOptions})
	require.NoError(testInstance, choicesError)
	require.Equal(testInstance, []string{"feature/a", "feature/c"}, choices)

	branchName, textError := terminal.Text(context.Background(), decisions.TextRequest{Key: decisions.KeyBranchName, Prompt: "Branch name", Validate: decisions.RequireNonEmpty})
	require.NoError(testInstance, textError)
	require.Equal(testInstance, "feature/new", branchName)

	require.Contains(testInstance, output.String(), "Commit changes? [Y/n]: ")
	require.Contains(testInstance, output.String(), "  2) feature/b")
	require.Contains(testInstance, output.String(), "invalid answer")
	require.Contains(testInstance, output.String(), "answer is not one of the offered options")
}

func TestTerminalUsesDefaultsAfterInputCloses(testInstance *testing.T) {
	terminal := decisions.NewTerminal(strings.NewReader(""), &bytes.Buffer{})

	confirmed, confirmError := terminal.Confirm(context.Background(), decisions.ConfirmRequest{Key: decisions.KeyContinue})
	require.NoError(testInstance, confirmError)
	require.False(testInstance, confirmed)

	selected, selectError := terminal.ChooseMany(context.Background(), decisions.MultiChoiceRequest{
		Key:      decisions.KeySelectProjects,
		Options:  decisions.OptionsFromValues([]string{"api", "web"}),
		Defaults: []string{"web"},
	})
	require.NoError(testInstance, selectError)
	require.Equal(testInstance, []string{"web"}, selected)

	_, textError := terminal.Text(context.Background(), decisions.TextRequest{Key: decisions.KeyBranchName, Validate: decisions.RequireNonEmpty})
	require.ErrorIs(testInstance, textError, decisions.ErrInvalidAnswer)
}
