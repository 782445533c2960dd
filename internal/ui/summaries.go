package ui

import (
	"strings"

	"github.com/temirov/gitcaptain/internal/repos/shared"
)

const (
	configurationSummaryTitleConstant = "CONFIGURATION SUMMARY"
	pullRequestSummaryTitleConstant   = "CREATED PULL/MERGE REQUESTS"
	summaryRuleCharacterConstant      = "="
	summaryTitleTemplateConstant      = "\n%s\n%s\n"
	summaryEntryTemplateConstant      = "%-*s %s\n"
	summaryLabelSuffixConstant        = ":"
	pullRequestLinkTemplateConstant   = "- [%s](%s)\n"
	summaryFooterTemplateConstant     = "%s\n"
	emptyValuePlaceholderConstant     = "-"
	listSeparatorConstant             = ", "
)

// SummaryEntry is one labelled line of a summary banner.
type SummaryEntry struct {
	Label string
	Value string
}

// ListValue joins values for a summary entry, using a dash for an empty list.
func ListValue(values []string) string {
	if len(values) == 0 {
		return emptyValuePlaceholderConstant
	}
	return strings.Join(values, listSeparatorConstant)
}

// PullRequestLink names a created pull request.
type PullRequestLink struct {
	Project string
	URL     string
}

// RenderConfigurationSummary prints the banner shown before a run mutates repositories.
func RenderConfigurationSummary(reporter shared.Reporter, entries []SummaryEntry) {
	if reporter == nil {
		return
	}
	renderTitle(reporter, configurationSummaryTitleConstant)
	labelWidth := 0
	for _, entry := range entries {
		labelWidth = max(labelWidth, len(entry.Label)+len(summaryLabelSuffixConstant))
	}
	for _, entry := range entries {
		value := strings.TrimSpace(entry.Value)
		if len(value) == 0 {
			value = emptyValuePlaceholderConstant
		}
		reporter.Printf(summaryEntryTemplateConstant, labelWidth, entry.Label+summaryLabelSuffixConstant, value)
	}
	reporter.Printf(summaryFooterTemplateConstant, strings.Repeat(summaryRuleCharacterConstant, len(configurationSummaryTitleConstant)))
}

// RenderPullRequestSummary prints created pull requests as a markdown list. Nothing is printed when the list is empty.
func RenderPullRequestSummary(reporter shared.Reporter, links []PullRequestLink) {
	if reporter == nil || len(links) == 0 {
		return
	}
	renderTitle(reporter, pullRequestSummaryTitleConstant)
	for _, link := range links {
		reporter.Printf(pullRequestLinkTemplateConstant, link.Project, link.URL)
	}
}

func renderTitle(reporter shared.Reporter, title string) {
	reporter.Printf(summaryTitleTemplateConstant, title, strings.Repeat(summaryRuleCharacterConstant, len(title)))
}
