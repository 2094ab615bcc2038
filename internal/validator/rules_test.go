package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategorySeverityMapsKnownCategories(t *testing.T) {
	require.Equal(t, SeverityCritical, CategorySeverity("technology_critical"))
	require.Equal(t, SeverityCritical, CategorySeverity("cultural_critical"))
	require.Equal(t, SeverityWarning, CategorySeverity("technology_minor"))
	require.Equal(t, SeverityWarning, CategorySeverity("modern_slang"))
}

func TestCategorySeverityDefaultsUnknownCategoryToWarning(t *testing.T) {
	require.Equal(t, SeverityWarning, CategorySeverity("something_new"))
}

func TestTemporalRuleFlagsFutureYear(t *testing.T) {
	in := RuleInput{Script: "it happened back in 2180, a terrible year.", YearDJ: 2102}
	result := RunRules(in)
	require.False(t, result.IsValid)
	require.Equal(t, 1, result.criticalCount())
}

func TestTemporalRuleAllowsHistoricalMarker(t *testing.T) {
	in := RuleInput{
		Script:            "pre-war optimists swore the world would still be turning by 2180.",
		YearDJ:            2102,
		HistoricalMarkers: []string{"pre-war"},
	}
	result := RunRules(in)
	require.True(t, result.IsValid)
}

func TestContentRuleFlagsForbiddenFaction(t *testing.T) {
	in := RuleInput{
		Script:            "the Enclave patrol rolled through at dawn.",
		YearDJ:            2102,
		ForbiddenFactions: []string{"Enclave"},
	}
	result := RunRules(in)
	require.False(t, result.IsValid)
}

func TestContentRuleAllowsNegatedMention(t *testing.T) {
	in := RuleInput{
		Script:            "no longer are Enclave patrols seen around these parts.",
		YearDJ:            2102,
		ForbiddenFactions: []string{"Enclave"},
	}
	result := RunRules(in)
	require.True(t, result.IsValid)
}

func TestFormatRuleRejectsEmptyScript(t *testing.T) {
	result := RunRules(RuleInput{Script: "   ", YearDJ: 2102})
	require.False(t, result.IsValid)
	require.Equal(t, 1, result.criticalCount())
}

func TestFormatRuleRejectsOverMaxChars(t *testing.T) {
	script := "this is a perfectly fine broadcast sentence, friends."
	result := RunRules(RuleInput{Script: script, YearDJ: 2102, MaxChars: 10})
	require.False(t, result.IsValid)
}

func TestAnachronismRuleUsesConfiguredSeverity(t *testing.T) {
	in := RuleInput{
		Script: "don't forget to check your smartphone for updates, folks.",
		YearDJ: 2102,
		AnachronismTerms: map[string]Severity{
			"smartphone": SeverityCritical,
		},
	}
	result := RunRules(in)
	require.False(t, result.IsValid)
	require.Equal(t, "anachronism", result.Issues[0].Category)
}
