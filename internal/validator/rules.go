// Package validator implements the Validator (C11): rule mode, LLM mode,
// and the hybrid combination with the retry policy from spec §4.11.
package validator

import (
	"regexp"
	"strconv"
	"strings"
)

// Severity enumerates an issue's severity, shared by rule and LLM modes.
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

// Issue is one finding against a script.
type Issue struct {
	Severity   Severity
	Category   string
	Message    string
	Confidence float64
}

// Result is a validation pass's outcome, shared by every mode.
type Result struct {
	IsValid      bool
	OverallScore float64
	Issues       []Issue
	Feedback     string
}

func (r Result) criticalCount() int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// RuleInput bundles everything a rule-mode pass needs, decoupling rules
// from the rest of the engine's types.
type RuleInput struct {
	Script              string
	YearDJ              int
	ForbiddenFactions    []string
	ForbiddenContentTerms []string
	AnachronismTerms    map[string]Severity // term (lowercased) -> severity
	HistoricalMarkers   []string            // e.g. "pre-war", "before the war"
	YearWhitelist       map[int]bool        // quoted past years always allowed
	MaxChars            int
}

// anachronismCategorySeverity maps spec §4.11 mode 1's four named
// categories to a severity: technology and cultural references that
// directly break setting are critical, slang and minor tech references
// are warnings. Categories outside this table fall back to a warning in
// CategorySeverity.
var anachronismCategorySeverity = map[string]Severity{
	"technology_critical": SeverityCritical,
	"cultural_critical":   SeverityCritical,
	"technology_minor":    SeverityWarning,
	"cultural_references": SeverityWarning,
	"modern_slang":        SeverityWarning,
}

// CategorySeverity resolves a categorised anachronism blacklist category
// name to its rule severity, defaulting unrecognised categories to a
// warning rather than silently dropping them.
func CategorySeverity(category string) Severity {
	if sev, ok := anachronismCategorySeverity[category]; ok {
		return sev
	}
	return SeverityWarning
}

var yearPattern = regexp.MustCompile(`\b(19|20|21|22)\d{2}\b`)
var fullDatePattern = regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December) \d{1,2}, (\d{4})\b`)
var runPattern = regexp.MustCompile(`(.)\1{5,}`)

// Rule is one isolated hard check; its signature guarantees a panic
// recovered by RunRules cannot cascade into another rule's result (spec
// §9: "rule execution is isolated").
type Rule func(in RuleInput) []Issue

// RunRules executes every rule in isolation (spec mode 1, <100ms target):
// a panicking rule contributes a single synthetic issue rather than
// aborting the pass.
func RunRules(in RuleInput) (result Result) {
	rules := []Rule{temporalRule, contentRule, anachronismRule, formatRule}
	var issues []Issue
	for _, rule := range rules {
		issues = append(issues, runIsolated(rule, in)...)
	}
	result = Result{Issues: issues, IsValid: true, OverallScore: 1}
	for _, i := range issues {
		if i.Severity == SeverityCritical {
			result.IsValid = false
		}
	}
	result.OverallScore = scoreFromIssues(issues)
	return result
}

func runIsolated(rule Rule, in RuleInput) (issues []Issue) {
	defer func() {
		if r := recover(); r != nil {
			issues = []Issue{{Severity: SeverityWarning, Category: "rule_panic", Message: "a rule failed internally and was skipped", Confidence: 1}}
		}
	}()
	return rule(in)
}

func scoreFromIssues(issues []Issue) float64 {
	score := 1.0
	for _, i := range issues {
		switch i.Severity {
		case SeverityCritical:
			score -= 0.4
		case SeverityWarning:
			score -= 0.15
		case SeveritySuggestion:
			score -= 0.05
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// temporalRule rejects year tokens beyond Y_dj unless preceded, within a
// context window, by a historical marker, or the year is whitelisted
// (spec §4.11 mode 1).
func temporalRule(in RuleInput) []Issue {
	var issues []Issue
	for _, match := range yearPattern.FindAllStringIndex(in.Script, -1) {
		token := in.Script[match[0]:match[1]]
		year, err := strconv.Atoi(token)
		if err != nil || year <= in.YearDJ {
			continue
		}
		if in.YearWhitelist[year] {
			continue
		}
		if hasHistoricalMarkerNear(in.Script, match[0], in.HistoricalMarkers) {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityCritical, Category: "temporal",
			Message: "year " + token + " exceeds dj year " + strconv.Itoa(in.YearDJ), Confidence: 0.9,
		})
	}
	for _, match := range fullDatePattern.FindAllStringSubmatch(in.Script, -1) {
		year, err := strconv.Atoi(match[2])
		if err != nil || year <= in.YearDJ || in.YearWhitelist[year] {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityCritical, Category: "temporal",
			Message: "date references year " + match[2] + " beyond dj year", Confidence: 0.95,
		})
	}
	return issues
}

const historicalContextWindow = 60 // characters either side; fixed, only the marker list is caller-supplied

func hasHistoricalMarkerNear(script string, idx int, markers []string) bool {
	lo, hi := idx-historicalContextWindow, idx+historicalContextWindow
	if lo < 0 {
		lo = 0
	}
	if hi > len(script) {
		hi = len(script)
	}
	window := strings.ToLower(script[lo:hi])
	for _, m := range markers {
		if strings.Contains(window, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// contentRule checks forbidden factions/topics are absent via
// word-boundary match, excepting historical/negated context windows
// (spec §4.11 mode 1).
func contentRule(in RuleInput) []Issue {
	var issues []Issue
	lower := strings.ToLower(in.Script)
	for _, term := range append(append([]string{}, in.ForbiddenFactions...), in.ForbiddenContentTerms...) {
		if term == "" {
			continue
		}
		pattern := `\b` + regexp.QuoteMeta(strings.ToLower(term)) + `\b`
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		for _, loc := range re.FindAllStringIndex(lower, -1) {
			if hasHistoricalMarkerNear(in.Script, loc[0], in.HistoricalMarkers) || hasNegationNear(lower, loc[0]) {
				continue
			}
			issues = append(issues, Issue{
				Severity: SeverityCritical, Category: "content",
				Message: "forbidden term present: " + term, Confidence: 0.85,
			})
		}
	}
	return issues
}

func hasNegationNear(lower string, idx int) bool {
	lo := idx - 20
	if lo < 0 {
		lo = 0
	}
	window := lower[lo:idx]
	return strings.Contains(window, "not ") || strings.Contains(window, "never ") || strings.Contains(window, "no longer ")
}

// anachronismRule flags categorized blacklist terms with per-category
// severity (spec §4.11 mode 1).
func anachronismRule(in RuleInput) []Issue {
	var issues []Issue
	lower := strings.ToLower(in.Script)
	for term, sev := range in.AnachronismTerms {
		if strings.Contains(lower, term) {
			issues = append(issues, Issue{
				Severity: sev, Category: "anachronism",
				Message: "anachronistic term: " + term, Confidence: 0.7,
			})
		}
	}
	return issues
}

// formatRule checks non-empty, word count, terminal punctuation, quote
// balance, max length, repeated-character runs, and all-caps fraction
// (spec §4.11 mode 1).
func formatRule(in RuleInput) []Issue {
	var issues []Issue
	trimmed := strings.TrimSpace(in.Script)
	if trimmed == "" {
		return []Issue{{Severity: SeverityCritical, Category: "format", Message: "script is empty", Confidence: 1}}
	}
	words := strings.Fields(trimmed)
	if len(words) < 5 {
		issues = append(issues, Issue{Severity: SeverityCritical, Category: "format", Message: "fewer than 5 words", Confidence: 1})
	}
	last := trimmed[len(trimmed)-1]
	if !strings.ContainsRune(".!?\"'", rune(last)) {
		issues = append(issues, Issue{Severity: SeverityWarning, Category: "format", Message: "does not end with terminal punctuation", Confidence: 0.8})
	}
	if strings.Count(trimmed, `"`)%2 != 0 {
		issues = append(issues, Issue{Severity: SeverityWarning, Category: "format", Message: "unbalanced quotes", Confidence: 0.6})
	}
	if in.MaxChars > 0 && len(trimmed) > in.MaxChars {
		issues = append(issues, Issue{Severity: SeverityCritical, Category: "format", Message: "exceeds max_chars", Confidence: 1})
	}
	if runPattern.MatchString(trimmed) {
		issues = append(issues, Issue{Severity: SeverityWarning, Category: "format", Message: "run of identical characters longer than 5", Confidence: 0.7})
	}
	if capsFraction(trimmed) > 0.3 {
		issues = append(issues, Issue{Severity: SeverityWarning, Category: "format", Message: "all-caps fraction exceeds 30%", Confidence: 0.6})
	}
	return issues
}

func capsFraction(s string) float64 {
	letters, caps := 0, 0
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			letters++
			if r >= 'A' && r <= 'Z' {
				caps++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(caps) / float64(letters)
}
