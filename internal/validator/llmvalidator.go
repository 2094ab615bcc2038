package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"broadcastengine/internal/llm"
	"broadcastengine/internal/observability"
)

// LLMInput is what the LLM validator sends to the validation model: the
// script plus the personality card context it must honor (spec §4.11
// mode 2).
type LLMInput struct {
	Script          string
	PersonalityCard string
}

// LLMValidator calls a second LLM with a JSON-shaped output contract and
// parses its response via a layered fallback (spec §4.11 mode 2, §9's
// "LLM JSON parsing via optimistic loads" guidance).
type LLMValidator struct {
	provider    llm.Provider
	model       string
	temperature float64
	maxTokens   int
}

// NewLLMValidator builds an LLMValidator.
func NewLLMValidator(provider llm.Provider, model string) *LLMValidator {
	return &LLMValidator{provider: provider, model: model, temperature: 0.0, maxTokens: 600}
}

const contractPrompt = `You are a strict content validator. Given a radio broadcast script and a character card, decide whether the script is valid.
Respond with ONLY a JSON object of this exact shape:
{"is_valid": bool, "overall_score": number between 0 and 1, "issues": [{"severity": "critical"|"warning"|"suggestion", "category": string, "message": string, "confidence": number between 0 and 1}], "feedback": string}

Character card:
%s

Script:
%s`

// Validate submits the script for judgement and parses the result.
func (v *LLMValidator) Validate(ctx context.Context, in LLMInput) (Result, error) {
	prompt := fmt.Sprintf(contractPrompt, in.PersonalityCard, in.Script)
	resp, err := v.provider.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, v.model, v.temperature, v.maxTokens)
	if err != nil {
		return Result{}, err
	}
	return parseLLMResult(ctx, resp.Text), nil
}

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseLLMResult implements the layered parser of spec §4.11 mode 2 and
// §9: fenced block -> bare JSON -> structured text -> synthesized safe
// default. It never returns an error; a parser failure downgrades to a
// synthetic valid result carrying a "parser-failure" warning so the
// pipeline never blocks on validator output shape.
func parseLLMResult(ctx context.Context, raw string) Result {
	if m := fencedBlockPattern.FindStringSubmatch(raw); m != nil {
		if r, ok := tryParseJSON(m[1]); ok {
			return r
		}
	}
	if r, ok := tryParseJSON(strings.TrimSpace(raw)); ok {
		return r
	}
	if first := strings.Index(raw, "{"); first >= 0 {
		if last := strings.LastIndex(raw, "}"); last > first {
			if r, ok := tryParseJSON(raw[first : last+1]); ok {
				return r
			}
		}
	}
	if r, ok := parseStructuredText(raw); ok {
		return r
	}
	observability.LoggerFromContext(ctx).Warn().Str("raw", truncate(raw, 200)).Msg("validator_parse_failure")
	return Result{
		IsValid:      true,
		OverallScore: 0.5,
		Issues: []Issue{{
			Severity: SeverityWarning, Category: "parser-failure",
			Message: "could not parse validator output; treated as valid", Confidence: 0,
		}},
		Feedback: "unparseable validator response",
	}
}

type llmContract struct {
	IsValid      bool    `json:"is_valid"`
	OverallScore float64 `json:"overall_score"`
	Issues       []struct {
		Severity   string  `json:"severity"`
		Category   string  `json:"category"`
		Message    string  `json:"message"`
		Confidence float64 `json:"confidence"`
	} `json:"issues"`
	Feedback string `json:"feedback"`
}

func tryParseJSON(s string) (Result, bool) {
	var c llmContract
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return Result{}, false
	}
	issues := make([]Issue, 0, len(c.Issues))
	for _, i := range c.Issues {
		issues = append(issues, Issue{
			Severity: Severity(i.Severity), Category: i.Category,
			Message: i.Message, Confidence: i.Confidence,
		})
	}
	return Result{IsValid: c.IsValid, OverallScore: c.OverallScore, Issues: issues, Feedback: c.Feedback}, true
}

var (
	isValidLinePattern = regexp.MustCompile(`(?i)is_valid\s*[:=]\s*(true|false)`)
	scoreLinePattern   = regexp.MustCompile(`(?i)score\s*[:=]\s*([0-9.]+)`)
	issueLinePattern   = regexp.MustCompile(`(?i)^-?\s*\[?(critical|warning|suggestion)\]?\s*[:\-]?\s*(.*)$`)
)

// parseStructuredText recognises "is_valid: ...", "score: ...", and an
// "issues:" section of plain lines, as the spec's structured-text
// fallback (spec §4.11 mode 2) requires.
func parseStructuredText(raw string) (Result, bool) {
	validMatch := isValidLinePattern.FindStringSubmatch(raw)
	if validMatch == nil {
		return Result{}, false
	}
	isValid := strings.EqualFold(validMatch[1], "true")
	score := 0.5
	if sm := scoreLinePattern.FindStringSubmatch(raw); sm != nil {
		if f, err := strconv.ParseFloat(sm[1], 64); err == nil {
			score = f
		}
	}
	var issues []Issue
	inIssues := false
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "issues:") {
			inIssues = true
			continue
		}
		if !inIssues || trimmed == "" {
			continue
		}
		if m := issueLinePattern.FindStringSubmatch(trimmed); m != nil {
			issues = append(issues, Issue{Severity: Severity(strings.ToLower(m[1])), Category: "general", Message: m[2], Confidence: 0.5})
		}
	}
	return Result{IsValid: isValid, OverallScore: score, Issues: issues, Feedback: ""}, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
