package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"broadcastengine/internal/llm"
)

// slowProvider blocks for delay or until ctx is cancelled, whichever comes
// first, to exercise the validation wall-clock budget.
type slowProvider struct {
	delay time.Duration
}

func (s slowProvider) Chat(ctx context.Context, _ []llm.Message, _ string, _ float64, _ int) (llm.Response, error) {
	select {
	case <-time.After(s.delay):
		return llm.Response{Text: `{"is_valid": true, "overall_score": 1, "issues": [], "feedback": "ok"}`}, nil
	case <-ctx.Done():
		return llm.Response{}, ctx.Err()
	}
}

func TestValidateDispatchesRulesMode(t *testing.T) {
	v := New(ModeRules, nil, 0)
	result := v.Validate(context.Background(), RuleInput{Script: "", YearDJ: 2102}, LLMInput{})
	require.False(t, result.IsValid)
}

func TestHybridShortCircuitsOnCriticalRuleCount(t *testing.T) {
	llmv := NewLLMValidator(fakeProvider{text: `{"is_valid": true, "overall_score": 1, "issues": [], "feedback": "ok"}`}, "claude-test")
	v := New(ModeHybrid, llmv, 0)

	in := RuleInput{
		Script:            "the Enclave marched east again by the year 2180.",
		YearDJ:            2102,
		ForbiddenFactions: []string{"Enclave"},
	}
	result := v.Validate(context.Background(), in, LLMInput{Script: "", PersonalityCard: ""})
	require.False(t, result.IsValid)
	require.GreaterOrEqual(t, result.criticalCount(), shortCircuitCriticalCount)
}

func TestHybridFallsBackToRulesWhenLLMNil(t *testing.T) {
	v := New(ModeHybrid, nil, 0)
	in := RuleInput{Script: "a perfectly fine broadcast line, friends.", YearDJ: 2102}
	result := v.Validate(context.Background(), in, LLMInput{})
	require.True(t, result.IsValid)
}

func TestHybridMergesRuleAndLLMResults(t *testing.T) {
	llmv := NewLLMValidator(fakeProvider{text: `{"is_valid": true, "overall_score": 0.8, "issues": [], "feedback": "solid"}`}, "claude-test")
	v := New(ModeHybrid, llmv, 0)

	in := RuleInput{Script: "a perfectly fine broadcast line, friends.", YearDJ: 2102}
	result := v.Validate(context.Background(), in, LLMInput{Script: "x", PersonalityCard: "y"})
	require.True(t, result.IsValid)
	require.Equal(t, "solid", result.Feedback)
}

func TestRunLLMWithBudgetTimesOutOnSlowProvider(t *testing.T) {
	llmv := NewLLMValidator(slowProvider{delay: 50 * time.Millisecond}, "claude-test")
	v := New(ModeLLM, llmv, 5*time.Millisecond)

	result := v.Validate(context.Background(), RuleInput{}, LLMInput{Script: "x", PersonalityCard: "y"})
	require.False(t, result.IsValid)
	require.Equal(t, "validation-timeout", result.Issues[0].Category)
}
