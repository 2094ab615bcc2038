package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"broadcastengine/internal/llm"
)

type fakeProvider struct {
	text string
	err  error
}

func (f fakeProvider) Chat(_ context.Context, _ []llm.Message, _ string, _ float64, _ int) (llm.Response, error) {
	return llm.Response{Text: f.text}, f.err
}

func TestLLMValidatorParsesFencedJSON(t *testing.T) {
	raw := "here you go:\n```json\n{\"is_valid\": false, \"overall_score\": 0.2, \"issues\": [{\"severity\": \"critical\", \"category\": \"content\", \"message\": \"bad\", \"confidence\": 0.9}], \"feedback\": \"nope\"}\n```"
	v := NewLLMValidator(fakeProvider{text: raw}, "claude-test")
	result, err := v.Validate(context.Background(), LLMInput{Script: "x", PersonalityCard: "y"})
	require.NoError(t, err)
	require.False(t, result.IsValid)
	require.Equal(t, 0.2, result.OverallScore)
	require.Len(t, result.Issues, 1)
	require.Equal(t, SeverityCritical, result.Issues[0].Severity)
}

func TestLLMValidatorParsesBraceExtractedJSON(t *testing.T) {
	raw := "Sure, the verdict is {\"is_valid\": true, \"overall_score\": 0.9, \"issues\": [], \"feedback\": \"fine\"} as requested."
	v := NewLLMValidator(fakeProvider{text: raw}, "claude-test")
	result, err := v.Validate(context.Background(), LLMInput{Script: "x", PersonalityCard: "y"})
	require.NoError(t, err)
	require.True(t, result.IsValid)
}

func TestLLMValidatorFallsBackToSyntheticValidOnUnparseable(t *testing.T) {
	v := NewLLMValidator(fakeProvider{text: "I refuse to answer in JSON today."}, "claude-test")
	result, err := v.Validate(context.Background(), LLMInput{Script: "x", PersonalityCard: "y"})
	require.NoError(t, err)
	require.True(t, result.IsValid)
	require.Equal(t, "parser-failure", result.Issues[0].Category)
}
