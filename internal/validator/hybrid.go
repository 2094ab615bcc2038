package validator

import (
	"context"
	"time"

	"broadcastengine/internal/observability"
)

// Mode selects which of the three validation strategies to run.
type Mode string

const (
	ModeRules  Mode = "rules"
	ModeLLM    Mode = "llm"
	ModeHybrid Mode = "hybrid"
)

// shortCircuitCriticalCount is the rule-critical-issue threshold past
// which hybrid mode skips the LLM pass entirely (spec §4.11 mode 3:
// "if >=2 critical rule issues, short-circuit as invalid").
const shortCircuitCriticalCount = 2

// Validator drives one of the three validation modes against a script.
type Validator struct {
	mode            Mode
	llm             *LLMValidator
	validationBudget time.Duration
}

// New builds a Validator. llmValidator may be nil when mode == ModeRules.
func New(mode Mode, llmValidator *LLMValidator, validationBudget time.Duration) *Validator {
	if validationBudget <= 0 {
		validationBudget = 30 * time.Second
	}
	return &Validator{mode: mode, llm: llmValidator, validationBudget: validationBudget}
}

// Validate runs the configured mode (spec §4.11).
func (v *Validator) Validate(ctx context.Context, ruleIn RuleInput, llmIn LLMInput) Result {
	switch v.mode {
	case ModeRules:
		return RunRules(ruleIn)
	case ModeLLM:
		return v.runLLMWithBudget(ctx, llmIn)
	default:
		return v.runHybrid(ctx, ruleIn, llmIn)
	}
}

// runHybrid implements spec §4.11 mode 3: rules first; short-circuit on
// >=2 critical rule issues; otherwise run the LLM pass under a
// wall-clock budget, timing out to invalid-with-warning rather than
// blocking the pipeline.
func (v *Validator) runHybrid(ctx context.Context, ruleIn RuleInput, llmIn LLMInput) Result {
	ruleResult := RunRules(ruleIn)
	if ruleResult.criticalCount() >= shortCircuitCriticalCount {
		return ruleResult
	}
	if v.llm == nil {
		return ruleResult
	}
	llmResult := v.runLLMWithBudget(ctx, llmIn)
	merged := Result{
		IsValid:      ruleResult.IsValid && llmResult.IsValid,
		OverallScore: (ruleResult.OverallScore + llmResult.OverallScore) / 2,
		Issues:       append(append([]Issue{}, ruleResult.Issues...), llmResult.Issues...),
		Feedback:     llmResult.Feedback,
	}
	return merged
}

func (v *Validator) runLLMWithBudget(ctx context.Context, llmIn LLMInput) Result {
	budgetCtx, cancel := context.WithTimeout(ctx, v.validationBudget)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := v.llm.Validate(budgetCtx, llmIn)
		done <- outcome{r, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(o.err).Msg("llm_validation_call_failed")
			return timeoutResult("validator call failed: " + o.err.Error())
		}
		return o.result
	case <-budgetCtx.Done():
		observability.LoggerFromContext(ctx).Warn().Dur("budget", v.validationBudget).Msg("llm_validation_timeout")
		return timeoutResult("validation LLM exceeded wall-clock budget")
	}
}

func timeoutResult(reason string) Result {
	return Result{
		IsValid:      false,
		OverallScore: 0,
		Issues: []Issue{{
			Severity: SeverityWarning, Category: "validation-timeout",
			Message: reason, Confidence: 0,
		}},
		Feedback: reason,
	}
}
