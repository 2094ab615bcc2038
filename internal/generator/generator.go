// Package generator implements the Generator (C10): renders a per-segment
// prompt, submits it to the generation LLM with timeout and
// retry-on-transport-error, and returns the raw text plus token counts.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"broadcastengine/internal/contextasm"
	"broadcastengine/internal/corpus"
	"broadcastengine/internal/engineerr"
	"broadcastengine/internal/llm"
	"broadcastengine/internal/observability"
	"broadcastengine/internal/scheduler"
)

// Result is one generation call's output (spec §4.10: "raw text plus
// token counts").
type Result struct {
	Text  string
	Usage llm.Usage
}

// Generator renders prompts and drives the generation LLM call.
type Generator struct {
	provider         llm.Provider
	model            string
	temperature      float64
	maxTokens        int
	timeout          time.Duration
	transportRetries int
}

// New builds a Generator. model is normalised to exactly one identifier
// per call (spec §4.10); transportRetries is the total number of call
// attempts before a GenerationError (spec §7's R_transport, default 3).
func New(provider llm.Provider, model string, temperature float64, maxTokens int, timeout time.Duration, transportRetries int) *Generator {
	model = strings.TrimSpace(model)
	if transportRetries <= 0 {
		transportRetries = 3
	}
	return &Generator{
		provider: provider, model: model, temperature: temperature,
		maxTokens: maxTokens, timeout: timeout, transportRetries: transportRetries,
	}
}

// Model returns the generation model identifier, for callers that need to
// fold it into a cache fingerprint alongside the rendered prompt.
func (g *Generator) Model() string { return g.model }

// Temperature returns the configured sampling temperature, for the same
// cache-fingerprinting purpose as Model.
func (g *Generator) Temperature() float64 { return g.temperature }

// Generate renders segType's template from vars/chunks and calls the
// generation LLM, making at most transportRetries attempts on
// transport/timeout failures before surfacing a GenerationError (spec §7).
func (g *Generator) Generate(ctx context.Context, segType scheduler.SegmentType, vars contextasm.TemplateVars, chunks []corpus.Scored) (Result, error) {
	prompt := Render(segType, vars, chunks)
	msgs := []llm.Message{{Role: "user", Content: prompt}}

	log := observability.LoggerFromContext(ctx)
	var lastErr error
	for attempt := 0; attempt < g.transportRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		resp, err := g.provider.Chat(callCtx, msgs, g.model, g.temperature, g.maxTokens)
		cancel()
		if err == nil {
			return Result{Text: resp.Text, Usage: resp.Usage}, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			// Caller cancelled; do not spend the remaining retries.
			break
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("generation_transport_retry")

		if attempt < g.transportRetries-1 {
			select {
			case <-ctx.Done():
			case <-time.After(backoffDelay(attempt)):
			}
		}
	}
	return Result{}, engineerr.GenerationError(fmt.Errorf("generation failed after %d attempts: %w", g.transportRetries, lastErr))
}

const (
	backoffBase = 200 * time.Millisecond
	backoffMax  = 5 * time.Second
)

// backoffDelay returns an exponential backoff with jitter for the given
// zero-based attempt, capped at backoffMax.
func backoffDelay(attempt int) time.Duration {
	delay := backoffBase * time.Duration(1<<uint(attempt))
	if delay > backoffMax {
		delay = backoffMax
	}
	jitter := time.Duration(float64(delay) * 0.25 * (float64(time.Now().UnixNano()%1000) / 1000.0))
	return delay + jitter
}
