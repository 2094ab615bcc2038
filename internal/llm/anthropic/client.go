// Package anthropic implements the LLM Validator's (C11 mode 2)
// collaborator, grounded on the teacher's internal/llm/anthropic client
// wiring but trimmed to the single Chat call the validator needs.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"broadcastengine/internal/config"
	"broadcastengine/internal/llm"
	"broadcastengine/internal/observability"
)

const defaultMaxTokens int64 = 1024

// Client wraps the Anthropic SDK client for the validation model call.
type Client struct {
	sdk   anthropic.Client
	model string
}

// New builds a Client from AnthropicConfig (§6's "validation_model" key).
func New(cfg config.AnthropicConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	return &Client{sdk: anthropic.NewClient(opts...), model: cfg.Model}
}

// Chat implements llm.Provider. The first system-role message, if any, is
// lifted into Anthropic's dedicated System field; the rest become the
// conversation turns.
func (c *Client) Chat(ctx context.Context, msgs []llm.Message, model string, temperature float64, maxTokens int) (llm.Response, error) {
	effectiveModel := model
	if effectiveModel == "" {
		effectiveModel = c.model
	}
	mt := defaultMaxTokens
	if maxTokens > 0 {
		mt = int64(maxTokens)
	}

	var system []anthropic.TextBlockParam
	converted := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case "assistant":
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(effectiveModel),
		Messages:  converted,
		System:    system,
		MaxTokens: mt,
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}

	log := observability.LoggerFromContext(ctx)
	start := time.Now()
	resp, err := c.sdk.Messages.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", effectiveModel).Dur("duration", dur).Msg("validation_call_failed")
		return llm.Response{}, fmt.Errorf("anthropic: messages.new: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	log.Debug().Str("model", effectiveModel).Dur("duration", dur).
		Int64("input_tokens", resp.Usage.InputTokens).
		Int64("output_tokens", resp.Usage.OutputTokens).
		Msg("validation_call_ok")

	return llm.Response{
		Text: text.String(),
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}
