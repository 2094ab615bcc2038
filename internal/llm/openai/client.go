// Package openai implements the Generator's (C10) LLM collaborator using
// the Chat Completions API, grounded on the teacher's internal/llm/openai
// client wiring but trimmed to the single Chat call the engine needs.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"broadcastengine/internal/config"
	"broadcastengine/internal/llm"
	"broadcastengine/internal/observability"
)

// Client wraps the OpenAI SDK client with the single model/timeout
// normalisation the Generator needs (spec §4.10: "one model ID per call").
type Client struct {
	sdk   sdk.Client
	model string
}

// New builds a Client from OpenAIConfig (§6's "generation_model" key).
func New(cfg config.OpenAIConfig, httpClient *http.Client) *Client {
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
	return &Client{sdk: sdk.NewClient(opts...), model: cfg.Model}
}

// Chat implements llm.Provider. model, if empty, falls back to the
// client's configured default so callers need not repeat it per call.
func (c *Client) Chat(ctx context.Context, msgs []llm.Message, model string, temperature float64, maxTokens int) (llm.Response, error) {
	effectiveModel := model
	if effectiveModel == "" {
		effectiveModel = c.model
	}

	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(effectiveModel),
		Messages:    adaptMessages(msgs),
		Temperature: sdk.Float(temperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(maxTokens))
	}

	log := observability.LoggerFromContext(ctx)
	start := time.Now()
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", effectiveModel).Dur("duration", dur).Msg("generation_call_failed")
		return llm.Response{}, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(comp.Choices) == 0 {
		return llm.Response{}, fmt.Errorf("openai: empty choices for model %s", effectiveModel)
	}
	log.Debug().Str("model", effectiveModel).Dur("duration", dur).
		Int64("prompt_tokens", comp.Usage.PromptTokens).
		Int64("completion_tokens", comp.Usage.CompletionTokens).
		Msg("generation_call_ok")

	return llm.Response{
		Text: comp.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(comp.Usage.PromptTokens),
			CompletionTokens: int(comp.Usage.CompletionTokens),
			TotalTokens:      int(comp.Usage.TotalTokens),
		},
	}, nil
}

func adaptMessages(msgs []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, sdk.SystemMessage(m.Content))
		case "assistant":
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}
