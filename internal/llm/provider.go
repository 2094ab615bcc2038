// Package llm defines the shared message/provider contract the
// Generator (C10) and LLM Validator (C11) build on, and the thin
// generation/validation clients under llm/openai and llm/anthropic.
package llm

import "context"

// Message is one turn of a chat-style exchange with a generation or
// validation model.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// Usage reports token accounting for one call, consumed by Generator
// (spec §4.10: "returns raw text plus token counts").
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is one completed chat call.
type Response struct {
	Text  string
	Usage Usage
}

// Provider is the external generation/validation LLM collaborator (spec
// §6): one model identifier per call, temperature and max-tokens
// parameters, request/response over HTTP or equivalent.
type Provider interface {
	Chat(ctx context.Context, msgs []Message, model string, temperature float64, maxTokens int) (Response, error)
}
