package openai

import (
	"context"
	"fmt"

	sdk "github.com/openai/openai-go/v2"

	"broadcastengine/internal/observability"
)

// Embedder adapts Client to corpus.Embedder, giving the Knowledge Store's
// Qdrant-backed implementation a query-time vector source (spec §4.1).
type Embedder struct {
	client *Client
	model  string
}

// NewEmbedder builds an Embedder calling model (e.g. "text-embedding-3-small")
// against the same SDK client Chat uses.
func NewEmbedder(client *Client, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

// Embed implements corpus.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.sdk.Embeddings.New(ctx, sdk.EmbeddingNewParams{
		Input: sdk.EmbeddingNewParamsInputUnion{OfString: sdk.String(text)},
		Model: sdk.EmbeddingModel(e.model),
	})
	if err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Str("model", e.model).Msg("embedding_call_failed")
		return nil, fmt.Errorf("openai: embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: embedding: empty response for model %s", e.model)
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}
