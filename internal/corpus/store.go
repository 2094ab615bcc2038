package corpus

import "context"

// Scored pairs a Chunk with its similarity score from a search call.
type Scored struct {
	Chunk Chunk
	Score float64
}

// Store is the C1 Knowledge Store contract: semantic search plus metadata
// filtering (spec §4.1). Implementations are stateless with respect to the
// engine; the only mutation path is BatchUpdateMetadata, used exclusively
// by the Freshness Tracker's batched mark-used/decay operations.
type Store interface {
	Search(ctx context.Context, queryText string, where Predicate, nResults int) ([]Scored, error)
	BatchUpdateMetadata(ctx context.Context, updates map[string]Metadata) error
}

// Embedder turns query text into a vector for the similarity search half
// of Store.Search. QdrantStore.Search returns a RetrievalError when no
// Embedder is configured; the in-memory MemoryStore does not use one.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
