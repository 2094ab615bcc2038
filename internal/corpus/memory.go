package corpus

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store used by tests and by deployments
// without a vector backend. It performs naive text-overlap scoring rather
// than true embedding similarity, which is sufficient for exercising the
// filter/freshness/rotation logic this engine is responsible for.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string]Chunk)}
}

// Put inserts or replaces a chunk.
func (s *MemoryStore) Put(c Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[c.ID] = c
}

// All returns a snapshot of every stored chunk.
func (s *MemoryStore) All() []Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) Search(_ context.Context, queryText string, where Predicate, nResults int) ([]Scored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(queryText))
	var out []Scored
	for _, c := range s.chunks {
		if where != nil && !where.Eval(c.Metadata) {
			continue
		}
		score := overlapScore(terms, c.Text)
		out = append(out, Scored{Chunk: c, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	if nResults > 0 && len(out) > nResults {
		out = out[:nResults]
	}
	return out, nil
}

func (s *MemoryStore) BatchUpdateMetadata(_ context.Context, updates map[string]Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, md := range updates {
		c, ok := s.chunks[id]
		if !ok {
			continue
		}
		c.Metadata = md
		s.chunks[id] = c
	}
	return nil
}

func overlapScore(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
