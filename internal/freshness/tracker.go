// Package freshness implements the Freshness Tracker (C2): per-chunk
// usage/decay scoring that prevents content repetition.
package freshness

import (
	"context"
	"sync"
	"time"

	"broadcastengine/internal/corpus"
)

// Clock is injected so tests can control "now" deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reports the real wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Tracker mutates chunk freshness metadata through a corpus.Store's
// batched update path, per spec §4.2: mark_used and decay_all are the only
// operations allowed to write chunk metadata.
type Tracker struct {
	store corpus.Store
	clock Clock

	mu          sync.Mutex
	lastDecayAt time.Time
}

// New constructs a Tracker bound to a corpus.Store.
func New(store corpus.Store, clock Clock) *Tracker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Tracker{store: store, clock: clock}
}

// FreshScore implements spec §4.2's contract directly in terms of
// corpus.FreshScore so callers outside this package (e.g. the context
// assembler, when reasoning about candidates before a mark-used round
// trip) share one implementation of the invariant.
func FreshScore(lastUsed *time.Time, now time.Time) float64 {
	return corpus.FreshScore(lastUsed, now)
}

// MarkUsed records that the given chunks were just broadcast: their
// freshness resets to 0, broadcast_count increments, and
// last_broadcast_time becomes now. This is always called after validation
// accepts a segment and before the next segment's retrieval (spec §4.2
// ordering guarantee); the Orchestrator, not this package, enforces that
// ordering.
func (t *Tracker) MarkUsed(ctx context.Context, chunks []corpus.Chunk, now time.Time) error {
	if len(chunks) == 0 {
		return nil
	}
	updates := make(map[string]corpus.Metadata, len(chunks))
	for _, c := range chunks {
		md := c.Metadata
		ts := now
		md.LastBroadcastTime = &ts
		md.BroadcastCount++
		md.FreshnessScore = 0
		updates[c.ID] = md
	}
	return t.store.BatchUpdateMetadata(ctx, updates)
}

// DecayAll recomputes freshness for every chunk passed in. It is
// idempotent and, per spec §4.2, safe to run at most once per hour; the
// Tracker enforces that cadence itself rather than trusting callers.
func (t *Tracker) DecayAll(ctx context.Context, chunks []corpus.Chunk, now time.Time) error {
	t.mu.Lock()
	if !t.lastDecayAt.IsZero() && now.Sub(t.lastDecayAt) < time.Hour {
		t.mu.Unlock()
		return nil
	}
	t.lastDecayAt = now
	t.mu.Unlock()

	updates := make(map[string]corpus.Metadata, len(chunks))
	for _, c := range chunks {
		md := c.Metadata
		md.FreshnessScore = corpus.FreshScore(md.LastBroadcastTime, now)
		updates[c.ID] = md
	}
	if len(updates) == 0 {
		return nil
	}
	return t.store.BatchUpdateMetadata(ctx, updates)
}

// FilterFresh builds a corpus.Predicate usable as (part of) a Store.Search
// where-clause to express "freshness_score >= minFreshness" (spec §4.2).
func FilterFresh(minFreshness float64) corpus.Predicate {
	return corpus.Gte{Field: "freshness_score", Value: minFreshness}
}
