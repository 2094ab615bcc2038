package freshness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"broadcastengine/internal/corpus"
)

func TestFreshScoreBoundaryBehavior(t *testing.T) {
	now := time.Date(2102, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 1.0, FreshScore(nil, now), "never-used chunk is fully fresh")

	recent := now.Add(-1 * time.Hour)
	require.InDelta(t, 1.0/168.0, FreshScore(&recent, now), 0.0001)

	longAgo := now.Add(-200 * time.Hour)
	require.Equal(t, 1.0, FreshScore(&longAgo, now), "beyond the recovery window clamps to fully fresh")
}

func TestMarkUsedResetsFreshnessAndIncrementsCount(t *testing.T) {
	store := corpus.NewMemoryStore()
	store.Put(corpus.Chunk{ID: "1", Text: "x", Metadata: corpus.Metadata{FreshnessScore: 1, BroadcastCount: 2}})

	tr := New(store, SystemClock{})
	now := time.Now()
	err := tr.MarkUsed(context.Background(), []corpus.Chunk{{ID: "1", Metadata: corpus.Metadata{FreshnessScore: 1, BroadcastCount: 2}}}, now)
	require.NoError(t, err)

	all := store.All()
	require.Len(t, all, 1)
	require.Equal(t, 0.0, all[0].Metadata.FreshnessScore)
	require.Equal(t, 3, all[0].Metadata.BroadcastCount)
	require.NotNil(t, all[0].Metadata.LastBroadcastTime)
}

func TestMarkUsedNoopOnEmptyChunks(t *testing.T) {
	store := corpus.NewMemoryStore()
	tr := New(store, SystemClock{})
	require.NoError(t, tr.MarkUsed(context.Background(), nil, time.Now()))
}

func TestDecayAllIsThrottledToOncePerHour(t *testing.T) {
	store := corpus.NewMemoryStore()
	store.Put(corpus.Chunk{ID: "1", Text: "x", Metadata: corpus.Metadata{FreshnessScore: 0}})

	tr := New(store, SystemClock{})
	t0 := time.Date(2102, 1, 1, 0, 0, 0, 0, time.UTC)

	err := tr.DecayAll(context.Background(), []corpus.Chunk{{ID: "1", Metadata: corpus.Metadata{FreshnessScore: 0}}}, t0)
	require.NoError(t, err)
	require.Equal(t, 1.0, store.All()[0].Metadata.FreshnessScore, "never-used chunk decays straight back to fully fresh")

	store.Put(corpus.Chunk{ID: "1", Text: "x", Metadata: corpus.Metadata{FreshnessScore: 0}})
	err = tr.DecayAll(context.Background(), []corpus.Chunk{{ID: "1", Metadata: corpus.Metadata{FreshnessScore: 0}}}, t0.Add(10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 0.0, store.All()[0].Metadata.FreshnessScore, "a second call within the hour must be a no-op")

	err = tr.DecayAll(context.Background(), []corpus.Chunk{{ID: "1", Metadata: corpus.Metadata{FreshnessScore: 0}}}, t0.Add(90*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1.0, store.All()[0].Metadata.FreshnessScore, "past the hour throttle, decay recomputes")
}

func TestFilterFreshBuildsGtePredicate(t *testing.T) {
	pred := FilterFresh(0.4)
	require.True(t, pred.Eval(corpus.Metadata{FreshnessScore: 0.5}))
	require.False(t, pred.Eval(corpus.Metadata{FreshnessScore: 0.3}))
}
