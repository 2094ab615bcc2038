package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"broadcastengine/internal/cache"
	"broadcastengine/internal/config"
	"broadcastengine/internal/contextasm"
	"broadcastengine/internal/corpus"
	"broadcastengine/internal/freshness"
	"broadcastengine/internal/generator"
	"broadcastengine/internal/llm"
	"broadcastengine/internal/personality"
	"broadcastengine/internal/story"
	"broadcastengine/internal/validator"
	"broadcastengine/internal/worldstate"
)

type staticProvider struct{ text string }

func (p staticProvider) Chat(_ context.Context, _ []llm.Message, _ string, _ float64, _ int) (llm.Response, error) {
	return llm.Response{Text: p.text}, nil
}

// countingProvider records how many times Chat was invoked, so tests can
// assert a generation-cache hit skipped the LLM entirely.
type countingProvider struct {
	text  string
	calls int
}

func (p *countingProvider) Chat(_ context.Context, _ []llm.Message, _ string, _ float64, _ int) (llm.Response, error) {
	p.calls++
	return llm.Response{Text: p.text}, nil
}

func testPersonality() personality.Personality {
	return personality.Personality{Name: "Three Dog", YearDJ: 2102, Region: "appalachia"}
}

func buildTestOrchestrator(t *testing.T, provider llm.Provider, dir string) *Orchestrator {
	t.Helper()

	store := corpus.NewMemoryStore()
	store.Put(corpus.Chunk{ID: "1", Text: "the brotherhood patrols the ridge", Metadata: corpus.Metadata{Region: "appalachia", Year: 2090}})

	cfg := config.Defaults()
	cfg.DJName = "testdj"
	cfg.MaxChars = 0
	cfg.DataDir = dir

	gen := generator.New(provider, "test-model", 0.7, 100, cfg.LLMTimeoutGeneration, cfg.TransportRetries)
	val := validator.New(validator.ModeRules, nil, cfg.LLMTimeoutValidation)
	assembler := contextasm.New(cfg.RecentSubjectsWindow, cfg.FreshnessThreshold, corpus.ConfidenceMedium)
	fresh := freshness.New(store, freshness.SystemClock{})
	memCache := cache.New(cfg.CacheMaxEntries, map[cache.EntryType]time.Duration{
		cache.EntryRetrieval: cfg.CacheTTLRetrieval, cache.EntryGeneration: cfg.CacheTTLGeneration, cache.EntryContext: cfg.CacheTTLRetrieval,
	})

	wsStore := worldstate.NewFileStore(filepath.Join(dir, "ws.json"))
	ssStore := story.NewFileStore(filepath.Join(dir, "ss.json"))
	checkpoints := NewCheckpointStore(filepath.Join(dir, "checkpoints"), 5)

	o := New(Deps{
		Config: cfg, Personality: testPersonality(), Store: store, Freshness: fresh,
		Assembler: assembler, Generator: gen, Validator: val, Cache: memCache,
		WorldStateStore: wsStore, StoryStateStore: ssStore, Checkpoints: checkpoints,
	})
	require.NoError(t, o.Start(context.Background(), false))
	return o
}

func TestGenerateNextSegmentCommitsAValidSegment(t *testing.T) {
	o := buildTestOrchestrator(t, staticProvider{text: "a perfectly fine broadcast line, friends."}, t.TempDir())

	rec, ok, err := o.GenerateNextSegment(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, rec)
	require.Equal(t, "a perfectly fine broadcast line, friends.", rec.ScriptText)
	require.Empty(t, rec.Validation.Flags)
	require.Equal(t, int64(0), rec.SegmentIndex)

	summary := o.End(context.Background())
	require.Equal(t, int64(1), summary.SegmentsGenerated)
	require.Equal(t, int64(0), summary.SegmentsFlagged)
}

func TestGenerateNextSegmentFlagsQualityIssueAfterRetriesExhausted(t *testing.T) {
	o := buildTestOrchestrator(t, staticProvider{text: ""}, t.TempDir())
	o.cfg.OnCritical = config.OnCriticalContinueWithFlag

	rec, ok, err := o.GenerateNextSegment(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, rec.Validation.Flags, "quality-issue")

	summary := o.End(context.Background())
	require.Equal(t, int64(1), summary.SegmentsFlagged)
}

func TestGenerateNextSegmentSkipsOnCriticalHalt(t *testing.T) {
	o := buildTestOrchestrator(t, staticProvider{text: ""}, t.TempDir())
	o.cfg.OnCritical = config.OnCriticalHalt

	rec, ok, err := o.GenerateNextSegment(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, rec)

	summary := o.End(context.Background())
	require.Equal(t, int64(1), summary.SegmentsSkipped)
}

func TestGenerateNextSegmentAdvancesHourAndPersistsCheckpoint(t *testing.T) {
	dir := t.TempDir()
	o := buildTestOrchestrator(t, staticProvider{text: "a perfectly fine broadcast line, friends."}, dir)
	o.cfg.SegmentsPerHour = 2

	startHour := o.ws.CurrentHour
	_, ok, err := o.GenerateNextSegment(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, startHour, o.ws.CurrentHour, "clock must not tick before segments_per_hour segments have aired")

	_, ok, err = o.GenerateNextSegment(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, startHour+1, o.ws.CurrentHour)

	meta, found, err := o.checkpoints.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(1), meta.LastSegmentIndex)
}

func TestGenerateAndValidateFlagsConfiguredAnachronism(t *testing.T) {
	o := buildTestOrchestrator(t, staticProvider{text: "the old radio crackled, folks, with a working smartphone nearby."}, t.TempDir())
	o.pers.AnachronismTerms = map[string][]string{"technology_critical": {"smartphone"}}
	o.cfg.OnCritical = config.OnCriticalContinueWithFlag

	rec, ok, err := o.GenerateNextSegment(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, rec.Validation.Flags, "quality-issue")

	found := false
	for _, msg := range rec.Validation.Issues {
		if strings.Contains(msg, "anachronistic term: smartphone") {
			found = true
		}
	}
	require.True(t, found, "expected the configured anachronism term to surface as a validation issue")
}

func TestGenerateNextSegmentReusesCachedGenerationForIdenticalPrompt(t *testing.T) {
	provider := &countingProvider{text: "a perfectly fine broadcast line, friends."}
	o := buildTestOrchestrator(t, provider, t.TempDir())

	// Segment 1: no prior history, so the scheduler always opens with a
	// time-check (spec §4.8's tie-break order).
	_, ok, err := o.GenerateNextSegment(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// Segment 2: the ring now holds that time-check for this hour, so the
	// hour reads as covered and the scheduler falls through to gossip.
	_, ok, err = o.GenerateNextSegment(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	callsBeforeRepeat := provider.calls

	// Segment 3: segment 1's time-check is still in the ring, so the hour
	// stays covered and the scheduler picks gossip again -- the same
	// (type, hour) and the same single lore chunk as segment 2, and
	// segments_per_hour (default 3) has not yet ticked the clock, so the
	// rendered prompt fingerprint is identical to segment 2's.
	_, ok, err = o.GenerateNextSegment(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, callsBeforeRepeat, provider.calls, "repeated gossip segment for the same hour must be served from the generation cache")
}

func TestStartResumesSegmentIndexFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	o := buildTestOrchestrator(t, staticProvider{text: "a perfectly fine broadcast line, friends."}, dir)

	_, ok, err := o.GenerateNextSegment(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	store := corpus.NewMemoryStore()
	store.Put(corpus.Chunk{ID: "1", Text: "the brotherhood patrols the ridge", Metadata: corpus.Metadata{Region: "appalachia", Year: 2090}})

	cfg := config.Defaults()
	cfg.DJName = "testdj"
	cfg.DataDir = dir
	gen := generator.New(staticProvider{text: "another fine broadcast line, friends."}, "test-model", 0.7, 100, cfg.LLMTimeoutGeneration, cfg.TransportRetries)
	val := validator.New(validator.ModeRules, nil, cfg.LLMTimeoutValidation)
	assembler := contextasm.New(cfg.RecentSubjectsWindow, cfg.FreshnessThreshold, corpus.ConfidenceMedium)
	fresh := freshness.New(store, freshness.SystemClock{})
	memCache := cache.New(cfg.CacheMaxEntries, map[cache.EntryType]time.Duration{cache.EntryRetrieval: cfg.CacheTTLRetrieval})
	wsStore := worldstate.NewFileStore(filepath.Join(dir, "ws.json"))
	ssStore := story.NewFileStore(filepath.Join(dir, "ss.json"))
	checkpoints := NewCheckpointStore(filepath.Join(dir, "checkpoints"), 5)

	resumed := New(Deps{
		Config: cfg, Personality: testPersonality(), Store: store, Freshness: fresh,
		Assembler: assembler, Generator: gen, Validator: val, Cache: memCache,
		WorldStateStore: wsStore, StoryStateStore: ssStore, Checkpoints: checkpoints,
	})
	require.NoError(t, resumed.Start(context.Background(), true))
	require.Equal(t, int64(1), resumed.segmentIndex, "resume must pick up after the last persisted checkpoint")
}
