// Package orchestrator implements the Broadcast Orchestrator (C13): the
// per-segment pipeline driver that owns WorldState, StoryState, and
// Session Memory, and persists a resumable checkpoint after each segment.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"broadcastengine/internal/cache"
	"broadcastengine/internal/config"
	"broadcastengine/internal/contextasm"
	"broadcastengine/internal/corpus"
	"broadcastengine/internal/engineerr"
	"broadcastengine/internal/freshness"
	"broadcastengine/internal/generator"
	"broadcastengine/internal/memory"
	"broadcastengine/internal/observability"
	"broadcastengine/internal/personality"
	"broadcastengine/internal/scheduler"
	"broadcastengine/internal/story"
	"broadcastengine/internal/validator"
	"broadcastengine/internal/worldstate"
)

const engineVersion = "1.0.0"

// Clock is injected so a run's wall-clock dependencies are testable.
type Clock interface{ Now() time.Time }

// SystemClock reports real wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Summary is End()'s return value (spec §4.13: "counts, timings,
// failure-flag counts").
type Summary struct {
	SegmentsGenerated int64
	SegmentsFlagged   int64
	SegmentsSkipped   int64
	TotalDuration     time.Duration
}

// Orchestrator drives the segment pipeline. Per spec §5, WorldState,
// StoryState, Session Memory, and Cache are exclusively owned here; no
// other component mutates them directly.
type Orchestrator struct {
	cfg    config.Config
	pers   personality.Personality
	store  corpus.Store
	fresh  *freshness.Tracker
	extractor *story.Extractor

	assembler *contextasm.Assembler
	gen       *generator.Generator
	val       *validator.Validator
	cache     *cache.Cache

	wsStore worldstate.Store
	ssStore story.Store
	checkpoints *CheckpointStore
	publisher   *SegmentPublisher
	redisLock   *cache.RedisTier

	clock Clock

	mem *memory.Ring
	ws  *worldstate.State
	ss  *story.State

	djName       string
	segmentIndex int64
	complexity   contextasm.Complexity
	beatsThisWindow map[story.Timeline]int

	// segmentsThisHour counts accepted segments since the simulated clock
	// last ticked; it resets across restarts (it is not checkpointed),
	// matching Session Memory's own always-starts-empty resume semantics.
	segmentsThisHour int

	summary Summary
}

// Deps bundles every collaborator the Orchestrator drives, keeping the
// constructor a plain struct literal rather than a long positional list
// (spec §9: one Config value constructed at start(), passed down
// explicitly).
type Deps struct {
	Config      config.Config
	Personality personality.Personality
	Store       corpus.Store
	Freshness   *freshness.Tracker
	Extractor   *story.Extractor
	Assembler   *contextasm.Assembler
	Generator   *generator.Generator
	Validator   *validator.Validator
	Cache       *cache.Cache
	WorldStateStore worldstate.Store
	StoryStateStore story.Store
	Checkpoints *CheckpointStore
	Publisher   *SegmentPublisher
	RedisLock   *cache.RedisTier
	Clock       Clock
}

// New builds an Orchestrator from Deps.
func New(d Deps) *Orchestrator {
	clock := d.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Orchestrator{
		cfg: d.Config, pers: d.Personality, store: d.Store, fresh: d.Freshness,
		extractor: d.Extractor, assembler: d.Assembler, gen: d.Generator, val: d.Validator,
		cache: d.Cache, wsStore: d.WorldStateStore, ssStore: d.StoryStateStore,
		checkpoints: d.Checkpoints, publisher: d.Publisher, redisLock: d.RedisLock, clock: clock,
		djName:          d.Config.DJName,
		complexity:      contextasm.ComplexitySimple,
		beatsThisWindow: map[story.Timeline]int{},
	}
}

// Start loads or initialises WorldState, StoryState, and Session Memory,
// and seeds story pools if empty (spec §4.13 start()). When
// fromCheckpoint is true and a checkpoint exists, segmentIndex resumes
// from it; Session Memory is never persisted and always starts empty
// (spec §4.13 resume semantics).
func (o *Orchestrator) Start(ctx context.Context, fromCheckpoint bool) error {
	o.mem = memory.New(o.cfg.SessionMemorySize)

	ws, ok, err := o.wsStore.Load(ctx)
	if err != nil {
		return engineerr.PersistenceError(err)
	}
	if !ok {
		ws = worldstate.New(worldstate.Date{Year: o.pers.YearDJ, Month: 1, Day: 1})
	}
	o.ws = ws

	ss, ok, err := o.ssStore.Load(ctx)
	if err != nil {
		return engineerr.PersistenceError(err)
	}
	if !ok {
		ss = story.New()
	}
	o.ss = ss

	if o.ss.TotalPoolSize() == 0 && o.extractor != nil {
		if err := o.seedPools(ctx); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("pool_seeding_failed")
		}
	}

	if fromCheckpoint && o.checkpoints != nil {
		if meta, ok, err := o.checkpoints.Latest(ctx); err == nil && ok {
			o.segmentIndex = meta.LastSegmentIndex + 1
		}
	}
	return nil
}

// seedPools implements spec §4.6's idempotent pool seeding, consulting
// C7 under the personality's base filter and recording a
// PoolSeedingFailure when extraction yields nothing (spec §7).
func (o *Orchestrator) seedPools(ctx context.Context) error {
	candidates, err := o.extractor.Extract(ctx, o.pers.BaseFilter(), 20)
	if err != nil {
		return engineerr.PoolSeedingFailure(err)
	}
	if len(candidates) == 0 {
		return engineerr.PoolSeedingFailure(fmt.Errorf("extractor returned zero candidates"))
	}
	o.ss.Seed(candidates)
	return nil
}

// GenerateNextSegment runs one turn of the §4.13 pipeline end to end. It
// never returns an error for recoverable conditions (spec §7: "the
// engine never raises ... for any of the above"); ok is false exactly
// when the segment was skipped without being committed.
func (o *Orchestrator) GenerateNextSegment(ctx context.Context) (rec *SegmentRecord, ok bool, err error) {
	segCtx, cancel := context.WithTimeout(ctx, o.cfg.SegmentTimeout)
	defer cancel()
	start := o.clock.Now()

	// Step 1: Scheduler -> type.
	quotas := map[story.Timeline]int{
		story.TimelineDaily: o.cfg.TimelineQuotas.Daily, story.TimelineWeekly: o.cfg.TimelineQuotas.Weekly,
		story.TimelineMonthly: o.cfg.TimelineQuotas.Monthly, story.TimelineYearly: o.cfg.TimelineQuotas.Yearly,
	}
	schedInput := scheduler.BuildInput(o.ws.CurrentHour, o.mem, o.ws.Snapshot(), o.ss, o.pers, o.beatsThisWindow, quotas)
	segType := scheduler.Decide(schedInput)

	// Step 2: if story, choose timeline + story -> current beat.
	var beat *story.Act
	var activeStory *story.Story
	if segType == scheduler.SegmentStory {
		var activated bool
		activeStory, activated = o.ss.Activate(schedInput.PendingStoryTimeline, o.beatsThisWindow[schedInput.PendingStoryTimeline], quotas[schedInput.PendingStoryTimeline])
		if activated {
			if b, ok2 := activeStory.CurrentAct(); ok2 {
				beat = &b
			}
		} else {
			segType = scheduler.SegmentGossip
		}
	}

	// Step 3: Context Assembler -> (query, where, vars).
	storyTitle := ""
	if activeStory != nil {
		storyTitle = activeStory.Title
	}
	assembled := o.assembler.Assemble(segType, o.pers, o.ws.CurrentHour, o.ws.Snapshot(), o.mem, beat, storyTitle, o.complexity, weatherKindOf(o.ws.Weather.Type))
	o.complexity = contextasm.NextComplexity(o.complexity)

	// Step 4: Cache-or-retrieve -> chunks.
	chunks, err := o.retrieve(segCtx, assembled)
	if err != nil {
		observability.LoggerFromContext(segCtx).Warn().Err(err).Msg("retrieval_failed_soft")
		chunks = nil
	}

	// Step 5+6: Generator + Validator, with retry on invalid.
	genResult, valResult, genErr := o.generateAndValidate(segCtx, segType, assembled, chunks)
	if genErr != nil {
		o.summary.SegmentsSkipped++
		return nil, false, nil
	}

	flags := flagsFor(valResult)

	// Step 7: commit.
	usedIDs := chunkIDs(chunks)
	usedSubjects := chunkSubjects(chunks)
	now := o.clock.Now()
	tone := corpus.ToneNeutral
	if len(chunks) > 0 {
		tone = chunks[0].Chunk.Metadata.EmotionalTone
	}
	var weatherSnap *memory.WeatherSnapshot
	if segType == scheduler.SegmentWeather {
		weatherSnap = &memory.WeatherSnapshot{Type: o.ws.Weather.Type, Intensity: o.ws.Weather.Intensity, Temperature: o.ws.Weather.Temperature}
	}
	storyRef := ""
	if segType == scheduler.SegmentStory && activeStory != nil && beat != nil {
		storyRef = fmt.Sprintf("%s:%d", activeStory.StoryID, beat.ActNumber)
		o.ss.AdvanceBeat(schedInput.PendingStoryTimeline, now)
		o.beatsThisWindow[schedInput.PendingStoryTimeline]++
	}
	o.mem.Record(memory.RecentSegment{
		Type: string(segType), ScriptText: genResult.Text, Hour: o.ws.CurrentHour,
		ChunkIDsUsed: usedIDs, SubjectsUsed: usedSubjects, Tone: tone, Weather: weatherSnap, StoryBeatRef: storyRef,
	})
	if err := o.fresh.MarkUsed(segCtx, chunksOnly(chunks), now); err != nil {
		observability.LoggerFromContext(segCtx).Warn().Err(err).Msg("mark_used_failed")
	}
	o.tickClock(segType)

	// Step 8: persist checkpoint.
	if o.checkpoints != nil {
		meta := CheckpointMeta{
			LastSegmentIndex: o.segmentIndex, GenerationModel: o.cfg.GenerationModel,
			ValidationModel: o.cfg.ValidationModel, EngineVersion: engineVersion,
		}
		if err := o.saveCheckpoint(segCtx, meta); err != nil {
			return nil, false, engineerr.PersistenceError(err)
		}
	}

	record := &SegmentRecord{
		SegmentIndex: o.segmentIndex, Hour: o.ws.CurrentHour, Type: string(segType),
		ScriptText: genResult.Text, ChunkIDsUsed: usedIDs,
		Validation: ValidationRecord{Mode: string(o.cfg.ValidationMode), Score: valResult.OverallScore, Issues: issueMessages(valResult), Flags: flags},
		StoryRef:   storyRef, TimingMS: o.clock.Now().Sub(start).Milliseconds(),
	}
	if o.publisher != nil {
		if err := o.publisher.Publish(segCtx, *record); err != nil {
			observability.LoggerFromContext(segCtx).Warn().Err(err).Msg("publish_failed")
		}
	}

	o.segmentIndex++
	o.summary.SegmentsGenerated++
	if len(flags) > 0 {
		o.summary.SegmentsFlagged++
	}
	return record, true, nil
}

// tickClock paces WorldState's simulated hour against cfg.SegmentsPerHour
// (spec §6's segments_per_hour): the clock only advances once every
// segments_per_hour accepted segments, so the scheduler's per-hour slots
// (time-check, weather, news) stay reachable instead of firing every call.
func (o *Orchestrator) tickClock(segType scheduler.SegmentType) {
	perHour := o.cfg.SegmentsPerHour
	if perHour <= 0 {
		perHour = 1
	}
	o.segmentsThisHour++
	if o.segmentsThisHour < perHour {
		o.ws.RecordSegment(string(segType))
		return
	}
	o.segmentsThisHour = 0
	o.ws.AdvanceHour(string(segType))
}

// saveCheckpoint persists both WorldState and StoryState alongside the
// checkpoint_meta record (spec §4.13 step 8: "checkpoint atomically
// (WorldState, StoryState)"). When a distributed Redis tier is
// configured, the write is guarded by a per-DJ commit lock so two
// engine instances sharing a corpus cannot interleave checkpoints for
// the same DJ (spec §5's single-owner guarantee, extended to a
// multi-instance deployment).
func (o *Orchestrator) saveCheckpoint(ctx context.Context, meta CheckpointMeta) error {
	if o.redisLock != nil {
		acquired, err := o.redisLock.AcquireCommitLock(ctx, o.djName, commitLockTTL)
		if err != nil {
			return engineerr.PersistenceError(err)
		}
		if !acquired {
			return engineerr.PersistenceError(fmt.Errorf("commit lock held by another instance for dj %q", o.djName))
		}
		defer o.redisLock.ReleaseCommitLock(ctx, o.djName)
	}
	if err := o.wsStore.Save(ctx, o.ws); err != nil {
		return err
	}
	if err := o.ssStore.Save(ctx, o.ss); err != nil {
		return err
	}
	return o.checkpoints.Write(ctx, meta)
}

// commitLockTTL bounds how long a crashed instance can hold the
// distributed commit lock before another instance may take over.
const commitLockTTL = 30 * time.Second

// End returns the run summary (spec §4.13 end()).
func (o *Orchestrator) End(ctx context.Context) Summary {
	if o.publisher != nil {
		_ = o.publisher.Close()
	}
	return o.summary
}

// retrievalResultCount bounds the number of chunks handed to the
// Generator per segment; spec §4.9 leaves the exact count unspecified
// beyond "enough lore to ground one segment".
const retrievalResultCount = 8

// retrieve runs the cache-or-retrieve step (spec §4.13 step 4), relaxing
// the where-clause via contextasm.Relax on an empty result and retrying
// until either results appear or every predicate but the personality
// base filter has been dropped.
func (o *Orchestrator) retrieve(ctx context.Context, assembled contextasm.Assembled) ([]corpus.Scored, error) {
	where := assembled.RetrievalWhere
	for {
		key := fmt.Sprintf("%s|%v", assembled.RetrievalQuery, where)
		v, err := o.cache.GetOrCompute(ctx, cache.EntryRetrieval, key, func(computeCtx context.Context) (any, error) {
			return o.store.Search(computeCtx, assembled.RetrievalQuery, where, retrievalResultCount)
		})
		if err != nil {
			return nil, engineerr.RetrievalError(err)
		}
		scored, _ := v.([]corpus.Scored)
		if len(scored) > 0 {
			return scored, nil
		}
		relaxed, ok := contextasm.Relax(where)
		if !ok {
			return scored, nil
		}
		where = relaxed
	}
}

// generateAndValidate runs steps 5 and 6 of spec §4.13: generate, then
// validate, retrying the same inputs up to cfg.Retries times while the
// script is invalid. A critical rule violation that survives every
// retry is dispatched per cfg.OnCritical (spec §7); any other failure
// to reach a valid script is left for the caller to flag
// quality-issue, matching "otherwise, proceed, flagging the segment as
// quality-issue".
func (o *Orchestrator) generateAndValidate(ctx context.Context, segType scheduler.SegmentType, assembled contextasm.Assembled, chunks []corpus.Scored) (generator.Result, validator.Result, error) {
	retries := o.cfg.Retries
	if retries <= 0 {
		retries = 3
	}

	prompt := generator.Render(segType, assembled.Vars, chunks)
	fingerprint := fmt.Sprintf("%s|%s|%.2f", prompt, o.gen.Model(), o.gen.Temperature())

	var genResult generator.Result
	var valResult validator.Result
	for attempt := 0; attempt <= retries; attempt++ {
		var gr generator.Result
		var err error
		if attempt == 0 {
			var v any
			v, err = o.cache.GetOrCompute(ctx, cache.EntryGeneration, fingerprint, func(computeCtx context.Context) (any, error) {
				return o.gen.Generate(computeCtx, segType, assembled.Vars, chunks)
			})
			if err == nil {
				gr, _ = v.(generator.Result)
			}
		} else {
			// Retries must hit the LLM again, not the cached first attempt,
			// or an invalid script would be returned forever.
			gr, err = o.gen.Generate(ctx, segType, assembled.Vars, chunks)
		}
		if err != nil {
			return generator.Result{}, validator.Result{}, err
		}
		genResult = gr

		ruleIn := o.ruleInput(genResult.Text)
		llmIn := validator.LLMInput{Script: genResult.Text, PersonalityCard: personalityCard(o.pers)}
		valResult = o.val.Validate(ctx, ruleIn, llmIn)
		if valResult.IsValid {
			return genResult, valResult, nil
		}
	}

	if hasCriticalIssue(valResult) {
		switch o.cfg.OnCritical {
		case config.OnCriticalHalt:
			return generator.Result{}, validator.Result{}, engineerr.CriticalRuleViolation(
				fmt.Errorf("segment failed validation after %d retries", retries))
		case config.OnCriticalQuarantine:
			return generator.Result{}, validator.Result{}, engineerr.CriticalRuleViolation(
				fmt.Errorf("segment quarantined after %d retries", retries))
		}
	}
	return genResult, valResult, nil
}

func hasCriticalIssue(r validator.Result) bool {
	for _, i := range r.Issues {
		if i.Severity == validator.SeverityCritical {
			return true
		}
	}
	return false
}

// ruleInput adapts the run's Personality and Config into the Validator's
// rule-mode input, keeping rule checks decoupled from the rest of the
// engine's types.
func (o *Orchestrator) ruleInput(script string) validator.RuleInput {
	terms := make([]string, 0, len(o.pers.ForbiddenContentTypes)+len(o.pers.Taboo))
	terms = append(terms, o.pers.ForbiddenContentTypes...)
	terms = append(terms, o.pers.Taboo...)
	return validator.RuleInput{
		Script:                script,
		YearDJ:                o.pers.YearDJ,
		ForbiddenFactions:     o.pers.ForbiddenFactions,
		ForbiddenContentTerms: terms,
		AnachronismTerms:      anachronismTerms(o.pers.AnachronismTerms),
		HistoricalMarkers:     []string{"pre-war", "before the war", "back before"},
		YearWhitelist:         map[int]bool{},
		MaxChars:              o.cfg.MaxChars,
	}
}

// anachronismTerms flattens the Personality's categorised blacklist into
// the term->severity map the rule validator consults, lowercasing terms
// to match anachronismRule's case-insensitive scan.
func anachronismTerms(categorized map[string][]string) map[string]validator.Severity {
	out := make(map[string]validator.Severity, len(categorized))
	for category, terms := range categorized {
		sev := validator.CategorySeverity(category)
		for _, term := range terms {
			out[strings.ToLower(term)] = sev
		}
	}
	return out
}

func personalityCard(p personality.Personality) string {
	return fmt.Sprintf("name=%s year_dj=%d region=%s catchphrases=%v taboo=%v",
		p.Name, p.YearDJ, p.Region, p.Catchphrases, p.Taboo)
}

func weatherKindOf(t string) personality.WeatherKind {
	switch t {
	case "sunny":
		return personality.WeatherSunny
	case "rad_storm":
		return personality.WeatherRadStorm
	case "fog":
		return personality.WeatherFog
	case "rainy":
		return personality.WeatherRainy
	default:
		return personality.WeatherClear
	}
}

func chunkIDs(chunks []corpus.Scored) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Chunk.ID)
	}
	return out
}

func chunkSubjects(chunks []corpus.Scored) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range chunks {
		for _, s := range c.Chunk.Metadata.PrimarySubjects {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func chunksOnly(scored []corpus.Scored) []corpus.Chunk {
	out := make([]corpus.Chunk, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.Chunk)
	}
	return out
}

func flagsFor(r validator.Result) []string {
	if r.IsValid {
		return nil
	}
	return []string{"quality-issue"}
}

func issueMessages(r validator.Result) []string {
	out := make([]string, 0, len(r.Issues))
	for _, i := range r.Issues {
		out = append(out, string(i.Severity)+": "+i.Message)
	}
	return out
}
