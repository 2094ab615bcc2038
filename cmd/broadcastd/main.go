// Command broadcastd runs the Broadcast Engine: it loads a DJ
// personality, wires the Knowledge Store, World/Story state, and the
// generation/validation LLMs, then drives the segment pipeline until
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"broadcastengine/internal/cache"
	"broadcastengine/internal/config"
	"broadcastengine/internal/contextasm"
	"broadcastengine/internal/corpus"
	"broadcastengine/internal/freshness"
	"broadcastengine/internal/generator"
	anthropicllm "broadcastengine/internal/llm/anthropic"
	openaillm "broadcastengine/internal/llm/openai"
	"broadcastengine/internal/observability"
	"broadcastengine/internal/orchestrator"
	"broadcastengine/internal/personality"
	"broadcastengine/internal/story"
	"broadcastengine/internal/validator"
	"broadcastengine/internal/worldstate"
)

func main() {
	personalityPath := flag.String("personality", "personality.yaml", "path to the DJ personality artifact")
	resume := flag.Bool("resume", false, "resume from the most recent checkpoint")
	once := flag.Bool("once", false, "generate a single segment and exit")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	pers, err := personality.Load(*personalityPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *personalityPath).Msg("failed to load personality")
	}

	eng, err := build(cfg, pers)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received, finishing in-flight segment")
		cancel()
	}()

	if err := eng.Start(ctx, *resume); err != nil {
		log.Fatal().Err(err).Msg("failed to start engine")
	}

	log.Info().Str("dj_name", pers.Name).Msg("broadcastd started")
	for {
		select {
		case <-ctx.Done():
			summary := eng.End(context.Background())
			log.Info().Int64("generated", summary.SegmentsGenerated).
				Int64("flagged", summary.SegmentsFlagged).
				Int64("skipped", summary.SegmentsSkipped).
				Msg("broadcastd stopped")
			return
		default:
		}

		rec, ok, err := eng.GenerateNextSegment(ctx)
		if err != nil {
			log.Error().Err(err).Msg("segment pipeline aborted")
			cancel()
			continue
		}
		if !ok {
			continue
		}
		log.Info().Int64("segment_index", rec.SegmentIndex).Str("type", rec.Type).
			Int("hour", rec.Hour).Int64("timing_ms", rec.TimingMS).Msg("segment committed")

		if *once {
			cancel()
		}
	}
}

// build wires every collaborator the Orchestrator needs from cfg, grounded
// on the teacher's agentd startup sequence (load config, build http
// client, build LLM client, construct the engine) extended with this
// engine's persistence and messaging backends.
func build(cfg config.Config, pers personality.Personality) (*orchestrator.Orchestrator, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	openaiClient := openaillm.New(cfg.OpenAI, nil)
	anthropicClient := anthropicllm.New(cfg.Anthropic, nil)

	store, err := buildKnowledgeStore(cfg, openaiClient)
	if err != nil {
		return nil, err
	}

	fresh := freshness.New(store, freshness.SystemClock{})
	extractor := story.NewExtractor(store, cfg.StoryThresholds.WeeklyMin, cfg.StoryThresholds.MonthlyMin, cfg.StoryThresholds.YearlyMin)
	assembler := contextasm.New(cfg.RecentSubjectsWindow, cfg.FreshnessThreshold, corpus.ConfidenceTier(cfg.ConfidenceFloor))

	gen := generator.New(openaiClient, cfg.GenerationModel, 0.8, 0, cfg.LLMTimeoutGeneration, cfg.TransportRetries)

	var llmValidator *validator.LLMValidator
	if cfg.ValidationMode != config.ValidationRules {
		llmValidator = validator.NewLLMValidator(anthropicClient, cfg.ValidationModel)
	}
	val := validator.New(validator.Mode(cfg.ValidationMode), llmValidator, cfg.LLMTimeoutValidation)

	ttls := map[cache.EntryType]time.Duration{
		cache.EntryRetrieval:  cfg.CacheTTLRetrieval,
		cache.EntryGeneration: cfg.CacheTTLGeneration,
		cache.EntryContext:    cfg.CacheTTLRetrieval,
	}
	memCache := cache.New(cfg.CacheMaxEntries, ttls)

	wsStore, ssStore, err := buildPersistence(cfg)
	if err != nil {
		return nil, err
	}

	checkpoints := orchestrator.NewCheckpointStore(filepath.Join(cfg.DataDir, "checkpoints"), 5)
	publisher, err := orchestrator.NewSegmentPublisher(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}

	redisLock, err := buildRedisLock(cfg)
	if err != nil {
		return nil, err
	}

	return orchestrator.New(orchestrator.Deps{
		Config: cfg, Personality: pers, Store: store, Freshness: fresh, Extractor: extractor,
		Assembler: assembler, Generator: gen, Validator: val, Cache: memCache,
		WorldStateStore: wsStore, StoryStateStore: ssStore, Checkpoints: checkpoints, Publisher: publisher,
		RedisLock: redisLock,
	}), nil
}

// buildRedisLock dials the optional distributed commit-lock tier; nil
// when Redis is not configured, leaving the Orchestrator to checkpoint
// without cross-instance coordination (the single-process default).
func buildRedisLock(cfg config.Config) (*cache.RedisTier, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	tier, err := cache.NewRedisTier(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("redis commit lock: %w", err)
	}
	return tier, nil
}

func buildKnowledgeStore(cfg config.Config, openaiClient *openaillm.Client) (corpus.Store, error) {
	if cfg.Qdrant.DSN == "" {
		log.Warn().Msg("no qdrant dsn configured, falling back to in-memory knowledge store")
		return corpus.NewMemoryStore(), nil
	}
	embedder := openaillm.NewEmbedder(openaiClient, "text-embedding-3-small")
	store, err := corpus.NewQdrantStore(cfg.Qdrant.DSN, cfg.Qdrant.Collection, cfg.Qdrant.Dimensions, cfg.Qdrant.Metric, embedder)
	if err != nil {
		return nil, fmt.Errorf("qdrant store: %w", err)
	}
	return store, nil
}

// buildPersistence prefers Postgres for World/Story state when configured,
// falling back to the always-available atomic file stores (spec §6).
func buildPersistence(cfg config.Config) (worldstate.Store, story.Store, error) {
	if cfg.Postgres.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		wsStore, err := worldstate.NewPostgresStore(ctx, cfg.Postgres.DSN, cfg.DJName)
		if err != nil {
			return nil, nil, fmt.Errorf("worldstate postgres: %w", err)
		}
		ssStore, err := story.NewPostgresStore(ctx, cfg.Postgres.DSN, cfg.DJName)
		if err != nil {
			return nil, nil, fmt.Errorf("story postgres: %w", err)
		}
		return wsStore, ssStore, nil
	}
	wsStore := worldstate.NewFileStore(filepath.Join(cfg.DataDir, cfg.DJName+".worldstate.json"))
	ssStore := story.NewFileStore(filepath.Join(cfg.DataDir, cfg.DJName+".storystate.json"))
	return wsStore, ssStore, nil
}
