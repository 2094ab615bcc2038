// Package config centralizes the broadcast engine's runtime configuration.
// A single Config value is constructed once at startup (see Load) and
// passed down explicitly; nothing in this module keeps process-wide
// mutable configuration state.
package config

import "time"

// TimelineQuotas caps how many beats of each timeline may be emitted within
// a scheduling window. Defaults are placeholders per spec §9 and must
// remain tunable rather than hard-coded.
type TimelineQuotas struct {
	Daily   int `yaml:"daily"`
	Weekly  int `yaml:"weekly"`
	Monthly int `yaml:"monthly"`
	Yearly  int `yaml:"yearly"`
}

// StoryThresholds are the narrative-weight cutoffs used to assign a story
// to a timeline (spec §4.7's open question: tunable, not hard-coded).
type StoryThresholds struct {
	WeeklyMin  float64 `yaml:"weekly_min"`
	MonthlyMin float64 `yaml:"monthly_min"`
	YearlyMin  float64 `yaml:"yearly_min"`
}

// QdrantConfig configures the C1 Knowledge Store vector backend.
type QdrantConfig struct {
	DSN        string `yaml:"dsn"`
	Collection string `yaml:"collection"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"`
}

// RedisConfig configures the optional distributed cache / commit-lock tier.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Password string `yaml:"password"`
	DB      int    `yaml:"db"`
}

// PostgresConfig configures the optional durable WorldState/StoryState
// backend. When enabled, it is used in place of the atomic file stores.
type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// KafkaConfig configures output-stream publication.
type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	SegmentTopic string   `yaml:"segment_topic"`
}

// OpenAIConfig configures the generation-model client (C10).
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// AnthropicConfig configures the validation-model client (C11 LLM mode).
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// ValidationMode enumerates §6's validation_mode values.
type ValidationMode string

const (
	ValidationRules  ValidationMode = "rules"
	ValidationLLM    ValidationMode = "llm"
	ValidationHybrid ValidationMode = "hybrid"
)

// OnCriticalPolicy enumerates §7's run policy for an unrecoverable
// CriticalRuleViolation that survives all retries.
type OnCriticalPolicy string

const (
	OnCriticalHalt            OnCriticalPolicy = "halt"
	OnCriticalContinueWithFlag OnCriticalPolicy = "continue-with-flag"
	OnCriticalQuarantine      OnCriticalPolicy = "quarantine"
)

// Config holds every scalar key enumerated in spec §6 plus the backend
// connection settings needed to build a running engine.
type Config struct {
	DJName            string         `yaml:"dj_name"`
	GenerationModel   string         `yaml:"generation_model"`
	ValidationModel   string         `yaml:"validation_model"`
	ValidationMode    ValidationMode `yaml:"validation_mode"`
	Retries           int            `yaml:"retries"`
	TransportRetries  int            `yaml:"transport_retries"`
	MaxChars          int            `yaml:"max_chars"`
	SegmentsPerHour   int            `yaml:"segments_per_hour"`
	TimelineQuotas    TimelineQuotas `yaml:"timeline_quotas"`
	StoryThresholds   StoryThresholds `yaml:"story_thresholds"`
	FreshnessThreshold float64       `yaml:"freshness_threshold"`
	ConfidenceFloor   string         `yaml:"confidence_floor"`
	CacheMaxEntries   int            `yaml:"cache_max_entries"`
	CacheTTLRetrieval time.Duration  `yaml:"cache_ttl_retrieval"`
	CacheTTLGeneration time.Duration `yaml:"cache_ttl_generation"`
	LLMTimeoutGeneration time.Duration `yaml:"llm_timeout_generation"`
	LLMTimeoutValidation time.Duration `yaml:"llm_timeout_validation"`
	SegmentTimeout    time.Duration  `yaml:"segment_timeout"`
	RecentSubjectsWindow int         `yaml:"recent_subjects_window"`
	SessionMemorySize int            `yaml:"session_memory_size"`
	OnCritical        OnCriticalPolicy `yaml:"on_critical"`

	LogPath  string `yaml:"log_path"`
	LogLevel string `yaml:"log_level"`
	DataDir  string `yaml:"data_dir"`

	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

// Defaults returns a Config populated with the spec's documented default
// values, to be overridden by env vars and/or a YAML file in Load.
func Defaults() Config {
	return Config{
		ValidationMode:   ValidationHybrid,
		Retries:          3,
		TransportRetries: 3,
		MaxChars:         900,
		SegmentsPerHour:  3,
		TimelineQuotas: TimelineQuotas{
			Daily: 3, Weekly: 6, Monthly: 8, Yearly: 10,
		},
		StoryThresholds: StoryThresholds{
			WeeklyMin: 3, MonthlyMin: 6, YearlyMin: 8,
		},
		FreshnessThreshold:   0.3,
		ConfidenceFloor:      "",
		CacheMaxEntries:      1000,
		CacheTTLRetrieval:    10 * time.Minute,
		CacheTTLGeneration:   30 * time.Minute,
		LLMTimeoutGeneration: 90 * time.Second,
		LLMTimeoutValidation: 30 * time.Second,
		SegmentTimeout:       5 * time.Minute,
		RecentSubjectsWindow: 5,
		SessionMemorySize:    10,
		OnCritical:           OnCriticalContinueWithFlag,
		LogPath:              "broadcastengine.log",
		LogLevel:             "info",
		DataDir:              "./data",
		Qdrant: QdrantConfig{
			DSN:        "http://localhost:6334",
			Collection: "lore_chunks",
			Dimensions: 768,
			Metric:     "cosine",
		},
		Kafka: KafkaConfig{
			SegmentTopic: "broadcast.segments",
		},
	}
}
