package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load builds a Config by layering, in increasing priority: built-in
// defaults, a YAML file (config.yaml/config.yml in the working directory,
// or the path given by CONFIG_FILE), then environment variables (loaded
// from .env via godotenv.Overload if present). This mirrors the teacher's
// env-first loader while adding the YAML layer the spec's configuration
// surface needs.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Defaults()

	if path := findConfigFile(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func findConfigFile() string {
	if p := strings.TrimSpace(os.Getenv("CONFIG_FILE")); p != "" {
		return p
	}
	for _, candidate := range []string{"config.yaml", "config.yml"} {
		if _, err := os.Stat(candidate); err == nil {
			abs, err := filepath.Abs(candidate)
			if err == nil {
				return abs
			}
			return candidate
		}
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.DJName, "DJ_NAME")
	setStr(&cfg.GenerationModel, "GENERATION_MODEL")
	setStr(&cfg.ValidationModel, "VALIDATION_MODEL")
	if v := strings.TrimSpace(os.Getenv("VALIDATION_MODE")); v != "" {
		cfg.ValidationMode = ValidationMode(v)
	}
	setInt(&cfg.Retries, "RETRIES")
	setInt(&cfg.MaxChars, "MAX_CHARS")
	setInt(&cfg.SegmentsPerHour, "SEGMENTS_PER_HOUR")
	setFloat(&cfg.FreshnessThreshold, "FRESHNESS_THRESHOLD")
	setStr(&cfg.ConfidenceFloor, "CONFIDENCE_FLOOR")
	setInt(&cfg.CacheMaxEntries, "CACHE_MAX_ENTRIES")
	setDuration(&cfg.CacheTTLRetrieval, "CACHE_TTL_RETRIEVAL")
	setDuration(&cfg.CacheTTLGeneration, "CACHE_TTL_GENERATION")
	setDuration(&cfg.LLMTimeoutGeneration, "LLM_TIMEOUT_GENERATION")
	setDuration(&cfg.LLMTimeoutValidation, "LLM_TIMEOUT_VALIDATION")
	setInt(&cfg.RecentSubjectsWindow, "RECENT_SUBJECTS_WINDOW")
	setInt(&cfg.SessionMemorySize, "SESSION_MEMORY_SIZE")
	if v := strings.TrimSpace(os.Getenv("ON_CRITICAL")); v != "" {
		cfg.OnCritical = OnCriticalPolicy(v)
	}
	setStr(&cfg.LogPath, "LOG_PATH")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.DataDir, "DATA_DIR")

	setStr(&cfg.Qdrant.DSN, "QDRANT_DSN")
	setStr(&cfg.Qdrant.Collection, "QDRANT_COLLECTION")
	setInt(&cfg.Qdrant.Dimensions, "QDRANT_DIMENSIONS")
	setStr(&cfg.Qdrant.Metric, "QDRANT_METRIC")

	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setBool(&cfg.Postgres.Enabled, "POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")

	setBool(&cfg.Kafka.Enabled, "KAFKA_ENABLED")
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setStr(&cfg.Kafka.SegmentTopic, "KAFKA_SEGMENT_TOPIC")

	setStr(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setStr(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setStr(&cfg.OpenAI.Model, "OPENAI_MODEL")

	setStr(&cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setStr(&cfg.Anthropic.BaseURL, "ANTHROPIC_BASE_URL")
	setStr(&cfg.Anthropic.Model, "ANTHROPIC_MODEL")
}

func setStr(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
