package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	SQLitePath string `yaml:"sqlite_path"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	OllamaURL        string `yaml:"ollama_url"`
	OllamaEmbedModel string `yaml:"ollama_embed_model"`
	OllamaGenModel   string `yaml:"ollama_gen_model"`

	CleanerAIPass bool `yaml:"cleaner_ai_pass"`

	EmbedProxyURL     string        `yaml:"embed_proxy_url"`
	EmbedModel        string        `yaml:"embed_model"`
	EmbedBatchSize    int           `yaml:"embed_batch_size"`
	EmbedRequestGap   time.Duration `yaml:"embed_request_gap"`
	EmbedBatchGap     time.Duration `yaml:"embed_batch_gap"`
	BackfillPerMinute int           `yaml:"backfill_per_minute"`

	VectorWarmThreshold int `yaml:"vector_warm_threshold"`
	FallbackCap         int `yaml:"fallback_cap"`

	AssistantBaseURL   string        `yaml:"assistant_base_url"`
	AssistantAPIKey    string        `yaml:"assistant_api_key"`
	AssistantID        string        `yaml:"assistant_id"`
	AssistantModel     string        `yaml:"assistant_model"`
	RunPollInterval    time.Duration `yaml:"run_poll_interval"`
	RunMaxPollAttempts int           `yaml:"run_max_poll_attempts"`

	RateLimitPerHour int `yaml:"rate_limit_per_hour"`

	WorkerMetricsPort string `yaml:"worker_metrics_port"`
}

// Load reads configuration from the environment, with an optional .env file
// and an optional YAML overlay named by CONFIG_FILE. Environment variables
// win over the YAML file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		SQLitePath: mustEnv("SQLITE_PATH", "./data/clipindex.db"),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "entries.captured"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.2"),

		CleanerAIPass: mustEnvBool("CLEANER_AI_PASS", false),

		EmbedProxyURL:     mustEnv("EMBED_PROXY_URL", "http://localhost:8090"),
		EmbedModel:        mustEnv("EMBED_MODEL", "gemini-embedding-001"),
		EmbedBatchSize:    mustEnvInt("EMBED_BATCH_SIZE", 16),
		EmbedRequestGap:   mustEnvDuration("EMBED_REQUEST_GAP", 200*time.Millisecond),
		EmbedBatchGap:     mustEnvDuration("EMBED_BATCH_GAP", 2*time.Second),
		BackfillPerMinute: mustEnvInt("BACKFILL_PER_MINUTE", 30),

		VectorWarmThreshold: mustEnvInt("VECTOR_WARM_THRESHOLD", 1000),
		FallbackCap:         mustEnvInt("FALLBACK_CAP", 100),

		AssistantBaseURL:   mustEnv("ASSISTANT_BASE_URL", "https://api.openai.com"),
		AssistantAPIKey:    mustEnv("ASSISTANT_API_KEY", ""),
		AssistantID:        mustEnv("ASSISTANT_ID", ""),
		AssistantModel:     mustEnv("ASSISTANT_MODEL", "gpt-4o-mini"),
		RunPollInterval:    mustEnvDuration("RUN_POLL_INTERVAL", 2*time.Second),
		RunMaxPollAttempts: mustEnvInt("RUN_MAX_POLL_ATTEMPTS", 60),

		RateLimitPerHour: mustEnvInt("RATE_LIMIT_PER_HOUR", 300),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		applyYAMLOverlay(&cfg, path)
	}
	return cfg
}

// applyYAMLOverlay fills fields the environment left at their defaults.
// Only keys present in the file take effect; env vars always win.
func applyYAMLOverlay(cfg *Config, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("config_file_unreadable", "path", path, "error", err)
		return
	}
	var overlay Config
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		slog.Warn("config_file_invalid", "path", path, "error", err)
		return
	}

	base := *cfg
	merged := overlay
	// Env-provided values keep priority over the overlay; unset overlay
	// keys fall back to the env/default value.
	mergeString(&merged.APIPort, base.APIPort, "API_PORT")
	mergeString(&merged.LogLevel, base.LogLevel, "LOG_LEVEL")
	mergeString(&merged.SQLitePath, base.SQLitePath, "SQLITE_PATH")
	mergeString(&merged.NATSURL, base.NATSURL, "NATS_URL")
	mergeString(&merged.NATSSubject, base.NATSSubject, "NATS_SUBJECT")
	mergeString(&merged.OllamaURL, base.OllamaURL, "OLLAMA_URL")
	mergeString(&merged.OllamaEmbedModel, base.OllamaEmbedModel, "OLLAMA_EMBED_MODEL")
	mergeString(&merged.OllamaGenModel, base.OllamaGenModel, "OLLAMA_GEN_MODEL")
	mergeBool(&merged.CleanerAIPass, base.CleanerAIPass, "CLEANER_AI_PASS")
	mergeString(&merged.EmbedProxyURL, base.EmbedProxyURL, "EMBED_PROXY_URL")
	mergeString(&merged.EmbedModel, base.EmbedModel, "EMBED_MODEL")
	mergeInt(&merged.EmbedBatchSize, base.EmbedBatchSize, "EMBED_BATCH_SIZE")
	mergeDuration(&merged.EmbedRequestGap, base.EmbedRequestGap, "EMBED_REQUEST_GAP")
	mergeDuration(&merged.EmbedBatchGap, base.EmbedBatchGap, "EMBED_BATCH_GAP")
	mergeInt(&merged.BackfillPerMinute, base.BackfillPerMinute, "BACKFILL_PER_MINUTE")
	mergeInt(&merged.VectorWarmThreshold, base.VectorWarmThreshold, "VECTOR_WARM_THRESHOLD")
	mergeInt(&merged.FallbackCap, base.FallbackCap, "FALLBACK_CAP")
	mergeString(&merged.AssistantBaseURL, base.AssistantBaseURL, "ASSISTANT_BASE_URL")
	mergeString(&merged.AssistantAPIKey, base.AssistantAPIKey, "ASSISTANT_API_KEY")
	mergeString(&merged.AssistantID, base.AssistantID, "ASSISTANT_ID")
	mergeString(&merged.AssistantModel, base.AssistantModel, "ASSISTANT_MODEL")
	mergeDuration(&merged.RunPollInterval, base.RunPollInterval, "RUN_POLL_INTERVAL")
	mergeInt(&merged.RunMaxPollAttempts, base.RunMaxPollAttempts, "RUN_MAX_POLL_ATTEMPTS")
	mergeInt(&merged.RateLimitPerHour, base.RateLimitPerHour, "RATE_LIMIT_PER_HOUR")
	mergeString(&merged.WorkerMetricsPort, base.WorkerMetricsPort, "WORKER_METRICS_PORT")

	*cfg = merged
}

func mergeString(dst *string, envValue, key string) {
	if os.Getenv(key) != "" || *dst == "" {
		*dst = envValue
	}
}

func mergeInt(dst *int, envValue int, key string) {
	if os.Getenv(key) != "" || *dst == 0 {
		*dst = envValue
	}
}

func mergeBool(dst *bool, envValue bool, key string) {
	if os.Getenv(key) != "" {
		*dst = envValue
	}
}

func mergeDuration(dst *time.Duration, envValue time.Duration, key string) {
	if os.Getenv(key) != "" || *dst == 0 {
		*dst = envValue
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
