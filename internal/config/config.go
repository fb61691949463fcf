// Package config provides configuration management for Recall.
// Settings come from three layers, later layers overriding earlier ones:
// built-in defaults, an optional YAML config file (RECALL_CONFIG), and
// environment variables with the RECALL_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Recall subsystem.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// StorageConfig selects and configures the content store backend.
type StorageConfig struct {
	// Engine is the store backend: memory, sqlite, or postgres (default: sqlite).
	Engine string `yaml:"engine"`

	// DataPath is the directory holding the SQLite database file (default: ./data).
	DataPath string `yaml:"data_path"`

	// PostgresDSN is the PostgreSQL connection string, required when Engine
	// is postgres.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is the embedding provider: ollama or openai (default: ollama).
	Provider string `yaml:"provider"`

	// OllamaURL is the Ollama API base URL (default: http://localhost:11434).
	OllamaURL string `yaml:"ollama_url"`

	// OllamaModel is the Ollama embedding model (default: nomic-embed-text).
	OllamaModel string `yaml:"ollama_model"`

	// OpenAIAPIKey authenticates against the OpenAI embeddings API.
	OpenAIAPIKey string `yaml:"openai_api_key"`

	// OpenAIModel is the OpenAI embedding model (default: text-embedding-3-small).
	OpenAIModel string `yaml:"openai_model"`

	// OpenAIBaseURL overrides the OpenAI API base URL (default: https://api.openai.com).
	OpenAIBaseURL string `yaml:"openai_base_url"`

	// RequestsPerSecond paces provider requests (default: 5).
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// SchedulerConfig tunes the embedding batch scheduler.
type SchedulerConfig struct {
	// TokensPerMinute is the provider token-rate ceiling per rolling minute
	// (default: 100000). Token costs are estimated, not tokenized.
	TokensPerMinute int `yaml:"tokens_per_minute"`

	// MaxBatchSize caps items per bulk embedding call (default: 64).
	MaxBatchSize int `yaml:"max_batch_size"`

	// FallbackConcurrency caps simultaneous individual calls when a bulk
	// call fails (default: 3).
	FallbackConcurrency int `yaml:"fallback_concurrency"`

	// FallbackDelaySeconds is the pause between successive groups of
	// individual fallback calls (default: 15).
	FallbackDelaySeconds int `yaml:"fallback_delay_seconds"`

	// MaxChunkSize is the maximum content length in characters before the
	// chunker splits an entity (default: 20000).
	MaxChunkSize int `yaml:"max_chunk_size"`
}

// FallbackDelay returns the configured inter-group fallback delay.
func (c SchedulerConfig) FallbackDelay() time.Duration {
	return time.Duration(c.FallbackDelaySeconds) * time.Second
}

// RetrievalConfig tunes the retrieval coordinator.
type RetrievalConfig struct {
	// Limit is the number of candidates requested from similarity search
	// (default: 5).
	Limit int `yaml:"limit"`

	// HistoryLimit caps chat-history results after partitioning (default: 2).
	HistoryLimit int `yaml:"history_limit"`

	// OtherLimit caps non-history results after partitioning (default: 3).
	OtherLimit int `yaml:"other_limit"`

	// WindowSize is the relevance-window length in characters (default: 1500).
	WindowSize int `yaml:"window_size"`

	// WindowStride is the slide step in characters when scanning for the
	// most query-relevant window (default: 100).
	WindowStride int `yaml:"window_stride"`
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by RECALL_CONFIG (or the explicit path argument when non-empty), and
// RECALL_* environment variables, in that precedence order.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv("RECALL_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// defaultConfig returns the built-in defaults.
func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		Embedding: EmbeddingConfig{
			Provider:          "ollama",
			OllamaURL:         "http://localhost:11434",
			OllamaModel:       "nomic-embed-text",
			OpenAIModel:       "text-embedding-3-small",
			RequestsPerSecond: 5,
		},
		Scheduler: SchedulerConfig{
			TokensPerMinute:      100000,
			MaxBatchSize:         64,
			FallbackConcurrency:  3,
			FallbackDelaySeconds: 15,
			MaxChunkSize:         20000,
		},
		Retrieval: RetrievalConfig{
			Limit:        5,
			HistoryLimit: 2,
			OtherLimit:   3,
			WindowSize:   1500,
			WindowStride: 100,
		},
	}
}

// applyEnv overrides cfg with RECALL_* environment variables.
func applyEnv(cfg *Config) {
	cfg.Storage.Engine = getEnv("RECALL_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("RECALL_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("RECALL_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Embedding.Provider = getEnv("RECALL_EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.OllamaURL = getEnv("RECALL_OLLAMA_URL", cfg.Embedding.OllamaURL)
	cfg.Embedding.OllamaModel = getEnv("RECALL_OLLAMA_MODEL", cfg.Embedding.OllamaModel)
	cfg.Embedding.OpenAIAPIKey = getEnv("RECALL_OPENAI_API_KEY", cfg.Embedding.OpenAIAPIKey)
	cfg.Embedding.OpenAIModel = getEnv("RECALL_OPENAI_MODEL", cfg.Embedding.OpenAIModel)
	cfg.Embedding.OpenAIBaseURL = getEnv("RECALL_OPENAI_BASE_URL", cfg.Embedding.OpenAIBaseURL)
	cfg.Embedding.RequestsPerSecond = getEnvFloat("RECALL_REQUESTS_PER_SECOND", cfg.Embedding.RequestsPerSecond)

	cfg.Scheduler.TokensPerMinute = getEnvInt("RECALL_TOKENS_PER_MINUTE", cfg.Scheduler.TokensPerMinute)
	cfg.Scheduler.MaxBatchSize = getEnvInt("RECALL_MAX_BATCH_SIZE", cfg.Scheduler.MaxBatchSize)
	cfg.Scheduler.FallbackConcurrency = getEnvInt("RECALL_FALLBACK_CONCURRENCY", cfg.Scheduler.FallbackConcurrency)
	cfg.Scheduler.FallbackDelaySeconds = getEnvInt("RECALL_FALLBACK_DELAY_SECONDS", cfg.Scheduler.FallbackDelaySeconds)
	cfg.Scheduler.MaxChunkSize = getEnvInt("RECALL_MAX_CHUNK_SIZE", cfg.Scheduler.MaxChunkSize)

	cfg.Retrieval.Limit = getEnvInt("RECALL_RETRIEVAL_LIMIT", cfg.Retrieval.Limit)
	cfg.Retrieval.HistoryLimit = getEnvInt("RECALL_HISTORY_LIMIT", cfg.Retrieval.HistoryLimit)
	cfg.Retrieval.OtherLimit = getEnvInt("RECALL_OTHER_LIMIT", cfg.Retrieval.OtherLimit)
	cfg.Retrieval.WindowSize = getEnvInt("RECALL_WINDOW_SIZE", cfg.Retrieval.WindowSize)
	cfg.Retrieval.WindowStride = getEnvInt("RECALL_WINDOW_STRIDE", cfg.Retrieval.WindowStride)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
