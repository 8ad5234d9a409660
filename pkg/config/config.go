// Package config loads govdocs settings from a YAML file, a .env file and
// the environment, and builds the configured providers and backends.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/ArturGR3/AI-Hackathon/pkg/helpers"
)

// Providers and backends accepted by the configuration.
var (
	LLMProviders       = []string{"openai", "ollama", "gemini"}
	EmbeddingProviders = []string{"openai", "ollama", "gemini"}
	Backends           = []string{"memory", "sqlite", "pgvector", "qdrant", "weaviate"}
)

// Config is the full application configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Query     QueryConfig     `yaml:"query"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// LLMConfig selects the chat model.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// RateLimit is requests per second shared by chat and embedding calls;
	// zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
}

// StoreConfig selects and tunes the vector store.
type StoreConfig struct {
	Backend   string `yaml:"backend"`
	TableName string `yaml:"table_name"`

	// DSN is the PostgreSQL connection string for pgvector.
	DSN string `yaml:"dsn"`
	// URL is the qdrant or weaviate endpoint.
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	// Path is the sqlite database file.
	Path string `yaml:"path"`

	IndexType             string        `yaml:"index_type"`
	TimePartitionInterval time.Duration `yaml:"time_partition_interval"`

	// IterativeScan is the pgvector iterative scan mode: relaxed_order
	// (default), strict_order or off.
	IterativeScan string `yaml:"iterative_scan"`

	EmbedTimeout  time.Duration `yaml:"embed_timeout"`
	SearchTimeout time.Duration `yaml:"search_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

// QueryConfig tunes the question pipeline.
type QueryConfig struct {
	Limit             int           `yaml:"limit"`
	PreprocessTimeout time.Duration `yaml:"preprocess_timeout"`
	SynthesisTimeout  time.Duration `yaml:"synthesis_timeout"`
	Recipients        []string      `yaml:"recipients"`
	Parallelism       int           `yaml:"parallelism"`
}

// IngestConfig tunes document analysis.
type IngestConfig struct {
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
	Parallelism     int           `yaml:"parallelism"`
}

// LogConfig sets the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig enables OTLP tracing when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	UseHTTP     bool    `yaml:"use_http"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
	ServiceName string  `yaml:"service_name"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns a configuration that runs against OpenAI and a local
// sqlite file.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Burst:    1,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
		Store: StoreConfig{
			Backend:               "sqlite",
			TableName:             "documents",
			Path:                  "data/govdocs.db",
			TimePartitionInterval: 7 * 24 * time.Hour,
			EmbedTimeout:          30 * time.Second,
			SearchTimeout:         10 * time.Second,
			WriteTimeout:          30 * time.Second,
		},
		Query: QueryConfig{
			Limit:             3,
			PreprocessTimeout: 30 * time.Second,
			SynthesisTimeout:  60 * time.Second,
			Recipients:        []string{"Artur Grygorian", "Nune Grygorian"},
			Parallelism:       4,
		},
		Ingest: IngestConfig{
			AnalysisTimeout: 2 * time.Minute,
			Parallelism:     2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "govdocs",
		},
		Tracing: TracingConfig{
			Insecure:    true,
			SampleRate:  1,
			ServiceName: "govdocs",
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
		},
	}
}

// Load reads .env (when present), then path (when non-empty) over the
// defaults, then environment overrides, and validates the result.
//
// Example:
//
//	cfg, err := config.Load("govdocs.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, helpers.WrapError(err, "failed to load .env")
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, helpers.WrapErrorf(err, "failed to read config %s", path)
		}
		if err := Parse(raw, cfg); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over cfg. Keys absent from raw keep their values;
// unknown keys are an error.
func Parse(raw []byte, cfg *Config) error {
	if err := yaml.UnmarshalWithOptions(raw, cfg, yaml.Strict()); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from GOVDOCS_* variables and the providers'
// conventional ones.
func (c *Config) ApplyEnv() {
	c.LLM.Provider = helpers.GetStringFromEnv("GOVDOCS_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = helpers.GetStringFromEnv("GOVDOCS_LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = helpers.GetStringFromEnv("GOVDOCS_LLM_BASE_URL", c.LLM.BaseURL)
	if c.LLM.BaseURL == "" && c.LLM.Provider == "ollama" {
		c.LLM.BaseURL = os.Getenv("OLLAMA_HOST")
	}
	c.LLM.Temperature = helpers.GetFloatFromEnv("GOVDOCS_LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.RateLimit = helpers.GetFloatFromEnv("GOVDOCS_LLM_RATE_LIMIT", c.LLM.RateLimit)
	c.LLM.APIKey = helpers.GetStringFromEnv("GOVDOCS_LLM_API_KEY", c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = providerKey(c.LLM.Provider)
	}

	c.Embedding.Provider = helpers.GetStringFromEnv("GOVDOCS_EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.Model = helpers.GetStringFromEnv("GOVDOCS_EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Dimension = helpers.GetIntFromEnv("GOVDOCS_EMBEDDING_DIMENSION", c.Embedding.Dimension)
	c.Embedding.BaseURL = helpers.GetStringFromEnv("GOVDOCS_EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	if c.Embedding.BaseURL == "" && c.Embedding.Provider == "ollama" {
		c.Embedding.BaseURL = os.Getenv("OLLAMA_HOST")
	}
	c.Embedding.APIKey = helpers.GetStringFromEnv("GOVDOCS_EMBEDDING_API_KEY", c.Embedding.APIKey)
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = providerKey(c.Embedding.Provider)
	}

	c.Store.Backend = helpers.GetStringFromEnv("GOVDOCS_STORE_BACKEND", c.Store.Backend)
	c.Store.TableName = helpers.GetStringFromEnv("GOVDOCS_STORE_TABLE", c.Store.TableName)
	c.Store.DSN = helpers.GetStringFromEnv("DATABASE_URL", c.Store.DSN)
	c.Store.URL = helpers.GetStringFromEnv("GOVDOCS_STORE_URL", c.Store.URL)
	c.Store.APIKey = helpers.GetStringFromEnv("GOVDOCS_STORE_API_KEY", c.Store.APIKey)
	c.Store.Path = helpers.GetStringFromEnv("GOVDOCS_STORE_PATH", c.Store.Path)
	c.Store.IterativeScan = helpers.GetStringFromEnv("GOVDOCS_STORE_ITERATIVE_SCAN", c.Store.IterativeScan)
	c.Store.SearchTimeout = helpers.GetDurationFromEnv("GOVDOCS_SEARCH_TIMEOUT", c.Store.SearchTimeout)

	c.Query.Limit = helpers.GetIntFromEnv("GOVDOCS_QUERY_LIMIT", c.Query.Limit)
	c.Query.Recipients = helpers.GetListFromEnv("GOVDOCS_RECIPIENTS", c.Query.Recipients)

	c.Log.Level = helpers.GetStringFromEnv("GOVDOCS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = helpers.GetStringFromEnv("GOVDOCS_LOG_FORMAT", c.Log.Format)
	c.Metrics.Enabled = helpers.GetBoolFromEnv("GOVDOCS_METRICS_ENABLED", c.Metrics.Enabled)
	c.Tracing.Endpoint = helpers.GetStringFromEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
	c.HTTP.Addr = helpers.GetStringFromEnv("GOVDOCS_HTTP_ADDR", c.HTTP.Addr)
}

func providerKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(LLMProviders, c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of %v", c.LLM.Provider, LLMProviders))
	}
	if c.LLM.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("llm.rate_limit must not be negative, got %v", c.LLM.RateLimit))
	}
	if !slices.Contains(EmbeddingProviders, c.Embedding.Provider) {
		errs = append(errs, fmt.Errorf("embedding.provider %q is not one of %v", c.Embedding.Provider, EmbeddingProviders))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension))
	}

	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for sqlite"))
		}
	case "pgvector":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn (or DATABASE_URL) is required for pgvector"))
		}
	case "qdrant", "weaviate":
		if c.Store.URL == "" {
			errs = append(errs, fmt.Errorf("store.url is required for %s", c.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of %v", c.Store.Backend, Backends))
	}

	if c.Query.Limit <= 0 {
		errs = append(errs, fmt.Errorf("query.limit must be positive, got %d", c.Query.Limit))
	}
	if len(c.Query.Recipients) == 0 {
		errs = append(errs, errors.New("query.recipients must not be empty"))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate must be within [0, 1], got %v", c.Tracing.SampleRate))
	}
	return errors.Join(errs...)
}
